package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/okian/killfeed/internal/domain/model"
)

const maxReasonLen = 200

// Classification is the outcome of one response.
type Classification struct {
	Outcome model.Outcome
	Reason  string
	APIID   string
}

// apiResponse is the JSON body the collection API answers with. Every field
// is optional.
type apiResponse struct {
	ID        json.RawMessage `json:"id"`
	Duplicate bool            `json:"duplicate"`
	Filtered  bool            `json:"filtered"`
	NPC       bool            `json:"npc"`
	Message   string          `json:"message"`
	Error     string          `json:"error"`
}

// Classify maps a status, content type and body to an outcome. Rules apply
// in order: duplicate marker, filtered or NPC marker, other 2xx, 4xx, and
// everything else (including a 2xx body that is not JSON) as transient.
func Classify(status int, contentType string, body []byte) Classification {
	trimmed := bytes.TrimSpace(body)

	switch {
	case status >= 200 && status < 300:
		if len(trimmed) == 0 {
			return Classification{Outcome: model.OutcomeAccepted}
		}
		var r apiResponse
		if err := json.Unmarshal(trimmed, &r); err != nil {
			return Classification{
				Outcome: model.OutcomeTransientError,
				Reason:  "unexpected non-JSON response: " + describeBody(contentType, trimmed),
			}
		}
		switch {
		case r.Duplicate || strings.Contains(strings.ToLower(r.Message), "duplicate"):
			return Classification{Outcome: model.OutcomeDuplicate, APIID: idString(r.ID)}
		case r.Filtered || r.NPC:
			return Classification{Outcome: model.OutcomeFiltered, Reason: r.Message}
		default:
			return Classification{Outcome: model.OutcomeAccepted, APIID: idString(r.ID)}
		}

	case status >= 400 && status < 500:
		return Classification{
			Outcome: model.OutcomeRejected,
			Reason:  fmt.Sprintf("status %d: %s", status, errorText(status, contentType, trimmed)),
		}

	default:
		return Classification{
			Outcome: model.OutcomeTransientError,
			Reason:  fmt.Sprintf("status %d: %s", status, errorText(status, contentType, trimmed)),
		}
	}
}

func errorText(status int, contentType string, body []byte) string {
	var r apiResponse
	if json.Unmarshal(body, &r) == nil {
		if msg := firstNonEmpty(r.Message, r.Error); msg != "" {
			return truncate(msg)
		}
	}
	if len(body) > 0 {
		return describeBody(contentType, body)
	}
	if status == 401 || status == 403 {
		return "invalid or missing API key"
	}
	return "empty body"
}

// describeBody prefers an HTML page title (proxy challenge pages) over the
// raw body.
func describeBody(contentType string, body []byte) string {
	if strings.Contains(strings.ToLower(contentType), "html") || bytes.HasPrefix(bytes.ToLower(body), []byte("<!doctype html")) || bytes.HasPrefix(bytes.ToLower(body), []byte("<html")) {
		if title := htmlTitle(body); title != "" {
			return truncate(title)
		}
		return "HTML page"
	}
	return truncate(string(body))
}

func htmlTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
}

func idString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return string(raw)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxReasonLen {
		return s
	}
	cut := maxReasonLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
