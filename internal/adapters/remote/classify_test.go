package remote

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/okian/killfeed/internal/domain/model"
)

func TestClassify(t *testing.T) {
	const challenge = `<!DOCTYPE html><html><head><title>Just a moment...</title></head><body>checking</body></html>`

	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		want        model.Outcome
		wantID      string
		wantReason  string
	}{
		{name: "created with id", status: 201, contentType: "application/json", body: `{"id": 981}`, want: model.OutcomeAccepted, wantID: "981"},
		{name: "ok with string id", status: 200, body: `{"id":"abc","message":"stored"}`, want: model.OutcomeAccepted, wantID: "abc"},
		{name: "empty 2xx", status: 204, want: model.OutcomeAccepted},
		{name: "duplicate flag", status: 200, body: `{"duplicate":true,"id":5}`, want: model.OutcomeDuplicate, wantID: "5"},
		{name: "duplicate message", status: 200, body: `{"message":"Duplicate kill"}`, want: model.OutcomeDuplicate},
		{name: "duplicate beats filtered", status: 200, body: `{"duplicate":true,"npc":true}`, want: model.OutcomeDuplicate},
		{name: "npc", status: 200, body: `{"npc":true,"message":"victim is an NPC"}`, want: model.OutcomeFiltered, wantReason: "victim is an NPC"},
		{name: "filtered", status: 202, body: `{"filtered":true}`, want: model.OutcomeFiltered},
		{name: "bad request", status: 400, body: `{"message":"missing victim"}`, want: model.OutcomeRejected, wantReason: "status 400: missing victim"},
		{name: "unauthorized", status: 401, body: ``, want: model.OutcomeRejected, wantReason: "status 401: invalid or missing API key"},
		{name: "server error", status: 503, body: `upstream down`, want: model.OutcomeTransientError, wantReason: "status 503: upstream down"},
		{name: "challenge page on 2xx", status: 200, contentType: "text/html; charset=utf-8", body: challenge, want: model.OutcomeTransientError, wantReason: "unexpected non-JSON response: Just a moment..."},
		{name: "challenge page on 403", status: 403, contentType: "text/html", body: challenge, want: model.OutcomeRejected, wantReason: "status 403: Just a moment..."},
		{name: "plain text 2xx", status: 200, body: `OK`, want: model.OutcomeTransientError, wantReason: "unexpected non-JSON response: OK"},
		{name: "redirect", status: 302, want: model.OutcomeTransientError, wantReason: "status 302: empty body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.status, tt.contentType, []byte(tt.body))
			if got.Outcome != tt.want {
				t.Fatalf("outcome = %v, want %v (reason %q)", got.Outcome, tt.want, got.Reason)
			}
			if got.APIID != tt.wantID {
				t.Errorf("id = %q, want %q", got.APIID, tt.wantID)
			}
			if tt.wantReason != "" && got.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	long := strings.Repeat("a", maxReasonLen-1) + "é" + strings.Repeat("b", 10)
	got := truncate(long)
	if !utf8.ValidString(got) {
		t.Fatalf("truncate produced invalid UTF-8: %q", got)
	}
	if want := strings.Repeat("a", maxReasonLen-1) + "..."; got != want {
		t.Errorf("truncate = %q, want %q", got, want)
	}

	reason := Classify(500, "text/plain", []byte(strings.Repeat("ü", maxReasonLen))).Reason
	if !utf8.ValidString(reason) {
		t.Errorf("reason is invalid UTF-8: %q", reason)
	}
}
