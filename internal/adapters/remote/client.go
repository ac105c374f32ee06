// Package remote talks to the kill collection API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/killfeed/internal/domain/model"
)

const (
	defaultTimeout  = 10 * time.Second
	maxBodySize     = 1 << 20
	maxStoredBody   = 512
	pathReportKill  = "/reportKill"
	pathReportDeath = "/reportDeath"
	pathPing        = "/ping"
)

// Submitter is the part of Client the dispatcher depends on.
type Submitter interface {
	Submit(ctx context.Context, e model.Event) Response
}

var _ Submitter = (*Client)(nil)

// Config identifies this client to the API.
type Config struct {
	BaseURL       string
	APIKey        string
	ClientID      string
	ClientVersion string
	Player        string
	Timeout       time.Duration
}

// Client talks to the collection API.
type Client struct {
	baseURL       *url.URL
	http          *http.Client
	apiKey        string
	clientID      string
	clientVersion string
	player        string
	userAgent     string
}

// Request is the JSON body of a kill or death report.
type Request struct {
	LogLine    string `json:"log_line"`
	GameMode   string `json:"game_mode"`
	LocalKey   string `json:"local_key"`
	Timestamp  string `json:"timestamp"`
	Attacker   string `json:"attacker"`
	Victim     string `json:"victim"`
	Weapon     string `json:"weapon"`
	Zone       string `json:"zone"`
	DamageType string `json:"damage_type"`
	Player     string `json:"player,omitempty"`
}

// Response is a classified submission result. Network failures are folded
// into a TransientError outcome rather than returned as errors.
type Response struct {
	Classification
	StatusCode int
	Body       string
	Latency    time.Duration
}

// NewClient builds a Client for cfg.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL:       base,
		http:          &http.Client{Timeout: timeout},
		apiKey:        cfg.APIKey,
		clientID:      cfg.ClientID,
		clientVersion: cfg.ClientVersion,
		player:        cfg.Player,
		userAgent:     "killfeed/" + firstNonEmpty(cfg.ClientVersion, "dev"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// Ping checks connectivity and credentials.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, pathPing, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: check api_key in your config (status %d)", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode,
			errorText(resp.StatusCode, resp.Header.Get("Content-Type"), bytes.TrimSpace(body)))
	}
	return nil
}

// Submit posts one event to the kill or death endpoint and classifies the
// answer.
func (c *Client) Submit(ctx context.Context, e model.Event) Response {
	start := time.Now()
	path := pathReportKill
	if e.Kind == model.KindDeath {
		path = pathReportDeath
	}

	payload, err := json.Marshal(Request{
		LogLine:    e.RawLine,
		GameMode:   e.GameMode,
		LocalKey:   e.LocalKey,
		Timestamp:  e.Timestamp,
		Attacker:   e.Attacker,
		Victim:     e.Victim,
		Weapon:     e.Weapon,
		Zone:       e.Zone,
		DamageType: e.DamageType,
		Player:     c.player,
	})
	if err != nil {
		return transient(start, fmt.Sprintf("encode request: %v", err))
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return transient(start, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return transient(start, fmt.Sprintf("request failed: %v", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return transient(start, fmt.Sprintf("read response: %v", err))
	}

	stored := string(body)
	if len(stored) > maxStoredBody {
		stored = stored[:maxStoredBody]
	}
	return Response{
		Classification: Classify(resp.StatusCode, resp.Header.Get("Content-Type"), body),
		StatusCode:     resp.StatusCode,
		Body:           stored,
		Latency:        time.Since(start),
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	reqURL := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("X-Client-ID", c.clientID)
	req.Header.Set("X-Client-Version", c.clientVersion)
	return req, nil
}

func transient(start time.Time, reason string) Response {
	return Response{
		Classification: Classification{Outcome: model.OutcomeTransientError, Reason: reason},
		Latency:        time.Since(start),
	}
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
