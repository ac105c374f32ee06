package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/okian/killfeed/internal/domain/model"
)

const defaultClipTimeout = 30 * time.Second

// HTTPClipper asks a clip service to capture the moment of an event.
type HTTPClipper struct {
	endpoint string
	http     *http.Client
}

// NewHTTPClipper posts clip requests to endpoint.
func NewHTTPClipper(endpoint string) *HTTPClipper {
	return &HTTPClipper{endpoint: endpoint, http: &http.Client{Timeout: defaultClipTimeout}}
}

type clipRequest struct {
	LocalKey  string `json:"local_key"`
	Kind      string `json:"kind"`
	Timestamp string `json:"timestamp"`
	Readout   string `json:"title"`
}

type clipResponse struct {
	URL string `json:"url"`
}

// CreateClip returns the URL of the created clip.
func (c *HTTPClipper) CreateClip(ctx context.Context, e model.Event) (string, error) {
	body, err := json.Marshal(clipRequest{
		LocalKey:  e.LocalKey,
		Kind:      string(e.Kind),
		Timestamp: e.Timestamp,
		Readout:   e.Readout,
	})
	if err != nil {
		return "", fmt.Errorf("encode clip request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create clip request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("clip request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("clip service returned status %d", resp.StatusCode)
	}
	var out clipResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode clip response: %w", err)
	}
	return out.URL, nil
}

// GroupedClipper shares one clip among events close together in time. An
// event joins the open group when its timestamp falls in
// [first, first+window); otherwise it starts a new group.
type GroupedClipper struct {
	inner  ClipCreator
	window time.Duration

	mu  sync.Mutex
	cur *clipGroup
}

type clipGroup struct {
	start time.Time
	done  chan struct{}
	url   string
	err   error
}

// NewGroupedClipper wraps inner. A non-positive window disables grouping.
func NewGroupedClipper(inner ClipCreator, window time.Duration) *GroupedClipper {
	return &GroupedClipper{inner: inner, window: window}
}

// CreateClip creates a clip for the first event of a group and hands the
// same URL to the rest of the group once it is known.
func (g *GroupedClipper) CreateClip(ctx context.Context, e model.Event) (string, error) {
	t := e.Time()

	g.mu.Lock()
	if grp := g.cur; grp != nil && g.window > 0 && !t.IsZero() &&
		!t.Before(grp.start) && t.Before(grp.start.Add(g.window)) {
		g.mu.Unlock()
		select {
		case <-grp.done:
			return grp.url, grp.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	grp := &clipGroup{start: t, done: make(chan struct{})}
	g.cur = grp
	g.mu.Unlock()

	grp.url, grp.err = g.inner.CreateClip(ctx, e)
	close(grp.done)
	return grp.url, grp.err
}
