// Package profile looks up public player profiles to decorate feed entries.
// Lookups are best-effort: a failure leaves the entry undecorated.
package profile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTimeout = 10 * time.Second
	userAgent      = "killfeed-profile/1.0"
)

// ErrNotFound is returned when no public profile exists for a handle.
var ErrNotFound = errors.New("profile not found")

// Profile is the public summary of a player.
type Profile struct {
	Handle       string `json:"handle"`
	DisplayName  string `json:"display_name,omitempty"`
	Enlisted     string `json:"enlisted,omitempty"`
	Organization string `json:"organization,omitempty"`
	AvatarURL    string `json:"avatar_url,omitempty"`
}

// Fetcher retrieves a profile by handle.
type Fetcher interface {
	Fetch(ctx context.Context, handle string) (Profile, error)
}

// Cache memoizes profiles for the lifetime of one session. Concurrent
// lookups for the same handle share one fetch. Failures are not cached.
type Cache struct {
	fetcher Fetcher
	group   singleflight.Group

	mu      sync.RWMutex
	entries map[string]Profile
}

// NewCache creates an empty cache in front of f.
func NewCache(f Fetcher) *Cache {
	return &Cache{fetcher: f, entries: make(map[string]Profile)}
}

// Get returns the cached profile or fetches it.
func (c *Cache) Get(ctx context.Context, handle string) (Profile, error) {
	key := strings.ToLower(strings.TrimSpace(handle))
	if key == "" {
		return Profile{}, ErrNotFound
	}

	c.mu.RLock()
	p, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		p, err := c.fetcher.Fetch(ctx, handle)
		if err != nil {
			return Profile{}, err
		}
		c.mu.Lock()
		c.entries[key] = p
		c.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return Profile{}, err
	}
	return v.(Profile), nil
}

// Len returns the number of cached profiles.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// HTTPFetcher scrapes the public citizen page.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFetcher creates a fetcher for pages at baseURL/<handle>.
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// Fetch downloads and parses the profile page for handle.
func (f *HTTPFetcher) Fetch(ctx context.Context, handle string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/"+url.PathEscape(handle), nil)
	if err != nil {
		return Profile{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("fetching profile: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Profile{}, fmt.Errorf("%w: %s", ErrNotFound, handle)
	case resp.StatusCode != http.StatusOK:
		return Profile{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return parseProfile(resp.Body, handle)
}

// parseProfile extracts the profile fields from a citizen page.
func parseProfile(r io.Reader, handle string) (Profile, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Profile{}, fmt.Errorf("parsing HTML: %w", err)
	}

	p := Profile{Handle: handle}
	info := doc.Find("div.profile .info")
	if info.Length() == 0 {
		return Profile{}, fmt.Errorf("%w: %s", ErrNotFound, handle)
	}
	p.DisplayName = clean(info.Find("p.entry strong.value").First().Text())
	if h := clean(info.Find(`p.entry:contains("Handle name") strong.value`).First().Text()); h != "" {
		p.Handle = h
	}
	p.Enlisted = clean(doc.Find(`div.profile-content p.entry:contains("Enlisted") strong.value`).First().Text())
	p.Organization = clean(doc.Find("div.main-org .info a.value").First().Text())
	if src, ok := doc.Find("div.profile .thumb img").First().Attr("src"); ok {
		p.AvatarURL = strings.TrimSpace(src)
	}
	return p, nil
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
