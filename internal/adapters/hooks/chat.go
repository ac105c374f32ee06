package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/okian/killfeed/internal/domain/model"
	"github.com/okian/killfeed/internal/domain/patterns"
)

const (
	defaultWebhookTimeout = 10 * time.Second
	maxWebhookRetries     = 3

	// DefaultChatTemplate renders the event readout.
	DefaultChatTemplate = `{{.Readout}}`
)

// ChatData is what chat templates see.
type ChatData struct {
	model.Event
	WeaponName string
	ZoneName   string
	ModeName   string
}

// WebhookChat posts a templated message to a Discord-style webhook.
type WebhookChat struct {
	url   string
	tmpl  *template.Template
	modes patterns.ModeTable
	http  *http.Client
}

// NewWebhookChat parses tmpl; an empty tmpl uses DefaultChatTemplate.
func NewWebhookChat(url, tmpl string) (*WebhookChat, error) {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultChatTemplate
	}
	t, err := template.New("chat").Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse chat template: %w", err)
	}
	return &WebhookChat{
		url:   url,
		tmpl:  t,
		modes: patterns.DefaultModeTable(),
		http:  &http.Client{Timeout: defaultWebhookTimeout},
	}, nil
}

// Render produces the message text for e.
func (c *WebhookChat) Render(e model.Event) (string, error) {
	var buf bytes.Buffer
	err := c.tmpl.Execute(&buf, ChatData{
		Event:      e,
		WeaponName: patterns.TrimSuffix(e.Weapon),
		ZoneName:   patterns.TrimSuffix(e.Zone),
		ModeName:   c.modes.Display(e.GameMode),
	})
	if err != nil {
		return "", fmt.Errorf("render chat template: %w", err)
	}
	return buf.String(), nil
}

type webhookPayload struct {
	Content string `json:"content"`
}

// Send renders and posts the message, waiting out rate limits.
func (c *WebhookChat) Send(ctx context.Context, e model.Event) error {
	text, err := c.Render(e)
	if err != nil {
		return err
	}
	data, err := json.Marshal(webhookPayload{Content: text})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for attempt := 0; attempt < maxWebhookRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
			return nil
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
		}

		wait := time.Second
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			wait = time.Duration(secs) * time.Second
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("webhook request failed after %d retries", maxWebhookRetries)
}
