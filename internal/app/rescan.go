package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/okian/killfeed/internal/domain/aggregate"
	"github.com/okian/killfeed/internal/domain/model"
	"github.com/okian/killfeed/internal/domain/rescan"
	"github.com/okian/killfeed/pkg/logger"
)

// Preview is the result of a rescan awaiting confirmation.
type Preview struct {
	Token     string                     `json:"token"`
	Items     []model.ReconciliationItem `json:"items"`
	CreatedAt time.Time                  `json:"created_at"`
}

type pendingPreview struct {
	token  string
	events []model.Event
}

// PreviewRescan replays the whole log and lists events the local store has
// never seen. Nothing is submitted until ConfirmRescan is called with the
// returned token. Only the latest preview can be confirmed.
func (s *Service) PreviewRescan(ctx context.Context) (Preview, error) {
	sc := rescan.New(s.lib, s.extractor, s.identity)
	items, err := sc.Scan(ctx, s.logPath, func(key string) bool {
		return s.store.Contains(ctx, key)
	})
	if err != nil {
		return Preview{}, err
	}

	events := make([]model.Event, len(items))
	for i := range items {
		events[i] = items[i].Event
	}

	p := Preview{Token: uuid.NewString(), Items: items, CreatedAt: time.Now().UTC()}
	s.mu.Lock()
	s.preview = &pendingPreview{token: p.Token, events: events}
	s.mu.Unlock()

	s.logger.Info(ctx, "rescan preview ready",
		logger.String("token", p.Token),
		logger.Int("items", len(items)))
	return p, nil
}

// ConfirmRescan submits the events of the preview identified by token. The
// returned channel yields the batch summary once every event has a result.
func (s *Service) ConfirmRescan(ctx context.Context, token string) (<-chan aggregate.Summary, error) {
	s.mu.Lock()
	p := s.preview
	if p == nil || p.token != token {
		s.mu.Unlock()
		return nil, ErrUnknownToken
	}
	s.preview = nil
	s.mu.Unlock()

	return s.Resubmit(ctx, p.events)
}

// Unsent returns recorded events the API never confirmed, such as live
// submissions that failed transiently. The log rescan skips them because
// the store already holds their keys.
func (s *Service) Unsent(ctx context.Context) []model.Event {
	var out []model.Event
	for _, rec := range s.store.Records(ctx) {
		if !rec.SentToAPI {
			out = append(out, rec.Event)
		}
	}
	return out
}

// Resubmit sends events as one paced batch.
func (s *Service) Resubmit(ctx context.Context, events []model.Event) (<-chan aggregate.Summary, error) {
	done := make(chan aggregate.Summary, 1)
	id := uuid.NewString()
	if len(events) == 0 {
		done <- aggregate.Summary{BatchID: id}
		return done, nil
	}
	if !s.batchCh.Post(ctx, batchRequest{id: id, events: events, done: done}) {
		return nil, ErrStopped
	}
	return done, nil
}
