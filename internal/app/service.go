// Package service runs one monitoring session: it follows the game log,
// turns matched lines into events, hands them to the dispatcher and folds
// the results back into session state.
//
// Every piece of session state (the parsed session, counters, batch
// aggregators, connectivity) is owned by the goroutine running Run. Other
// goroutines talk to it through mailboxes and read it through Stats.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/killfeed/internal/adapters/dispatch"
	"github.com/okian/killfeed/internal/adapters/hooks"
	"github.com/okian/killfeed/internal/adapters/http/feed"
	"github.com/okian/killfeed/internal/adapters/logtail"
	"github.com/okian/killfeed/internal/adapters/mq/queue"
	"github.com/okian/killfeed/internal/adapters/mq/worker"
	"github.com/okian/killfeed/internal/adapters/profile"
	"github.com/okian/killfeed/internal/adapters/remote"
	"github.com/okian/killfeed/internal/adapters/repository"
	"github.com/okian/killfeed/internal/domain/aggregate"
	"github.com/okian/killfeed/internal/domain/extract"
	"github.com/okian/killfeed/internal/domain/model"
	"github.com/okian/killfeed/internal/domain/patterns"
	"github.com/okian/killfeed/internal/domain/session"
	"github.com/okian/killfeed/pkg/logger"
	"github.com/okian/killfeed/pkg/metrics"
)

const (
	defaultMailboxSize = 1024
	// offlineThreshold is the number of consecutive live transient failures
	// after which the API is reported offline.
	offlineThreshold = 2
)

// Stats is a point-in-time view of the session.
type Stats struct {
	Player              string    `json:"player"`
	GameMode            string    `json:"game_mode"`
	Kills               int       `json:"kills"`
	Deaths              int       `json:"deaths"`
	Filtered            int       `json:"filtered"`
	Rejected            int       `json:"rejected"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Online              bool      `json:"online"`
	StoreRecords        int       `json:"store_records"`
	PendingBatches      int       `json:"pending_batches"`
	TailerState         string    `json:"tailer_state"`
	StartedAt           time.Time `json:"started_at"`
}

type clipUpdate struct {
	key string
	url string
}

type batchRequest struct {
	id     string
	events []model.Event
	done   chan aggregate.Summary
}

type batch struct {
	agg  *aggregate.Aggregator
	done chan aggregate.Summary
}

// Service is one monitoring session.
type Service struct {
	// mu guards stats, tailer and preview.
	mu      sync.RWMutex
	stats   Stats
	tailer  *logtail.Tailer
	preview *pendingPreview

	logPath  string
	identity string

	lib        *patterns.Library
	extractor  *extract.Extractor
	store      repository.Store
	dispatcher *dispatch.Dispatcher
	hooks      *hooks.Fanout
	feed       *feed.Hub
	profiles   *profile.Cache
	pool       *worker.Pool

	mailboxSize  int
	dispatchOpts []dispatch.Option
	tailerOpts   []logtail.Option

	lines   chan logtail.Line
	results *queue.Mailbox[model.Result]
	clips   *queue.Mailbox[clipUpdate]
	batchCh *queue.Mailbox[batchRequest]

	// Owned by Run.
	session  *session.State
	batches  map[string]*batch
	failures int

	logger logger.Logger
}

// New creates a Service following logPath, recording into store and
// submitting through client.
func New(logPath string, store repository.Store, client remote.Submitter, opts ...Option) *Service {
	s := &Service{
		logPath:     logPath,
		extractor:   extract.New(),
		store:       store,
		mailboxSize: defaultMailboxSize,
		batches:     make(map[string]*batch),
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.lib == nil {
		s.lib = patterns.New(patterns.WithLogger(s.logger.Named("patterns")))
	}

	s.session = session.New(s.identity)
	s.lines = make(chan logtail.Line, s.mailboxSize)
	s.results = queue.NewMailbox[model.Result]("results", queue.WithCapacity(s.mailboxSize))
	s.clips = queue.NewMailbox[clipUpdate]("clips", queue.WithCapacity(s.mailboxSize))
	s.batchCh = queue.NewMailbox[batchRequest]("batches", queue.WithCapacity(16))

	dopts := append([]dispatch.Option{dispatch.WithLogger(s.logger.Named("dispatch"))}, s.dispatchOpts...)
	s.dispatcher = dispatch.New(client, store, s.results, dopts...)

	s.stats = Stats{
		GameMode:    s.session.GameMode,
		Online:      true,
		TailerState: logtail.StateStopped.String(),
	}
	return s
}

// Monitor runs a live session until ctx ends. The local store is cleared
// first, and deleted when the session stops cleanly.
func (s *Service) Monitor(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear local store: %w", err)
	}

	tailer := logtail.New(s.logPath, append([]logtail.Option{logtail.WithLogger(s.logger.Named("tailer"))}, s.tailerOpts...)...)
	s.mu.Lock()
	s.tailer = tailer
	s.stats.StartedAt = time.Now().UTC()
	s.mu.Unlock()

	s.logger.Info(ctx, "monitoring started",
		logger.String("path", s.logPath),
		logger.String("identity", s.identity))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tailer.Run(gctx, s.lines) })
	g.Go(func() error { return s.Run(gctx) })
	err := g.Wait()

	s.dispatcher.Wait()
	s.close()

	if err != nil {
		return err
	}
	if d, ok := s.store.(interface{ Delete() error }); ok {
		if derr := d.Delete(); derr != nil {
			s.logger.Warn(context.Background(), "failed to delete local store", logger.Error(derr))
		}
	}
	s.logger.Info(context.Background(), "monitoring stopped", logger.Any("stats", s.Stats()))
	return nil
}

// Run is the consumer loop. It returns nil when ctx ends.
func (s *Service) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case l := <-s.lines:
			s.handleLine(ctx, l)
		case r := <-s.results.Receive():
			s.handleResult(ctx, r)
		case c := <-s.clips.Receive():
			s.handleClip(ctx, c)
		case b := <-s.batchCh.Receive():
			s.startBatch(ctx, b)
		}
	}
}

// Lines returns the input channel the consumer reads log lines from.
func (s *Service) Lines() chan<- logtail.Line { return s.lines }

// Wait blocks until outstanding submissions finish.
func (s *Service) Wait() { s.dispatcher.Wait() }

// Stats returns a snapshot of the session.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.stats
	if s.tailer != nil {
		st.TailerState = s.tailer.State().String()
	}
	return st
}

func (s *Service) close() {
	_ = s.results.Close()
	_ = s.clips.Close()
	_ = s.batchCh.Close()
}

func (s *Service) handleLine(ctx context.Context, l logtail.Line) {
	res, ok := s.lib.Match(ctx, l.Text)
	if !ok {
		return
	}
	switch res.Kind {
	case patterns.KindRegistration, patterns.KindGameModeChange:
		if !s.session.Apply(res) {
			return
		}
		s.logger.Debug(ctx, "session updated",
			logger.String("player", s.session.RegisteredPlayer),
			logger.String("game_mode", s.session.GameMode),
			logger.Bool("backfill", l.Backfill))
		s.update(func(st *Stats) {
			st.Player = s.session.RegisteredPlayer
			st.GameMode = s.session.GameMode
		})
	case patterns.KindKillRecord:
		// Backfill only rebuilds the session.
		if l.Backfill {
			return
		}
		for _, e := range s.extractor.Events(res.Kill, s.session, l.Text) {
			s.track(ctx, e)
		}
	}
}

func (s *Service) track(ctx context.Context, e model.Event) {
	if _, created, err := s.store.Upsert(ctx, e); err != nil {
		s.logger.Error(ctx, "failed to record event", logger.String("key", e.LocalKey), logger.Error(err))
		return
	} else if !created {
		s.logger.Debug(ctx, "event already recorded", logger.String("key", e.LocalKey))
		return
	}
	s.update(func(st *Stats) { st.StoreRecords = s.store.Count(ctx) })

	s.logger.Info(ctx, e.Readout, logger.String("key", e.LocalKey))
	s.publish(feed.Message{Type: feed.TypeEventAdded, Key: e.LocalKey, Event: &e, Text: e.Readout})
	s.dispatcher.Submit(ctx, e)
	s.lookupOpponent(ctx, e)
}

func (s *Service) handleResult(ctx context.Context, r model.Result) {
	e := r.Event
	live := r.BatchID == ""

	switch r.Outcome {
	case model.OutcomeAccepted, model.OutcomeDuplicate:
		_, transitioned, err := s.store.MarkSent(ctx, e.LocalKey, model.SentMeta{APIResponse: r.Body, APIID: r.APIID})
		switch {
		case errors.Is(err, repository.ErrNotFound):
			s.logger.Warn(ctx, "result for unknown key", logger.String("key", e.LocalKey))
		case err != nil:
			s.logger.Error(ctx, "failed to mark event sent", logger.String("key", e.LocalKey), logger.Error(err))
		}
		if transitioned {
			metrics.RecordEventConfirmed(string(e.Kind))
			s.update(func(st *Stats) {
				if e.Kind == model.KindDeath {
					st.Deaths++
				} else {
					st.Kills++
				}
			})
			s.publishStats()
		}
		if live && transitioned && r.Outcome == model.OutcomeAccepted {
			s.hooks.OnAccepted(ctx, e, s.onClip)
		}
	case model.OutcomeFiltered:
		if err := s.store.Remove(ctx, e.LocalKey); err != nil {
			s.logger.Error(ctx, "failed to retract event", logger.String("key", e.LocalKey), logger.Error(err))
		}
		s.logger.Info(ctx, "event filtered by server", logger.String("key", e.LocalKey))
		s.update(func(st *Stats) {
			st.Filtered++
			st.StoreRecords = s.store.Count(ctx)
		})
		s.publish(feed.Message{Type: feed.TypeEventRetracted, Key: e.LocalKey})
	case model.OutcomeRejected:
		s.logger.Warn(ctx, "event rejected",
			logger.String("key", e.LocalKey),
			logger.Int("status", r.StatusCode),
			logger.String("reason", r.Reason))
		s.update(func(st *Stats) { st.Rejected++ })
		s.publish(feed.Message{Type: feed.TypeEventRejected, Key: e.LocalKey, Text: r.Reason})
	case model.OutcomeTransientError:
		s.logger.Warn(ctx, "submission failed",
			logger.String("key", e.LocalKey),
			logger.Int("attempts", r.Attempts),
			logger.String("reason", r.Reason))
	}

	if live {
		s.trackConnectivity(ctx, r)
		return
	}
	s.addToBatch(ctx, r)
}

// trackConnectivity counts consecutive live transient failures. Any other
// outcome proves the API reachable.
func (s *Service) trackConnectivity(ctx context.Context, r model.Result) {
	wasOnline := s.failures < offlineThreshold
	if r.Outcome == model.OutcomeTransientError {
		s.failures++
	} else {
		s.failures = 0
	}
	online := s.failures < offlineThreshold
	metrics.UpdateConsecutiveFailures(s.failures)
	s.update(func(st *Stats) {
		st.ConsecutiveFailures = s.failures
		st.Online = online
	})
	if online == wasOnline {
		return
	}
	state := "online"
	if !online {
		state = "offline"
		s.logger.Warn(ctx, "collection API unreachable", logger.Int("consecutive_failures", s.failures))
	} else {
		s.logger.Info(ctx, "collection API reachable again")
	}
	s.publish(feed.Message{Type: feed.TypeConnectivity, Text: state, Data: map[string]int{"consecutive_failures": s.failures}})
}

func (s *Service) handleClip(ctx context.Context, c clipUpdate) {
	if err := s.store.SetClipURL(ctx, c.key, c.url); err != nil {
		s.logger.Warn(ctx, "failed to attach clip", logger.String("key", c.key), logger.Error(err))
		return
	}
	s.publish(feed.Message{Type: feed.TypeClip, Key: c.key, Text: c.url})
}

// onClip runs on a hook goroutine and forwards the URL to the consumer.
func (s *Service) onClip(key, url string) {
	if !s.clips.TryPost(clipUpdate{key: key, url: url}) {
		s.logger.Warn(context.Background(), "clip update dropped", logger.String("key", key))
	}
}

func (s *Service) startBatch(ctx context.Context, b batchRequest) {
	for _, e := range b.events {
		if _, _, err := s.store.Upsert(ctx, e); err != nil {
			s.logger.Error(ctx, "failed to record rescanned event", logger.String("key", e.LocalKey), logger.Error(err))
		}
	}
	s.batches[b.id] = &batch{agg: aggregate.New(b.id, len(b.events)), done: b.done}
	s.update(func(st *Stats) {
		st.PendingBatches = len(s.batches)
		st.StoreRecords = s.store.Count(ctx)
	})
	s.dispatcher.SubmitBatch(ctx, b.id, b.events)
}

func (s *Service) addToBatch(ctx context.Context, r model.Result) {
	b, ok := s.batches[r.BatchID]
	if !ok {
		s.logger.Debug(ctx, "result for unknown batch", logger.String("batch", r.BatchID))
		return
	}
	sum, done := b.agg.Add(r)
	if !done {
		return
	}
	delete(s.batches, r.BatchID)
	s.update(func(st *Stats) { st.PendingBatches = len(s.batches) })

	s.logger.Info(ctx, sum.String(), logger.String("batch", sum.BatchID))
	s.publish(feed.Message{Type: feed.TypeSummary, Text: sum.String(), Data: sum})
	if b.done != nil {
		b.done <- sum
	}
}

// lookupOpponent fetches the other party's public profile off the consumer
// and publishes it when found.
func (s *Service) lookupOpponent(ctx context.Context, e model.Event) {
	if s.profiles == nil || s.pool == nil || s.feed == nil {
		return
	}
	handle := e.Victim
	if e.Kind == model.KindDeath {
		handle = e.Attacker
	}
	key := e.LocalKey
	s.pool.Submit(ctx, worker.Task{Name: "profile", Run: func(ctx context.Context) error {
		p, err := s.profiles.Get(ctx, handle)
		if errors.Is(err, profile.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		s.feed.Publish(feed.Message{Type: feed.TypeProfile, Key: key, Data: p})
		return nil
	}})
}

func (s *Service) update(fn func(*Stats)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
}

func (s *Service) publish(m feed.Message) {
	if s.feed != nil {
		s.feed.Publish(m)
	}
}

func (s *Service) publishStats() {
	if s.feed != nil {
		s.feed.Publish(feed.Message{Type: feed.TypeStats, Data: s.Stats()})
	}
}
