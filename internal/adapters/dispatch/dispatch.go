// Package dispatch submits events to the collection API and reports each
// classified result back to the consumer as a message.
//
// Live submissions get one attempt; a transient failure is only reported.
// Bulk submissions are paced by a rate limiter and retry transient failures
// with capped exponential backoff.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/okian/killfeed/internal/adapters/remote"
	"github.com/okian/killfeed/internal/adapters/repository"
	"github.com/okian/killfeed/internal/domain/dedupe"
	"github.com/okian/killfeed/internal/domain/model"
	"github.com/okian/killfeed/pkg/logger"
	"github.com/okian/killfeed/pkg/metrics"
)

const (
	defaultStagger        = 500 * time.Millisecond
	defaultMaxAttempts    = 5
	defaultInitialBackoff = time.Second
	defaultMaxBackoff     = 30 * time.Second

	// inflightPoll is how often a bulk item rechecks a key held by another
	// submission.
	inflightPoll = 25 * time.Millisecond

	reasonAlreadySent = "already sent"
)

// Sink receives results. queue.Mailbox satisfies it.
type Sink interface {
	Post(ctx context.Context, r model.Result) bool
}

// Dispatcher owns the network side of event delivery. It reads the store to
// skip keys already sent but never writes to it; the consumer applies
// results.
type Dispatcher struct {
	client   remote.Submitter
	store    repository.Store
	results  Sink
	inflight dedupe.Deduper
	log      logger.Logger

	stagger        time.Duration
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration

	wg sync.WaitGroup
}

// New creates a Dispatcher posting results to sink.
func New(client remote.Submitter, store repository.Store, sink Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		client:         client,
		store:          store,
		results:        sink,
		inflight:       dedupe.NewInMemoryDeduper(),
		log:            logger.Nop(),
		stagger:        defaultStagger,
		maxAttempts:    defaultMaxAttempts,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit sends e once in the background. It returns false when e is already
// being submitted. A key the store marks as sent short-circuits to a
// Duplicate result without touching the network.
func (d *Dispatcher) Submit(ctx context.Context, e model.Event) bool {
	if rec, ok := d.store.Get(ctx, e.LocalKey); ok && rec.SentToAPI {
		d.post(ctx, model.Result{Event: e, Outcome: model.OutcomeDuplicate, Reason: reasonAlreadySent, APIID: rec.APIID}, metrics.PathLive)
		return true
	}
	if d.inflight.SeenAndRecord(ctx, e.LocalKey) {
		d.log.Debug(ctx, "submission already in flight", logger.String("key", e.LocalKey))
		return false
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.inflight.Unrecord(ctx, e.LocalKey)

		resp := d.client.Submit(ctx, e)
		d.post(ctx, toResult(e, resp, 1, ""), metrics.PathLive)
	}()
	return true
}

// SubmitBatch sends events in order, at most one start per stagger interval.
// Until ctx ends, every event produces exactly one result carrying batchID,
// so a consumer can count completions.
func (d *Dispatcher) SubmitBatch(ctx context.Context, batchID string, events []model.Event) {
	limiter := rate.NewLimiter(rate.Every(d.stagger), 1)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.log.Info(ctx, "bulk submission started",
			logger.String("batch", batchID),
			logger.Int("events", len(events)),
			logger.Duration("stagger", d.stagger))

		for _, e := range events {
			if err := limiter.Wait(ctx); err != nil {
				d.log.Warn(ctx, "bulk submission abandoned", logger.String("batch", batchID), logger.Error(err))
				return
			}
			if !d.claim(ctx, e.LocalKey) {
				d.log.Warn(ctx, "bulk submission abandoned", logger.String("batch", batchID), logger.Error(ctx.Err()))
				return
			}
			if rec, ok := d.store.Get(ctx, e.LocalKey); ok && rec.SentToAPI {
				d.inflight.Unrecord(ctx, e.LocalKey)
				d.post(ctx, model.Result{Event: e, Outcome: model.OutcomeDuplicate, Reason: reasonAlreadySent, APIID: rec.APIID, BatchID: batchID}, metrics.PathBulk)
				continue
			}

			d.wg.Add(1)
			go func(e model.Event) {
				defer d.wg.Done()
				defer d.inflight.Unrecord(ctx, e.LocalKey)
				d.post(ctx, d.submitWithRetry(ctx, batchID, e), metrics.PathBulk)
			}(e)
		}
	}()
}

// claim waits until no other submission holds key, then holds it. It
// returns false when ctx ends first.
func (d *Dispatcher) claim(ctx context.Context, key string) bool {
	for d.inflight.SeenAndRecord(ctx, key) {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(inflightPoll):
		}
	}
	return true
}

// Wait blocks until every background submission has finished.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) submitWithRetry(ctx context.Context, batchID string, e model.Event) model.Result {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.initialBackoff
	b.MaxInterval = d.maxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	var (
		resp     remote.Response
		attempts int
	)
	op := func() error {
		attempts++
		resp = d.client.Submit(ctx, e)
		if resp.Outcome == model.OutcomeTransientError {
			return errors.New(resp.Reason)
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		metrics.RecordDispatchRetry()
		d.log.Debug(ctx, "retrying submission",
			logger.String("key", e.LocalKey),
			logger.Int("attempt", attempts),
			logger.Duration("wait", wait),
			logger.Error(err))
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(d.maxAttempts-1)), ctx)
	_ = backoff.RetryNotify(op, policy, notify)
	return toResult(e, resp, attempts, batchID)
}

func (d *Dispatcher) post(ctx context.Context, r model.Result, path string) {
	metrics.RecordDispatchOutcome(string(r.Event.Kind), r.Outcome.String(), path)
	if !d.results.Post(ctx, r) {
		d.log.Debug(ctx, "result dropped", logger.String("key", r.Event.LocalKey), logger.String("outcome", r.Outcome.String()))
	}
}

func toResult(e model.Event, resp remote.Response, attempts int, batchID string) model.Result {
	metrics.RecordDispatchLatency(float64(resp.Latency.Milliseconds()))
	return model.Result{
		Event:      e,
		Outcome:    resp.Outcome,
		Reason:     resp.Reason,
		APIID:      resp.APIID,
		Body:       resp.Body,
		StatusCode: resp.StatusCode,
		Attempts:   attempts,
		BatchID:    batchID,
	}
}
