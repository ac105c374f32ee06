// Package aggregate folds the results of one bulk submission into a single
// summary.
package aggregate

import (
	"fmt"
	"strings"

	"github.com/okian/killfeed/internal/domain/model"
)

// KeyError is a failed submission.
type KeyError struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Summary is the completion report of one batch.
type Summary struct {
	BatchID    string     `json:"batch_id"`
	Size       int        `json:"size"`
	New        []string   `json:"new"`
	Duplicates []string   `json:"duplicates"`
	Filtered   []string   `json:"filtered"`
	Errors     []KeyError `json:"errors"`
}

// String renders the summary for a terminal or a notification.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Resubmitted %d event(s): %d new, %d already recorded, %d filtered, %d failed",
		s.Size, len(s.New), len(s.Duplicates), len(s.Filtered), len(s.Errors))
	for _, e := range s.Errors {
		fmt.Fprintf(&b, "\n  %s: %s", e.Key, e.Reason)
	}
	return b.String()
}

// Aggregator counts results for one batch. It is owned by one goroutine.
type Aggregator struct {
	summary   Summary
	seen      map[string]struct{}
	processed int
	done      bool
}

// New creates an Aggregator expecting size results.
func New(batchID string, size int) *Aggregator {
	return &Aggregator{
		summary: Summary{BatchID: batchID, Size: size},
		seen:    make(map[string]struct{}, size),
	}
}

// BatchID returns the batch this aggregator belongs to.
func (a *Aggregator) BatchID() string { return a.summary.BatchID }

// Done reports whether the summary has been emitted.
func (a *Aggregator) Done() bool { return a.done }

// Processed returns how many distinct results were counted.
func (a *Aggregator) Processed() int { return a.processed }

// Add counts r. The summary is returned exactly once, on the result that
// brings the processed count to the batch size. Results for other batches,
// repeats for a counted key, and anything after completion are ignored.
func (a *Aggregator) Add(r model.Result) (Summary, bool) {
	if a.done || r.BatchID != a.summary.BatchID {
		return Summary{}, false
	}
	key := r.Event.LocalKey
	if _, dup := a.seen[key]; dup {
		return Summary{}, false
	}
	a.seen[key] = struct{}{}
	a.processed++

	switch r.Outcome {
	case model.OutcomeAccepted:
		a.summary.New = append(a.summary.New, key)
	case model.OutcomeDuplicate:
		a.summary.Duplicates = append(a.summary.Duplicates, key)
	case model.OutcomeFiltered:
		a.summary.Filtered = append(a.summary.Filtered, key)
	default:
		reason := r.Reason
		if reason == "" {
			reason = r.Outcome.String()
		}
		a.summary.Errors = append(a.summary.Errors, KeyError{Key: key, Reason: reason})
	}

	if a.processed < a.summary.Size {
		return Summary{}, false
	}
	a.done = true
	return a.summary, true
}
