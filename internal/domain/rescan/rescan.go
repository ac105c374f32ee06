// Package rescan replays a whole log file to find events the local store
// has never seen.
package rescan

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/okian/killfeed/internal/domain/extract"
	"github.com/okian/killfeed/internal/domain/model"
	"github.com/okian/killfeed/internal/domain/patterns"
	"github.com/okian/killfeed/internal/domain/session"
	"github.com/okian/killfeed/pkg/metrics"
)

const maxLineSize = 1024 * 1024

// ErrUnreadable is returned when the log cannot be opened or read.
var ErrUnreadable = errors.New("log file unreadable")

// Scanner derives events from a full file using the same matching and
// filtering as the live path, with its own session state.
type Scanner struct {
	lib      *patterns.Library
	x        *extract.Extractor
	identity string
}

// New creates a Scanner filtering for identity.
func New(lib *patterns.Library, x *extract.Extractor, identity string) *Scanner {
	return &Scanner{lib: lib, x: x, identity: identity}
}

// Scan returns one item per event whose key contains does not report as
// present, in file order and without repeats.
func (s *Scanner) Scan(ctx context.Context, path string, contains func(key string) bool) ([]model.ReconciliationItem, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRescanDuration(float64(time.Since(start).Milliseconds()))
	}()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer f.Close()

	st := session.New(s.identity)
	seen := make(map[string]struct{})
	var items []model.ReconciliationItem

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := sc.Text()
		metrics.RecordLineRead(metrics.PhaseRescan)

		res, ok := s.lib.Match(ctx, line)
		if !ok {
			continue
		}
		if res.Kind != patterns.KindKillRecord {
			st.Apply(res)
			continue
		}
		for _, e := range s.x.Events(res.Kill, st, line) {
			if _, dup := seen[e.LocalKey]; dup {
				continue
			}
			seen[e.LocalKey] = struct{}{}
			if contains(e.LocalKey) {
				continue
			}
			items = append(items, model.ReconciliationItem{LocalKey: e.LocalKey, Event: e})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	metrics.UpdateRescanItems(len(items))
	return items, nil
}
