// Package logtail follows a growing log file across rotations.
//
// The first time the file is opened it is replayed from the start with every
// line flagged as backfill, so the consumer can rebuild session state without
// emitting events. After that the tailer polls for new data. When a read hits
// the end of the file, the open handle is compared with a fresh stat of the
// path; a different file or a shrunken one is reopened from offset zero
// without another backfill.
package logtail

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/okian/killfeed/pkg/logger"
	"github.com/okian/killfeed/pkg/metrics"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	defaultRetryDelay   = time.Second
	readBufferSize      = 64 * 1024
)

// State is the tailer lifecycle phase.
type State int32

const (
	StateOpening State = iota
	StateBackfill
	StateStreaming
	StateRotated
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateBackfill:
		return "backfill"
	case StateStreaming:
		return "streaming"
	case StateRotated:
		return "rotated"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Line is one complete log line without its terminator.
type Line struct {
	Text     string
	Backfill bool
}

// Tailer streams lines from a single path. A Tailer runs once.
type Tailer struct {
	path         string
	pollInterval time.Duration
	retryDelay   time.Duration
	skipBackfill bool
	log          logger.Logger

	state      atomic.Int32
	rotations  atomic.Int64
	backfilled bool

	// resume point after a read error on the same file
	lastInfo   os.FileInfo
	lastOffset int64
}

// New creates a Tailer for path.
func New(path string, opts ...Option) *Tailer {
	t := &Tailer{
		path:         path,
		pollInterval: defaultPollInterval,
		retryDelay:   defaultRetryDelay,
		log:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.state.Store(int32(StateOpening))
	return t
}

// Path returns the tailed path.
func (t *Tailer) Path() string { return t.path }

// State returns the current phase.
func (t *Tailer) State() State { return State(t.state.Load()) }

// Rotations returns how many times the file was reopened after rotation.
func (t *Tailer) Rotations() int64 { return t.rotations.Load() }

func (t *Tailer) setState(s State) { t.state.Store(int32(s)) }

// Run delivers lines to out in file order until ctx is done. It never returns
// on I/O errors; those are logged and retried after the retry delay.
func (t *Tailer) Run(ctx context.Context, out chan<- Line) error {
	defer t.setState(StateStopped)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		f, info, err := t.open()
		if err != nil {
			t.fail(ctx, "open", err)
			if !sleep(ctx, t.retryDelay) {
				return nil
			}
			continue
		}

		err = t.follow(ctx, f, info, out)
		_ = f.Close()
		if err == nil || ctx.Err() != nil {
			return nil
		}
		t.fail(ctx, "read", err)
		if !sleep(ctx, t.retryDelay) {
			return nil
		}
	}
}

// open opens the path and, when it is still the file we were reading before
// a read error, seeks back to where we stopped.
func (t *Tailer) open() (*os.File, os.FileInfo, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrFileUnavailable, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("%w: %v", ErrFileUnavailable, err)
	}

	var offset int64
	if t.lastInfo != nil && os.SameFile(t.lastInfo, info) && info.Size() >= t.lastOffset {
		offset = t.lastOffset
	} else if !t.backfilled && t.skipBackfill {
		offset = info.Size()
		t.backfilled = true
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("%w: %v", ErrFileUnavailable, err)
		}
	}
	t.lastInfo = info
	t.lastOffset = offset
	return f, info, nil
}

// follow reads f until it is rotated (returns nil), ctx ends (returns nil)
// or a read fails (returns the error).
func (t *Tailer) follow(ctx context.Context, f *os.File, opened os.FileInfo, out chan<- Line) error {
	backfill := !t.backfilled
	if backfill {
		t.setState(StateBackfill)
		t.log.Info(ctx, "replaying log backlog", logger.String("path", t.path))
	} else {
		t.setState(StateStreaming)
	}

	r := bufio.NewReaderSize(f, readBufferSize)
	var partial strings.Builder

	for {
		chunk, err := r.ReadString('\n')
		if chunk != "" {
			if !strings.HasSuffix(chunk, "\n") {
				partial.WriteString(chunk)
			} else {
				text := chunk
				if partial.Len() > 0 {
					partial.WriteString(chunk)
					text = partial.String()
					partial.Reset()
				}
				// only whole lines count, so a resume re-reads a pending partial
				t.lastOffset += int64(len(text))
				if !t.emit(ctx, out, Line{Text: strings.TrimRight(text, "\r\n"), Backfill: backfill}) {
					return nil
				}
			}
		}

		switch {
		case err == nil:
			continue
		case !errors.Is(err, io.EOF):
			return fmt.Errorf("%w: %v", ErrFileUnavailable, err)
		}

		if backfill {
			backfill = false
			t.backfilled = true
			t.setState(StateStreaming)
			t.log.Info(ctx, "backlog replayed, streaming", logger.Int64("offset", t.lastOffset))
		}

		rotated, statErr := t.rotated(opened)
		switch {
		case statErr != nil:
			t.fail(ctx, "stat", statErr)
			if !sleep(ctx, t.retryDelay) {
				return nil
			}
			continue
		case rotated:
			t.setState(StateRotated)
			t.rotations.Add(1)
			t.lastInfo = nil
			t.lastOffset = 0
			metrics.RecordTailerRotation()
			t.log.Info(ctx, "log rotated, reopening", logger.String("path", t.path))
			return nil
		}

		if !sleep(ctx, t.pollInterval) {
			return nil
		}
	}
}

// rotated reports whether the path now names a different file, or the same
// file truncated below our read offset.
func (t *Tailer) rotated(opened os.FileInfo) (bool, error) {
	cur, err := os.Stat(t.path)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrFileUnavailable, err)
	}
	if !os.SameFile(opened, cur) {
		return true, nil
	}
	return cur.Size() < t.lastOffset, nil
}

func (t *Tailer) emit(ctx context.Context, out chan<- Line, l Line) bool {
	phase := metrics.PhaseStream
	if l.Backfill {
		phase = metrics.PhaseBackfill
	}
	select {
	case out <- l:
		metrics.RecordLineRead(phase)
		return true
	case <-ctx.Done():
		return false
	}
}

func (t *Tailer) fail(ctx context.Context, op string, err error) {
	metrics.RecordTailerError(op)
	metrics.RecordErrorByComponent("tailer", op)
	t.log.Warn(ctx, "log tail failed, retrying",
		logger.String("op", op),
		logger.String("path", t.path),
		logger.Duration("retry_in", t.retryDelay),
		logger.Error(err))
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
