package repository

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/okian/killfeed/internal/domain/model"
	"github.com/okian/killfeed/pkg/logger"
	"github.com/okian/killfeed/pkg/metrics"
)

// DefaultFileName is the store file name inside the data directory.
const DefaultFileName = "local_store.json"

// JSONStore keeps records in memory and rewrites the whole file on every
// mutation. Writes go to a temp file that is renamed over the target, so the
// file on disk is always a complete snapshot.
type JSONStore struct {
	path string
	log  logger.Logger
	now  func() time.Time

	mu      sync.RWMutex
	records map[string]model.Record
	closed  bool
}

var _ Store = (*JSONStore)(nil)

// NewJSONStore opens the store at path, creating parent directories. A file
// that cannot be decoded is logged and replaced by an empty store.
func NewJSONStore(ctx context.Context, path string, opts ...Option) (*JSONStore, error) {
	s := &JSONStore{
		path:    path,
		log:     logger.Nop(),
		now:     time.Now,
		records: make(map[string]model.Record),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read local store: %w", err)
	case len(data) > 0:
		if err := json.Unmarshal(data, &s.records); err != nil {
			s.log.Warn(ctx, "resetting local store",
				logger.String("path", path),
				logger.Error(fmt.Errorf("%w: %v", ErrCorruptStore, err)))
			metrics.RecordErrorByComponent("store", "corrupt")
			s.records = make(map[string]model.Record)
		}
	}
	if s.records == nil {
		s.records = make(map[string]model.Record)
	}
	metrics.UpdateStoreRecords(len(s.records))
	return s, nil
}

// Path returns the backing file path.
func (s *JSONStore) Path() string { return s.path }

func (s *JSONStore) Upsert(ctx context.Context, e model.Event) (model.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Record{}, false, ErrClosed
	}

	if rec, ok := s.records[e.LocalKey]; ok {
		return rec, false, nil
	}
	now := s.now().UTC()
	rec := model.Record{Event: e, CreatedAt: now, UpdatedAt: now}
	s.records[e.LocalKey] = rec
	return rec, true, s.persistLocked(ctx)
}

func (s *JSONStore) Get(_ context.Context, key string) (model.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	return rec, ok
}

func (s *JSONStore) Contains(_ context.Context, key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[key]
	return ok
}

func (s *JSONStore) MarkSent(ctx context.Context, key string, meta model.SentMeta) (model.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Record{}, false, ErrClosed
	}

	rec, ok := s.records[key]
	if !ok {
		return model.Record{}, false, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if rec.SentToAPI {
		return rec, false, nil
	}
	rec.SentToAPI = true
	rec.APIResponse = meta.APIResponse
	rec.APIID = meta.APIID
	rec.UpdatedAt = s.now().UTC()
	s.records[key] = rec
	return rec, true, s.persistLocked(ctx)
}

func (s *JSONStore) SetClipURL(ctx context.Context, key, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	rec, ok := s.records[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	rec.ClipURL = url
	rec.UpdatedAt = s.now().UTC()
	s.records[key] = rec
	return s.persistLocked(ctx)
}

func (s *JSONStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if _, ok := s.records[key]; !ok {
		return nil
	}
	delete(s.records, key)
	return s.persistLocked(ctx)
}

func (s *JSONStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.records = make(map[string]model.Record)
	return s.persistLocked(ctx)
}

func (s *JSONStore) Records(_ context.Context) []model.Record {
	s.mu.RLock()
	out := make([]model.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.Record) int {
		if c := cmp.Compare(a.Timestamp, b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.LocalKey, b.LocalKey)
	})
	return out
}

func (s *JSONStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close stops accepting mutations. The file stays on disk.
func (s *JSONStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Delete closes the store and removes its file. Used at the end of a
// monitoring session.
func (s *JSONStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.records = make(map[string]model.Record)
	metrics.UpdateStoreRecords(0)
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete local store: %w", err)
	}
	return nil
}

// persistLocked writes the snapshot. Caller holds s.mu.
func (s *JSONStore) persistLocked(ctx context.Context) error {
	metrics.UpdateStoreRecords(len(s.records))

	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return s.writeFailed(ctx, err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return s.writeFailed(ctx, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return s.writeFailed(ctx, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return s.writeFailed(ctx, err)
	}
	if err := tmp.Close(); err != nil {
		return s.writeFailed(ctx, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return s.writeFailed(ctx, err)
	}
	return nil
}

func (s *JSONStore) writeFailed(ctx context.Context, err error) error {
	metrics.RecordStoreWriteError()
	metrics.RecordErrorByComponent("store", "write")
	s.log.Error(ctx, "local store write failed", logger.String("path", s.path), logger.Error(err))
	return fmt.Errorf("%w: %v", ErrPersist, err)
}
