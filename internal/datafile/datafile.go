// Package datafile serves a read-only dataset from a JSON or YAML fixture
// file and reloads it when the file changes on disk.
package datafile

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/alertdash/internal/alert"
	"github.com/linnemanlabs/alertdash/internal/summary"
)

// Load reads and validates every record in the file at path. Files ending
// in .yaml or .yml are decoded as YAML, anything else as JSON.
func Load(path string) ([]alert.Record, error) {
	b, err := os.ReadFile(path) //nolint:gosec // path is operator configuration
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}

	var records []alert.Record
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		records, err = alert.DecodeYAMLRecords(bytes.NewReader(b))
	default:
		records, err = alert.DecodeRecords(bytes.NewReader(b))
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	for i := range records {
		if err := records[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", summary.ErrInvalidRecord, i, err)
		}
	}
	return records, nil
}

// Source is a dashboard.Source backed by a data file. The loaded records are
// held as an immutable snapshot that Reload swaps atomically.
type Source struct {
	path   string
	logger log.Logger

	snap atomic.Pointer[[]alert.Record]

	mu        sync.Mutex
	listeners []func(error)
}

// Open loads path and returns a Source serving it. Call Watch to follow
// later changes to the file.
func Open(path string, logger log.Logger) (*Source, error) {
	if logger == nil {
		logger = log.Nop()
	}
	s := &Source{path: path, logger: logger}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the watched file path.
func (s *Source) Path() string { return s.path }

// Records returns a copy of the current snapshot.
func (s *Source) Records(_ context.Context) ([]alert.Record, error) {
	snap := *s.snap.Load()
	out := make([]alert.Record, len(snap))
	for i := range snap {
		out[i] = snap[i].Clone()
	}
	return out, nil
}

// Reload re-reads the file. On failure the previous snapshot stays in place.
// Registered OnReload callbacks see the outcome either way.
func (s *Source) Reload() error {
	records, err := Load(s.path)
	if err == nil {
		s.snap.Store(&records)
	}

	s.mu.Lock()
	listeners := s.listeners
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(err)
	}
	return err
}

// OnReload registers fn to run after every reload attempt with its error.
func (s *Source) OnReload(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Watch follows the data file until ctx is done. The parent directory is
// watched so atomic replace-by-rename is picked up too. It returns once the
// watch is established.
func (s *Source) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}
	go s.watchLoop(ctx, w)
	return nil
}

func (s *Source) watchLoop(ctx context.Context, w *fsnotify.Watcher) {
	defer func() { _ = w.Close() }()

	name := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != name || (!ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create)) {
				continue
			}
			if err := s.Reload(); err != nil {
				s.logger.Warn(ctx, "data file reload failed, keeping previous dataset",
					"path", s.path, "error", err)
				continue
			}
			s.logger.Info(ctx, "data file reloaded", "path", s.path, "records", len(*s.snap.Load()))
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn(ctx, "data file watch error", "path", s.path, "error", err)
		}
	}
}
