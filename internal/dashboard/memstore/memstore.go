// Package memstore provides an in-memory implementation of dashboard.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/alertdash/internal/alert"
)

// Store holds alert records in memory. Suitable for dev/testing.
type Store struct {
	mu      sync.RWMutex
	records map[string]*alert.Record // record ID -> record
	order   []string                 // IDs in first-insert order
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		records: make(map[string]*alert.Record),
	}
}

// Get retrieves a record by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*alert.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	cp := r.Clone()
	return &cp, true, nil
}

// Put stores a copy of the record. Re-putting an ID replaces the record in
// place and keeps its original position.
func (s *Store) Put(_ context.Context, r *alert.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(r)
	return nil
}

// PutBatch stores copies of records under a single lock.
func (s *Store) PutBatch(_ context.Context, records []alert.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range records {
		s.put(&records[i])
	}
	return nil
}

func (s *Store) put(r *alert.Record) {
	cp := r.Clone()
	if _, ok := s.records[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	s.records[r.ID] = &cp
}

// Records returns copies of every record in insertion order.
func (s *Store) Records(_ context.Context) ([]alert.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]alert.Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].Clone())
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order), nil
}
