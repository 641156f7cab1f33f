package memory

import (
	"context"
	"sync"

	"loanflow/internal/audit"
)

// Store keeps entries in process, grouped by application.
type Store struct {
	mu      sync.RWMutex
	entries map[string][]audit.Entry
	order   []audit.Entry
}

func New() *Store {
	return &Store{entries: make(map[string][]audit.Entry)}
}

func (s *Store) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ApplicationID] = append(s.entries[entry.ApplicationID], entry)
	s.order = append(s.order, entry)
	return nil
}

// ListByApplication returns entries for one application in append order.
func (s *Store) ListByApplication(_ context.Context, applicationID string) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Entry{}, s.entries[applicationID]...), nil
}

// ListRecent returns up to limit of the most recently appended entries.
func (s *Store) ListRecent(_ context.Context, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := max(len(s.order)-limit, 0)
	return append([]audit.Entry{}, s.order[start:]...), nil
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string][]audit.Entry)
	s.order = nil
}
