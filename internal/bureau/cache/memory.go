package cache

import (
	"context"
	"sync"
	"time"

	"loanflow/internal/bureau"
	"loanflow/pkg/platform/sentinel"
)

type memoryEntry struct {
	report   bureau.CreditReport
	storedAt time.Time
}

// MemoryStore is the in-process Store used when Redis is not configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, pan string) (*bureau.CreditReport, error) {
	key := normalizeKey(pan)
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if expired(entry.storedAt, s.now(), s.ttl) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, sentinel.ErrNotFound
	}
	out := entry.report
	return &out, nil
}

func (s *MemoryStore) Put(_ context.Context, report *bureau.CreditReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[normalizeKey(report.PAN)] = memoryEntry{report: *report, storedAt: s.now()}
	return nil
}
