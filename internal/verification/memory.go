package verification

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	rec     Record
	expires time.Time
}

// MemoryStore is an in-process Store with per-entry TTL.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[Key]memoryEntry
	now     func() time.Time
}

// NewMemoryStore returns a store whose entries expire after ttl (0 keeps them forever).
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, entries: map[Key]memoryEntry{}, now: time.Now}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Get(_ context.Context, key Key) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.entries, key)
		return nil, nil
	}
	rec := e.rec
	return &rec, nil
}

func (s *MemoryStore) Put(_ context.Context, key Key, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memoryEntry{rec: rec}
	if s.ttl > 0 {
		e.expires = s.now().Add(s.ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
