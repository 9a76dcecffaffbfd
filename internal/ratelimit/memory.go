package ratelimit

import (
	"context"
	"sync"
	"time"
)

type scanRecord struct {
	entityID  string
	category  string
	scannedAt time.Time
}

// MemoryStore is an in-process scan-history store for tests and local
// development. Records are appended, never removed.
type MemoryStore struct {
	mu      sync.Mutex
	records []scanRecord
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory scan-history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// SetClock overrides the record timestamp source. Tests use it to place
// records inside or outside the rolling window.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Record(_ context.Context, entityID, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, scanRecord{
		entityID:  entityID,
		category:  category,
		scannedAt: s.now(),
	})
	return nil
}

func (s *MemoryStore) CountSince(_ context.Context, entityID, category string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, r := range s.records {
		if r.entityID == entityID && r.category == category && !r.scannedAt.Before(since) {
			count++
		}
	}
	return count, nil
}
