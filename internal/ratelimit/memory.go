package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/benvon/portfolio-chat/internal/models"
)

// MemoryStore keeps counter records in process memory.
// Suitable for a single server instance; records do not survive restarts.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]models.RateLimitRecord
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]models.RateLimitRecord)}
}

// Update runs fn under the store mutex.
func (s *MemoryStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current *models.RateLimitRecord
	if rec, ok := s.records[key]; ok {
		current = &rec
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if next != nil {
		next.Key = key
		s.records[key] = *next
	}
	return nil
}

// Get returns a copy of the record for key.
func (s *MemoryStore) Get(key string) (models.RateLimitRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	return rec, ok
}

// Len returns the number of records held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// PruneBefore drops records whose window started before cutoff.
func (s *MemoryStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	cutoffMs := cutoff.UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, rec := range s.records {
		if rec.WindowStart < cutoffMs {
			delete(s.records, key)
			n++
		}
	}
	return n, nil
}
