package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process, for tests and single-node runs
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record), now: time.Now}
}

func (s *MemoryStore) Acquire(_ context.Context, rec *Record, staleBefore time.Time) (*Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[rec.ID]
	if ok && stored.ExpiresAt.Before(s.now()) {
		ok = false
	}
	if ok && (stored.Completed() || !stored.LockedAt.Before(staleBefore)) {
		return &stored, false, nil
	}
	s.records[rec.ID] = *rec
	return rec, true, nil
}

func (s *MemoryStore) Complete(_ context.Context, id string, status int, contentType string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil
	}
	done := s.now().UTC()
	rec.Status, rec.ContentType, rec.CompletedAt = status, contentType, &done
	rec.Body = append([]byte(nil), body...)
	s.records[id] = rec
	return nil
}

func (s *MemoryStore) Release(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[id]; ok && !rec.Completed() {
		delete(s.records, id)
	}
	return nil
}
