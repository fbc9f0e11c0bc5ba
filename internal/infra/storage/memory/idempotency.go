package memory

import (
	"context"
	"sync"
	"time"

	"rentalspot/internal/app/middleware"
)

// IdempotencyStore keeps command results in process with the same contract
// as the redis and mongo stores: the first result under a key wins and
// expires after ttl. A zero ttl keeps records forever.
type IdempotencyStore struct {
	mu    sync.Mutex
	items map[string]idempotencyEntry
	ttl   time.Duration
	now   func() time.Time
}

type idempotencyEntry struct {
	rec       middleware.IdempotencyRecord
	expiresAt time.Time
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{items: map[string]idempotencyEntry{}, ttl: ttl, now: time.Now}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok {
		return middleware.IdempotencyRecord{}, false, nil
	}
	if s.expired(e) {
		delete(s.items, key)
		return middleware.IdempotencyRecord{}, false, nil
	}
	return e.rec, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.items[rec.Key]; ok && !s.expired(e) {
		return nil
	}
	e := idempotencyEntry{rec: rec}
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}
	s.items[rec.Key] = e
	return nil
}

func (s *IdempotencyStore) expired(e idempotencyEntry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
