package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"rentalspot/internal/app/middleware"
)

// IdempotencyStore keeps replayable command results in redis under
// prefix+key until ttl runs out.
type IdempotencyStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewIdempotencyStore(rdb redis.UniversalClient, prefix string, ttl time.Duration) *IdempotencyStore {
	if prefix == "" {
		prefix = "rentalspot:idem:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

type record struct {
	Command    string    `json:"command"`
	Payload    []byte    `json:"payload"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	raw, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return middleware.IdempotencyRecord{}, false, nil
		}
		return middleware.IdempotencyRecord{}, false, err
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	return middleware.IdempotencyRecord{Key: key, Command: rec.Command, Payload: rec.Payload, OccurredAt: rec.OccurredAt}, true, nil
}

// Save keeps the first result stored under a key; a concurrent duplicate
// does not overwrite it.
func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	data, err := json.Marshal(record{Command: rec.Command, Payload: rec.Payload, OccurredAt: rec.OccurredAt})
	if err != nil {
		return err
	}
	return s.rdb.SetNX(ctx, s.prefix+rec.Key, data, s.ttl).Err()
}

// Ping reports whether redis answers.
func (s *IdempotencyStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
