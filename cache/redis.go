package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.trai.ch/zerr"
)

// RedisStore keeps gob-encoded entries in Redis, shared by every process using the same server.
type RedisStore struct {
	client redis.UniversalClient
	// Redis TTL for written keys. Zero keeps keys until Redis evicts them.
	retention time.Duration
}

func NewRedisStore(client redis.UniversalClient, retention time.Duration) *RedisStore {
	if retention < 0 {
		retention = 0
	}
	return &RedisStore{client: client, retention: retention}
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, zerr.Wrap(err, "failed to read redis cache")
	}
	entry, err := decodeEntry(b)
	if err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, entry Entry) error {
	b, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, b, s.retention).Err(); err != nil {
		return zerr.Wrap(err, "failed to write redis cache")
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
