package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the watermark under a single key.
type RedisStore struct {
	client redis.Cmdable
	key    string
	Now    func() time.Time
}

func NewRedisStore(client redis.Cmdable, key string) *RedisStore {
	return &RedisStore{client: client, key: key, Now: time.Now}
}

// NewRedisStoreFromURL parses a redis:// URL and returns the store with its client.
func NewRedisStoreFromURL(url, key string) (*RedisStore, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("redis url: %w", err)
	}
	rc := redis.NewClient(opts)
	return NewRedisStore(rc, key), rc, nil
}

func (r *RedisStore) Load(ctx context.Context) (time.Time, error) {
	v, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return StartOfDay(r.Now()), nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return Parse(v)
}

func (r *RedisStore) Commit(ctx context.Context, t time.Time) error {
	if err := r.client.Set(ctx, r.key, Format(t), 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}
