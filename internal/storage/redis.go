package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pfrederiksen/mothership-events/internal/event"
)

const DefaultRedisPrefix = "mothership:event:"

// RedisStore keeps one hash per event under prefix+identity
type RedisStore struct {
	client *redis.Client
	prefix string
	batch  bool
	now    func() time.Time

	pipe redis.Pipeliner
}

// NewRedisStore connects to redisURL and verifies the server answers
func NewRedisStore(ctx context.Context, redisURL, prefix string, batch bool) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() // nolint:errcheck
		return nil, unavailable("pinging redis", err)
	}

	return NewRedisStoreWithClient(client, prefix, batch), nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client *redis.Client, prefix string, batch bool) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		batch:  batch,
		now:    time.Now,
	}
}

func (s *RedisStore) key(hash string) string {
	return s.prefix + hash
}

func (s *RedisStore) Exists(ctx context.Context, hash string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(hash)).Result()
	if err != nil {
		return false, unavailable("redis exists", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Put(ctx context.Context, hash string, evt event.Event) error {
	fields := NewItem(hash, evt, s.now()).Fields()

	if !s.batch {
		if err := s.client.HSet(ctx, s.key(hash), fields).Err(); err != nil {
			return unavailable("redis hset", err)
		}
		return nil
	}

	if s.pipe == nil {
		s.pipe = s.client.Pipeline()
	}
	s.pipe.HSet(ctx, s.key(hash), fields)
	return nil
}

// Flush executes the queued HSETs in one round trip
func (s *RedisStore) Flush(ctx context.Context) error {
	if s.pipe == nil {
		return nil
	}
	pipe := s.pipe
	s.pipe = nil
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable("redis pipeline", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
