package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/clinicaccess/pkg/rbac"
)

// RedisSnapshotter keeps the newest snapshot as JSON under a single key
type RedisSnapshotter struct {
	client *redis.Client
	key    string
}

// NewRedisSnapshotter wraps an existing client
func NewRedisSnapshotter(client *redis.Client, key string) *RedisSnapshotter {
	return &RedisSnapshotter{client: client, key: key}
}

// OpenRedis connects to url and checks the connection
func OpenRedis(ctx context.Context, url string, db int, key string) (*RedisSnapshotter, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if db > 0 {
		opts.DB = db
	}

	// Set connection timeouts
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisSnapshotter(client, key), nil
}

// Save overwrites the stored snapshot
func (s *RedisSnapshotter) Save(ctx context.Context, snap rbac.Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Load reads the stored snapshot
func (s *RedisSnapshotter) Load(ctx context.Context) (*rbac.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return decodeSnapshot(data)
}

// Ping checks Redis connectivity
func (s *RedisSnapshotter) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Backend returns "redis"
func (s *RedisSnapshotter) Backend() string { return "redis" }

// Close closes the Redis connection
func (s *RedisSnapshotter) Close() error {
	return s.client.Close()
}
