package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mithai/internal/middleware"
)

const defaultTimeout = 5 * time.Second

// Config captures the settings for establishing a Redis connection.
type Config struct {
	Addr    string
	DB      int
	Timeout time.Duration
}

// Connect initialises a Redis client and validates connectivity with a ping.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

// IdempotencyStore keeps replayable responses in Redis.
type IdempotencyStore struct {
	client redis.Cmdable
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)

// NewIdempotencyStore wraps the given Redis client.
func NewIdempotencyStore(client redis.Cmdable) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

// Claim marks key as pending with SETNX. It reports false when another
// request already holds the key.
func (s *IdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	raw, err := json.Marshal(middleware.StoredResponse{Pending: true})
	if err != nil {
		return false, err
	}
	ok, err := s.client.SetNX(ctx, key, raw, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency claim: %w", err)
	}
	return ok, nil
}

// Get returns the entry for key, or nil when there is none.
func (s *IdempotencyStore) Get(ctx context.Context, key string) (*middleware.StoredResponse, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency get: %w", err)
	}
	var resp middleware.StoredResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("idempotency decode: %w", err)
	}
	return &resp, nil
}

// Put overwrites the pending claim with the final response.
func (s *IdempotencyStore) Put(ctx context.Context, key string, resp middleware.StoredResponse, ttl time.Duration) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, raw, ttl).Err()
}

// Release deletes the key.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
