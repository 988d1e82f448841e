package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"mithai/internal/metrics"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"
)

// StoredResponse is a response captured for replay. A pending entry marks a
// key whose first request is still running.
type StoredResponse struct {
	Pending     bool   `json:"pending,omitempty"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// IdempotencyStore persists responses keyed by idempotency key.
type IdempotencyStore interface {
	// Claim atomically marks key as pending. It reports false when the key
	// is already claimed or holds a stored response.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Get returns the entry under key, or nil, nil when there is none.
	Get(ctx context.Context, key string) (*StoredResponse, error)
	// Put replaces the entry under key with a final response.
	Put(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error
	// Release drops the claim so the key can be used again.
	Release(ctx context.Context, key string) error
}

// Idempotency makes purchase-like routes safe to retry. The first request
// with a given Idempotency-Key claims it before running; a repeat while it
// runs gets 409, a repeat after a 2xx gets the stored response replayed.
// Failed attempts release the key so the caller can retry. With a nil store
// it does nothing.
func Idempotency(store IdempotencyStore, ttl time.Duration, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(IdempotencyKeyHeader)
		if store == nil || key == "" {
			return c.Next()
		}

		ctx := c.UserContext()
		scoped := fmt.Sprintf("idem:%d:%s:%s", IdentityFrom(c).ID, c.Path(), key)

		claimed, err := store.Claim(ctx, scoped, ttl)
		if err != nil {
			log.Warn().Err(err).Msg("idempotency claim failed")
			return c.Next()
		}
		if !claimed {
			return replay(c, store, scoped)
		}

		chainErr := c.Next()
		status := c.Response().StatusCode()
		if chainErr != nil || status < 200 || status >= 300 {
			if err := store.Release(ctx, scoped); err != nil {
				log.Warn().Err(err).Msg("idempotency release failed")
			}
			return chainErr
		}

		resp := StoredResponse{
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
		}
		if err := store.Put(ctx, scoped, resp, ttl); err != nil {
			log.Warn().Err(err).Msg("idempotency store failed")
		}
		return nil
	}
}

func replay(c *fiber.Ctx, store IdempotencyStore, key string) error {
	cached, err := store.Get(c.UserContext(), key)
	if err != nil {
		return err
	}
	// a claim that vanished between Claim and Get belongs to a request that
	// just failed; the caller retries
	if cached == nil || cached.Pending {
		return fiber.NewError(fiber.StatusConflict, "A request with this Idempotency-Key is still in progress")
	}

	metrics.IdempotentReplaysTotal.Inc()
	c.Set(ReplayedHeader, "true")
	if cached.ContentType != "" {
		c.Set(fiber.HeaderContentType, cached.ContentType)
	}
	return c.Status(cached.Status).Send(cached.Body)
}
