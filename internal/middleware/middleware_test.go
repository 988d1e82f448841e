package middleware_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mithai/internal/handlers"
	"mithai/internal/middleware"
	"mithai/internal/models"
	"mithai/internal/repositories"
	"mithai/internal/services"
)

func newAuthService() *services.AuthService {
	return services.NewAuthService(repositories.NewMemoryUserRepository(), "middleware_test_secret")
}

func tokenFor(t *testing.T, auth *services.AuthService, id uint, role models.Role) string {
	t.Helper()
	token, err := auth.IssueToken(models.Identity{ID: id, Email: "someone@example.com", Role: role})
	require.NoError(t, err)
	return token
}

func send(t *testing.T, app *fiber.App, method, path string, headers map[string]string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, string(body)
}

func TestAuthRequired(t *testing.T) {
	auth := newAuthService()
	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(zerolog.Nop())})
	app.Get("/me", middleware.AuthRequired(auth), func(c *fiber.Ctx) error {
		return c.JSON(middleware.IdentityFrom(c))
	})

	resp, _ := send(t, app, http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = send(t, app, http.MethodGet, "/me", map[string]string{"Authorization": "Basic dXNlcjpwYXNz"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = send(t, app, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	other := services.NewAuthService(repositories.NewMemoryUserRepository(), "another_secret")
	resp, _ = send(t, app, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer " + tokenFor(t, other, 1, models.RoleUser)})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := send(t, app, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer " + tokenFor(t, auth, 7, models.RoleUser)})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"id":7`)
	assert.Contains(t, body, `"role":"user"`)
}

func TestRequireRole(t *testing.T) {
	auth := newAuthService()
	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(zerolog.Nop())})
	app.Delete("/sweets/1", middleware.AuthRequired(auth), middleware.RequireRole(auth, models.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, _ := send(t, app, http.MethodDelete, "/sweets/1", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = send(t, app, http.MethodDelete, "/sweets/1", map[string]string{"Authorization": "Bearer " + tokenFor(t, auth, 1, models.RoleUser)})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = send(t, app, http.MethodDelete, "/sweets/1", map[string]string{"Authorization": "Bearer " + tokenFor(t, auth, 2, models.RoleAdmin)})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]middleware.StoredResponse
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string]middleware.StoredResponse)}
}

func (s *memoryStore) Get(_ context.Context, key string) (*middleware.StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	return &resp, nil
}

func (s *memoryStore) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; ok {
		return false, nil
	}
	s.entries[key] = middleware.StoredResponse{Pending: true}
	return true, nil
}

func (s *memoryStore) Put(_ context.Context, key string, resp middleware.StoredResponse, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = resp
	return nil
}

func (s *memoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func TestIdempotencyReplaysSuccessfulResponses(t *testing.T) {
	auth := newAuthService()
	store := newMemoryStore()
	calls := 0
	fail := false

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(zerolog.Nop())})
	app.Post("/sweets/:id/purchase",
		middleware.AuthRequired(auth),
		middleware.Idempotency(store, time.Minute, zerolog.Nop()),
		func(c *fiber.Ctx) error {
			calls++
			if fail {
				return models.ErrInsufficientStock
			}
			return c.JSON(fiber.Map{"call": calls})
		})

	alice := map[string]string{"Authorization": "Bearer " + tokenFor(t, auth, 1, models.RoleUser), middleware.IdempotencyKeyHeader: "k-1"}

	resp, body := send(t, app, http.MethodPost, "/sweets/1/purchase", alice)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"call":1}`, body)
	assert.Empty(t, resp.Header.Get(middleware.ReplayedHeader))

	resp, body = send(t, app, http.MethodPost, "/sweets/1/purchase", alice)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"call":1}`, body)
	assert.Equal(t, "true", resp.Header.Get(middleware.ReplayedHeader))
	assert.True(t, strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON))
	assert.Equal(t, 1, calls)

	// keys are scoped per caller and per route
	bob := map[string]string{"Authorization": "Bearer " + tokenFor(t, auth, 2, models.RoleUser), middleware.IdempotencyKeyHeader: "k-1"}
	_, body = send(t, app, http.MethodPost, "/sweets/1/purchase", bob)
	assert.Equal(t, `{"call":2}`, body)
	_, body = send(t, app, http.MethodPost, "/sweets/2/purchase", alice)
	assert.Equal(t, `{"call":3}`, body)

	// failures are not stored, so the same key can be retried
	fail = true
	failing := map[string]string{"Authorization": alice["Authorization"], middleware.IdempotencyKeyHeader: "k-2"}
	resp, _ = send(t, app, http.MethodPost, "/sweets/1/purchase", failing)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	fail = false
	resp, body = send(t, app, http.MethodPost, "/sweets/1/purchase", failing)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"call":5}`, body)

	// no key, no replay
	noKey := map[string]string{"Authorization": alice["Authorization"]}
	_, body = send(t, app, http.MethodPost, "/sweets/1/purchase", noKey)
	assert.Equal(t, `{"call":6}`, body)
}

func TestIdempotencyRejectsRepeatWhileFirstRuns(t *testing.T) {
	auth := newAuthService()
	store := newMemoryStore()
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(zerolog.Nop())})
	app.Post("/sweets/:id/purchase",
		middleware.AuthRequired(auth),
		middleware.Idempotency(store, time.Minute, zerolog.Nop()),
		func(c *fiber.Ctx) error {
			if calls.Add(1) == 1 {
				close(entered)
				<-release
			}
			return c.JSON(fiber.Map{"remaining": 19})
		})

	headers := map[string]string{"Authorization": "Bearer " + tokenFor(t, auth, 1, models.RoleUser), middleware.IdempotencyKeyHeader: "retry-1"}

	type result struct {
		status int
		body   string
	}
	first := make(chan result, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/sweets/1/purchase", nil)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := app.Test(req, -1)
		if err != nil {
			first <- result{}
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		first <- result{status: resp.StatusCode, body: string(body)}
	}()

	<-entered
	resp, body := send(t, app, http.MethodPost, "/sweets/1/purchase", headers)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body, "still in progress")

	close(release)
	res := <-first
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, `{"remaining":19}`, res.body)

	resp, body = send(t, app, http.MethodPost, "/sweets/1/purchase", headers)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get(middleware.ReplayedHeader))
	assert.Equal(t, `{"remaining":19}`, body)
	assert.Equal(t, int32(1), calls.Load())
}

func TestIdempotencyWithoutStoreIsPassThrough(t *testing.T) {
	calls := 0
	app := fiber.New()
	app.Post("/checkout", middleware.Idempotency(nil, time.Minute, zerolog.Nop()), func(c *fiber.Ctx) error {
		calls++
		return c.SendStatus(fiber.StatusOK)
	})

	headers := map[string]string{middleware.IdempotencyKeyHeader: "k"}
	send(t, app, http.MethodPost, "/checkout", headers)
	send(t, app, http.MethodPost, "/checkout", headers)
	assert.Equal(t, 2, calls)
}

func TestRequestLoggerRendersErrors(t *testing.T) {
	var buf strings.Builder
	log := zerolog.New(&buf)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(zerolog.Nop())})
	app.Use(middleware.RequestLogger(log))
	app.Get("/missing", func(c *fiber.Ctx) error { return models.ErrSweetNotFound })

	resp, body := send(t, app, http.MethodGet, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "Sweet not found")
	assert.Contains(t, buf.String(), `"status":404`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}
