package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"mithai/internal/cache"
	"mithai/internal/config"
	"mithai/internal/database"
	"mithai/internal/handlers"
	"mithai/internal/repositories"
	"mithai/internal/services"
	"mithai/pkg/rabbitmq"
)

// Store is the persistence layer selected by DB_DRIVER.
type Store struct {
	Users  repositories.UserRepository
	Sweets repositories.SweetRepository
	db     *gorm.DB
}

// OpenStore opens the configured store. The "memory" driver keeps
// everything in process and loses it on exit.
func OpenStore(cfg *config.Config) (*Store, error) {
	if cfg.DBDriver == "memory" {
		return &Store{
			Users:  repositories.NewMemoryUserRepository(),
			Sweets: repositories.NewMemorySweetRepository(),
		}, nil
	}
	db, err := database.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	return &Store{
		Users:  repositories.NewGORMUserRepository(db),
		Sweets: repositories.NewGORMSweetRepository(db),
		db:     db,
	}, nil
}

// Ping reports whether the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return database.Ping(ctx, s.db)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return database.Close(s.db)
}

// Runtime is a fully wired service ready to serve.
type Runtime struct {
	App    *fiber.App
	Store  *Store
	Auth   *services.AuthService
	Sweets *services.SweetService
	Seeder *services.Seeder

	closers []func() error
}

// NewAuthService builds the auth service from configuration.
func NewAuthService(cfg *config.Config, users repositories.UserRepository, log zerolog.Logger) *services.AuthService {
	return services.NewAuthService(users, cfg.JWTSecret,
		services.WithTokenTTL(cfg.TokenTTL),
		services.WithAdminMarker(cfg.AdminEmailMarker),
		services.WithAuthLogger(log.With().Str("component", "auth").Logger()),
	)
}

// Build opens every configured dependency and assembles the application.
// Optional integrations (RabbitMQ, Redis) are skipped when their address is
// empty and fail the build when configured but unreachable.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Runtime, error) {
	rt := &Runtime{}

	store, err := OpenStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	rt.Store = store
	rt.closers = append(rt.closers, store.Close)

	checks := map[string]handlers.ReadinessCheck{"database": store.Ping}

	var publisher services.EventPublisher = services.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Queue: cfg.RabbitMQQueue})
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, mq.Close)
		publisher = mq
		log.Info().Str("queue", cfg.RabbitMQQueue).Msg("publishing inventory events")
	}

	var idempotency *cache.IdempotencyStore
	if cfg.RedisAddr != "" {
		client, err := cache.Connect(ctx, cache.Config{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, client.Close)
		idempotency = cache.NewIdempotencyStore(client)
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		log.Info().Str("addr", cfg.RedisAddr).Msg("idempotency keys enabled")
	}

	rt.Auth = NewAuthService(cfg, store.Users, log)
	rt.Sweets = services.NewSweetService(store.Sweets, publisher, log.With().Str("component", "sweets").Logger())
	rt.Seeder = services.NewSeeder(rt.Auth, store.Sweets, log.With().Str("component", "seed").Logger())

	deps := Deps{
		APIPrefix:      cfg.APIPrefix,
		Auth:           rt.Auth,
		Sweets:         rt.Sweets,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Checks:         checks,
		Log:            log,
	}
	// a typed nil must not reach the interface
	if idempotency != nil {
		deps.Idempotency = idempotency
	}
	rt.App = NewApp(deps)
	return rt, nil
}

// Close releases every dependency in reverse order of acquisition.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
