// Package app assembles the HTTP application and its runtime dependencies.
package app

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"mithai/internal/handlers"
	"mithai/internal/middleware"
	"mithai/internal/services"
)

// Deps are the collaborators the HTTP application is built from.
type Deps struct {
	APIPrefix      string
	Auth           *services.AuthService
	Sweets         *services.SweetService
	Idempotency    middleware.IdempotencyStore
	IdempotencyTTL time.Duration
	Checks         map[string]handlers.ReadinessCheck
	Log            zerolog.Logger
}

// NewApp builds the fiber application. API routes are mounted under
// d.APIPrefix; probes and metrics are always at the root.
func NewApp(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "mithai",
		ErrorHandler:          handlers.ErrorHandler(d.Log),
		DisableStartupMessage: true,
	})

	// the request logger sits outside recover so panics are logged as 500s
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(d.Log))
	app.Use(recover.New())
	app.Use(cors.New())

	handlers.NewHealthHandler(d.Checks).RegisterRoutes(app)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	var api fiber.Router = app
	if d.APIPrefix != "" {
		api = app.Group(d.APIPrefix)
	}

	var idempotent fiber.Handler
	if d.Idempotency != nil {
		idempotent = middleware.Idempotency(d.Idempotency, d.IdempotencyTTL, d.Log)
	}

	handlers.NewAuthHandler(d.Auth).RegisterRoutes(api)
	handlers.NewSweetHandler(d.Sweets, d.Auth, idempotent).RegisterRoutes(api)

	return app
}
