package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	checks map[string]ReadinessCheck
}

// NewHealthHandler creates a HealthHandler. A nil check is skipped.
func NewHealthHandler(checks map[string]ReadinessCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// RegisterRoutes registers the probe routes.
func (h *HealthHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/health", h.HandleLiveness)
	router.Get("/health/ready", h.HandleReadiness)
}

// HandleLiveness always answers ok while the process serves requests.
func (h *HealthHandler) HandleLiveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// HandleReadiness runs every check and answers 503 if any fails.
func (h *HealthHandler) HandleReadiness(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := fiber.StatusOK
	results := make(fiber.Map, len(h.checks))
	for name, check := range h.checks {
		if check == nil {
			continue
		}
		if err := check(ctx); err != nil {
			status = fiber.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}

	state := "ready"
	if status != fiber.StatusOK {
		state = "unavailable"
	}
	return c.Status(status).JSON(fiber.Map{"status": state, "checks": results})
}
