package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"mithai/internal/models"
	"mithai/internal/services"
)

const identityKey = "identity"

// AuthRequired validates the bearer token and stores the caller's identity
// in the request context. A missing token is 401, a bad one 403.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, err := authService.Authenticate(bearerToken(c.Get(fiber.HeaderAuthorization)))
		if err != nil {
			return err
		}
		c.Locals(identityKey, identity)
		return c.Next()
	}
}

// RequireRole rejects callers whose identity does not hold role. It must be
// mounted after AuthRequired.
func RequireRole(authService *services.AuthService, role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := authService.RequireRole(IdentityFrom(c), role); err != nil {
			return err
		}
		return c.Next()
	}
}

// IdentityFrom returns the identity stored by AuthRequired, or the zero value.
func IdentityFrom(c *fiber.Ctx) models.Identity {
	identity, _ := c.Locals(identityKey).(models.Identity)
	return identity
}

// bearerToken extracts the token from "Bearer <token>".
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
