package handlers

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"mithai/internal/models"
)

// ValidationError carries per-field messages for a rejected request body.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation failed" }

func (e *ValidationError) Unwrap() error { return models.ErrValidation }

// bind parses the request body into out and validates it.
func bind(c *fiber.Ctx, validate *validator.Validate, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fmt.Errorf("%w: invalid request body", models.ErrValidation)
	}
	return check(validate, out)
}

func check(validate *validator.Validate, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %w", models.ErrValidation, err)
	}
	fields := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		fields[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return &ValidationError{Fields: fields}
}

// ErrorHandler renders errors returned from handlers and middleware as
// {"error": message} with the status their kind maps to.
func ErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":  validationErr.Error(),
				"errors": validationErr.Fields,
			})
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
		}

		status, message := statusOf(err)
		if status >= fiber.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		}
		return c.Status(status).JSON(fiber.Map{"error": message})
	}
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrEmailTaken):
		return fiber.StatusBadRequest, "User already exists"
	case errors.Is(err, models.ErrUserNotFound):
		return fiber.StatusBadRequest, "User not found"
	case errors.Is(err, models.ErrInvalidCredential):
		return fiber.StatusBadRequest, "Invalid password"
	case errors.Is(err, models.ErrUnauthenticated):
		return fiber.StatusUnauthorized, "Access denied. No token provided."
	case errors.Is(err, models.ErrForbidden):
		return fiber.StatusForbidden, "Access denied"
	case errors.Is(err, models.ErrSweetNotFound):
		return fiber.StatusNotFound, "Sweet not found"
	case errors.Is(err, models.ErrInsufficientStock),
		errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrValidation):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, models.ErrStore):
		return fiber.StatusInternalServerError, "Internal store error"
	default:
		return fiber.StatusInternalServerError, "Internal server error"
	}
}
