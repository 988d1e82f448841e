package repositories

import (
	"context"

	"mithai/internal/models"
)

// UserRepository defines the interface for credential data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uint) (*models.User, error)
}
