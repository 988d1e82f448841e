package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"mithai/internal/models"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{db: db}
}

// Create inserts a user. A duplicate email yields models.ErrEmailTaken.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return models.ErrEmailTaken
	}
	if err != nil {
		return storeErr("failed to create user", err)
	}
	return nil
}

// GetByEmail retrieves a user by exact email.
func (r *GORMUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrUserNotFound
		}
		return nil, storeErr(fmt.Sprintf("failed to get user by email %s", email), err)
	}
	return &user, nil
}

// GetByID retrieves a user by ID.
func (r *GORMUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrUserNotFound
		}
		return nil, storeErr(fmt.Sprintf("failed to get user by ID %d", id), err)
	}
	return &user, nil
}
