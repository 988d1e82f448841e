package repositories

import (
	"context"
	"sync"

	"mithai/internal/models"
)

// MemoryUserRepository is an in-memory implementation of UserRepository.
type MemoryUserRepository struct {
	users   map[uint]models.User
	byEmail map[string]uint
	nextID  uint
	mu      sync.RWMutex
}

// NewMemoryUserRepository creates a new instance of MemoryUserRepository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users:   make(map[uint]models.User),
		byEmail: make(map[string]uint),
		nextID:  1,
	}
}

// Create adds a user, rejecting duplicate emails.
func (r *MemoryUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[user.Email]; taken {
		return models.ErrEmailTaken
	}
	user.ID = r.nextID
	r.nextID++
	r.users[user.ID] = *user
	r.byEmail[user.Email] = user.ID
	return nil
}

// GetByEmail returns a user by exact email.
func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	u := r.users[id]
	return &u, nil
}

// GetByID returns a user by ID.
func (r *MemoryUserRepository) GetByID(_ context.Context, id uint) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return &u, nil
}
