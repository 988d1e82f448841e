package models

import "time"

// Role is the authorization level carried by a user and their bearer token.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents a customer or administrator of the shop.
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Email     string    `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	Password  string    `json:"-" gorm:"type:varchar(255);not null"` // bcrypt hash, never serialized
	Role      Role      `json:"role" gorm:"type:varchar(16);not null;default:user"`
	CreatedAt time.Time `json:"-"`
}

// Identity is the authenticated principal extracted from a bearer token.
type Identity struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Identity returns the token-facing view of the user.
func (u User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email, Role: u.Role}
}
