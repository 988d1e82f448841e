package models

import "errors"

var (
	ErrEmailTaken        = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidCredential = errors.New("invalid password")
	ErrUnauthenticated   = errors.New("authentication required")
	ErrForbidden         = errors.New("access denied")
	ErrSweetNotFound     = errors.New("sweet not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrValidation        = errors.New("validation failed")

	// ErrStore wraps every failure of the underlying database.
	ErrStore = errors.New("store error")
)
