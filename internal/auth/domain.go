package auth

import (
	"errors"
	"time"
)

// User represents an authenticated user account.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var (
	// ErrEmailTaken occurs when registering an email that already exists.
	ErrEmailTaken = errors.New("auth: email already registered")
	// ErrInvalidToken occurs when a bearer token fails verification.
	ErrInvalidToken = errors.New("auth: invalid token")
)
