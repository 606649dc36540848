package domain

import (
	"errors"
	"time"
)

var (
	// ErrValidation marks an incomplete or malformed create payload.
	ErrValidation = errors.New("input payload validation failed")
	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrUserNotFound is returned when no user has the requested id.
	ErrUserNotFound = errors.New("user not found")
)

// User represents a registered user. Users are never updated once stored.
type User struct {
	ID        int64
	Username  string
	Email     string
	CreatedAt time.Time
}
