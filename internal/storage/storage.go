// Package storage defines the user lookup used by the authentication steps.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no user matches a key hash.
var ErrNotFound = errors.New("user not found")

// User is a caller identified by an API key.
type User struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Tenant      string    `json:"tenant,omitempty" db:"tenant"`
	KeyHash     string    `json:"-" db:"key_hash"`
	Description string    `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// UserStore resolves API key hashes to users.
type UserStore interface {
	// LookupUser returns the user owning keyHash or ErrNotFound.
	LookupUser(ctx context.Context, keyHash string) (*User, error)
	// PutUser inserts or replaces the user with the same ID.
	PutUser(ctx context.Context, user *User) error
	Close() error
}
