package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/tjfontaine/stepwise/internal/storage"
)

var (
	// ErrMissingCredentials is returned when no Authorization header is present.
	ErrMissingCredentials = errors.New("missing Authorization header")

	// ErrInvalidAPIKey is returned when a key does not belong to any user.
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// Authenticator validates API keys against a user store
type Authenticator struct {
	store storage.UserStore
}

// NewAuthenticator creates a new authenticator backed by store
func NewAuthenticator(store storage.UserStore) *Authenticator {
	return &Authenticator{store: store}
}

// Authenticate validates an API key and returns the associated user
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (*storage.User, error) {
	if apiKey == "" {
		return nil, ErrInvalidAPIKey
	}

	keyHash := HashAPIKey(apiKey)
	u, err := a.store.LookupUser(ctx, keyHash)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidAPIKey
	}
	if err != nil {
		return nil, fmt.Errorf("look up api key: %w", err)
	}

	// Constant-time comparison to prevent timing attacks
	if subtle.ConstantTimeCompare([]byte(keyHash), []byte(u.KeyHash)) != 1 {
		return nil, ErrInvalidAPIKey
	}

	return u, nil
}

// ExtractAPIKey extracts the API key from an Authorization header value.
// Both "Bearer <key>" and a bare key are accepted.
func ExtractAPIKey(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingCredentials
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 1 {
		if strings.EqualFold(parts[0], "bearer") {
			return "", ErrMissingCredentials
		}
		return parts[0], nil
	}

	if !strings.EqualFold(parts[0], "bearer") {
		return "", fmt.Errorf("unsupported authorization scheme %q", parts[0])
	}

	key := strings.TrimSpace(parts[1])
	if key == "" {
		return "", ErrMissingCredentials
	}
	return key, nil
}

// HashAPIKey creates a SHA-256 hash of an API key for storage
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}
