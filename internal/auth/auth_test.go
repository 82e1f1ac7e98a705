package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/tjfontaine/stepwise/internal/storage"
	"github.com/tjfontaine/stepwise/internal/storage/memory"
)

func TestHashAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		apiKey   string
		expected string
	}{
		{
			name:     "simple key",
			apiKey:   "test-key-123",
			expected: "625faa3fbbc3d2bd9d6ee7678d04cc5339cb33dc68d9b58451853d60046e226a",
		},
		{
			name:     "empty key",
			apiKey:   "",
			expected: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash := HashAPIKey(tt.apiKey)
			if hash != tt.expected {
				t.Errorf("HashAPIKey() = %v, want %v", hash, tt.expected)
			}
		})
	}
}

func TestAuthenticator_Authenticate(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	for _, u := range []*storage.User{
		{ID: 1, Name: "one", KeyHash: HashAPIKey("valid-key-1")},
		{ID: 2, Name: "two", KeyHash: HashAPIKey("valid-key-2")},
	} {
		if err := store.PutUser(ctx, u); err != nil {
			t.Fatalf("PutUser() error = %v", err)
		}
	}

	authn := NewAuthenticator(store)

	tests := []struct {
		name      string
		apiKey    string
		wantID    int64
		wantError error
	}{
		{name: "valid key for user 1", apiKey: "valid-key-1", wantID: 1},
		{name: "valid key for user 2", apiKey: "valid-key-2", wantID: 2},
		{name: "invalid key", apiKey: "invalid-key", wantError: ErrInvalidAPIKey},
		{name: "empty key", apiKey: "", wantError: ErrInvalidAPIKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := authn.Authenticate(ctx, tt.apiKey)
			if tt.wantError != nil {
				if !errors.Is(err, tt.wantError) {
					t.Errorf("Authenticate() error = %v, want %v", err, tt.wantError)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if u.ID != tt.wantID {
				t.Errorf("Authenticate() user = %d, want %d", u.ID, tt.wantID)
			}
		})
	}
}

type failingStore struct{ storage.UserStore }

func (failingStore) LookupUser(ctx context.Context, keyHash string) (*storage.User, error) {
	return nil, errors.New("database is locked")
}

func TestAuthenticator_StoreFailure(t *testing.T) {
	authn := NewAuthenticator(failingStore{})

	_, err := authn.Authenticate(context.Background(), "key")
	if err == nil || errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("Authenticate() error = %v, want store failure", err)
	}
}

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{name: "bearer", header: "Bearer abc", want: "abc"},
		{name: "lowercase scheme", header: "bearer abc", want: "abc"},
		{name: "bare key", header: "abc", want: "abc"},
		{name: "empty", header: "", wantErr: true},
		{name: "empty bearer", header: "Bearer  ", wantErr: true},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractAPIKey(tt.header)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractAPIKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractAPIKey() = %q, want %q", got, tt.want)
			}
		})
	}
}
