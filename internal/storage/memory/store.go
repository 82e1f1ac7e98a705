package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tjfontaine/stepwise/internal/storage"
)

// Store is an in-memory implementation of UserStore
type Store struct {
	mu     sync.RWMutex
	users  map[int64]*storage.User
	byHash map[string]int64
}

var _ storage.UserStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		users:  make(map[int64]*storage.User),
		byHash: make(map[string]int64),
	}
}

func (s *Store) LookupUser(ctx context.Context, keyHash string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byHash[keyHash]
	if !ok {
		return nil, storage.ErrNotFound
	}
	u := *s.users[id]
	return &u, nil
}

func (s *Store) PutUser(ctx context.Context, user *storage.User) error {
	if user.KeyHash == "" {
		return fmt.Errorf("user %d has no key hash", user.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.byHash[user.KeyHash]; ok && owner != user.ID {
		return fmt.Errorf("key hash already assigned to user %d", owner)
	}
	if old, ok := s.users[user.ID]; ok {
		delete(s.byHash, old.KeyHash)
	}

	u := *user
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	s.users[u.ID] = &u
	s.byHash[u.KeyHash] = u.ID
	return nil
}

func (s *Store) Close() error {
	return nil
}
