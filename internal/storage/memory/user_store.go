package memory

import (
	"context"
	"sync"
	"time"

	"defi-analytics/internal/domain"
	"defi-analytics/internal/storage"
)

// UserStore is an in-memory implementation of storage.UserStore.
type UserStore struct {
	mu        sync.RWMutex
	byAddress map[string]*domain.User
	nextID    int64
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		byAddress: make(map[string]*domain.User),
		nextID:    1,
	}
}

var _ storage.UserStore = (*UserStore)(nil)

// InsertBulk adds multiple users atomically. Fails entire batch on any
// duplicate address.
func (s *UserStore) InsertBulk(_ context.Context, users []*domain.User) error {
	if len(users) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(users))
	for _, u := range users {
		if u == nil || u.Address == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.byAddress[u.Address]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[u.Address]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[u.Address] = struct{}{}
	}

	for _, u := range users {
		u.ID = s.nextID
		s.nextID++
		if u.CreatedAt.IsZero() {
			u.CreatedAt = time.Now().UTC()
		}
		copy := *u
		s.byAddress[u.Address] = &copy
	}

	return nil
}

// GetByAddress retrieves a user by wallet address.
func (s *UserStore) GetByAddress(_ context.Context, address string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byAddress[address]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *u
	return &copy, nil
}

// Count returns the total number of users.
func (s *UserStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.byAddress)), nil
}
