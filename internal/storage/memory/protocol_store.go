package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"defi-analytics/internal/domain"
	"defi-analytics/internal/storage"
)

// ProtocolStore is an in-memory implementation of storage.ProtocolStore.
type ProtocolStore struct {
	mu     sync.RWMutex
	byName map[string]*domain.Protocol
	nextID int64
}

// NewProtocolStore creates a new in-memory protocol store.
func NewProtocolStore() *ProtocolStore {
	return &ProtocolStore{
		byName: make(map[string]*domain.Protocol),
		nextID: 1,
	}
}

var _ storage.ProtocolStore = (*ProtocolStore)(nil)

// Insert adds a new protocol and assigns its ID. Returns ErrDuplicateKey if
// the name exists.
func (s *ProtocolStore) Insert(_ context.Context, p *domain.Protocol) error {
	if p == nil || p.Name == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[p.Name]; exists {
		return storage.ErrDuplicateKey
	}

	p.ID = s.nextID
	s.nextID++
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	copy := *p
	s.byName[p.Name] = &copy
	return nil
}

// GetByName retrieves a protocol by name. Returns ErrNotFound if not exists.
func (s *ProtocolStore) GetByName(_ context.Context, name string) (*domain.Protocol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byName[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *p
	return &copy, nil
}

// List retrieves up to limit protocols ordered by id ASC.
func (s *ProtocolStore) List(_ context.Context, limit int) ([]*domain.Protocol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Protocol, 0, len(s.byName))
	for _, p := range s.byName {
		copy := *p
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Count returns the total number of protocols.
func (s *ProtocolStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.byName)), nil
}
