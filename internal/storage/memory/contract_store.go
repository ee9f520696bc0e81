package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"defi-analytics/internal/domain"
	"defi-analytics/internal/storage"
)

// ContractStore is an in-memory implementation of storage.ContractStore.
type ContractStore struct {
	mu     sync.RWMutex
	byKey  map[string]*domain.Contract // keyed by (address, chain)
	nextID int64
}

// NewContractStore creates a new in-memory contract store.
func NewContractStore() *ContractStore {
	return &ContractStore{
		byKey:  make(map[string]*domain.Contract),
		nextID: 1,
	}
}

var _ storage.ContractStore = (*ContractStore)(nil)

// contractKey generates a unique key for a contract.
func contractKey(address, chain string) string {
	return fmt.Sprintf("%s|%s", address, chain)
}

// InsertBulk adds multiple contracts atomically. Fails entire batch on any
// duplicate (address, chain).
func (s *ContractStore) InsertBulk(_ context.Context, contracts []*domain.Contract) error {
	if len(contracts) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: check for duplicates (existing + intra-batch)
	batchKeys := make(map[string]struct{}, len(contracts))
	for _, c := range contracts {
		if c == nil || c.Address == "" || c.Chain == "" {
			return storage.ErrInvalidInput
		}
		key := contractKey(c.Address, c.Chain)
		if _, exists := s.byKey[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, c := range contracts {
		c.ID = s.nextID
		s.nextID++
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now().UTC()
		}
		copy := *c
		s.byKey[contractKey(c.Address, c.Chain)] = &copy
	}

	return nil
}

// GetByAddressChain retrieves a contract by its natural key.
func (s *ContractStore) GetByAddressChain(_ context.Context, address, chain string) (*domain.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byKey[contractKey(address, chain)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *c
	return &copy, nil
}

// GetByAddress retrieves the oldest contract with the given address.
func (s *ContractStore) GetByAddress(_ context.Context, address string) (*domain.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.Contract
	for _, c := range s.byKey {
		if c.Address != address {
			continue
		}
		if best == nil || c.ID < best.ID {
			best = c
		}
	}
	if best == nil {
		return nil, storage.ErrNotFound
	}
	copy := *best
	return &copy, nil
}

// Count returns the total number of contracts.
func (s *ContractStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.byKey)), nil
}

// all returns a snapshot of every contract, for analytics scans.
func (s *ContractStore) all() []*domain.Contract {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Contract, 0, len(s.byKey))
	for _, c := range s.byKey {
		copy := *c
		result = append(result, &copy)
	}
	return result
}
