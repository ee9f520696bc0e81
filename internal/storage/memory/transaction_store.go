package memory

import (
	"context"
	"sync"
	"time"

	"defi-analytics/internal/domain"
	"defi-analytics/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu     sync.RWMutex
	byHash map[string]*domain.Transaction
	nextID int64
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		byHash: make(map[string]*domain.Transaction),
		nextID: 1,
	}
}

var _ storage.TransactionStore = (*TransactionStore)(nil)

// InsertBulk adds multiple transactions atomically. Fails entire batch on
// any duplicate hash.
func (s *TransactionStore) InsertBulk(_ context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		if tx == nil || tx.Hash == "" || tx.Timestamp.IsZero() {
			return storage.ErrInvalidInput
		}
		if _, exists := s.byHash[tx.Hash]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[tx.Hash]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[tx.Hash] = struct{}{}
	}

	for _, tx := range txs {
		tx.ID = s.nextID
		s.nextID++
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = time.Now().UTC()
		}
		copy := *tx
		s.byHash[tx.Hash] = &copy
	}

	return nil
}

// GetByHash retrieves a transaction by its unique hash.
func (s *TransactionStore) GetByHash(_ context.Context, hash string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.byHash[hash]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *tx
	return &copy, nil
}

// Count returns the total number of transactions.
func (s *TransactionStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.byHash)), nil
}

// all returns a snapshot of every transaction, for analytics scans.
func (s *TransactionStore) all() []*domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Transaction, 0, len(s.byHash))
	for _, tx := range s.byHash {
		copy := *tx
		result = append(result, &copy)
	}
	return result
}
