package postgres

import (
	"context"
	"fmt"

	"defi-analytics/internal/domain"
	"defi-analytics/internal/storage"
)

// ContractStore implements storage.ContractStore using PostgreSQL.
type ContractStore struct {
	pool *Pool
}

// NewContractStore creates a new ContractStore.
func NewContractStore(pool *Pool) *ContractStore {
	return &ContractStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ContractStore = (*ContractStore)(nil)

// InsertBulk adds multiple contracts atomically. Fails entire batch with
// ErrDuplicateKey on any (address, chain) conflict.
func (s *ContractStore) InsertBulk(ctx context.Context, contracts []*domain.Contract) error {
	if len(contracts) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO contracts (address, chain, protocol_id, is_active)
		VALUES ($1, $2, $3, $4)
	`

	for _, c := range contracts {
		_, err := tx.Exec(ctx, query, c.Address, c.Chain, c.ProtocolID, c.Active)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert contract in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByAddressChain retrieves a contract by its (address, chain) natural key.
func (s *ContractStore) GetByAddressChain(ctx context.Context, address, chain string) (*domain.Contract, error) {
	query := `
		SELECT contract_id, address, chain, protocol_id, is_active, created_at
		FROM contracts
		WHERE address = $1 AND chain = $2
	`

	var c domain.Contract
	err := s.pool.QueryRow(ctx, query, address, chain).Scan(
		&c.ID, &c.Address, &c.Chain, &c.ProtocolID, &c.Active, &c.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get contract by address/chain: %w", err)
	}
	return &c, nil
}

// GetByAddress retrieves the oldest contract with the given address.
func (s *ContractStore) GetByAddress(ctx context.Context, address string) (*domain.Contract, error) {
	query := `
		SELECT contract_id, address, chain, protocol_id, is_active, created_at
		FROM contracts
		WHERE address = $1
		ORDER BY contract_id ASC
		LIMIT 1
	`

	var c domain.Contract
	err := s.pool.QueryRow(ctx, query, address).Scan(
		&c.ID, &c.Address, &c.Chain, &c.ProtocolID, &c.Active, &c.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get contract by address: %w", err)
	}
	return &c, nil
}

// Count returns the total number of contracts.
func (s *ContractStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM contracts`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count contracts: %w", err)
	}
	return count, nil
}
