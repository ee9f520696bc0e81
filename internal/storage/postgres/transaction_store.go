package postgres

import (
	"context"
	"fmt"

	"defi-analytics/internal/domain"
	"defi-analytics/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

// InsertBulk adds multiple transactions atomically. Fails entire batch with
// ErrDuplicateKey on any hash conflict.
func (s *TransactionStore) InsertBulk(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx)

	query := `
		INSERT INTO transactions (
			hash, contract_id, from_user_id, to_user_id, from_address, to_address,
			value, gas_used, gas_price, fee, timestamp, block_number, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9::numeric, $10::numeric, $11, $12, $13)
	`

	for _, t := range txs {
		_, err := dbTx.Exec(ctx, query,
			t.Hash,
			t.ContractID,
			t.FromUserID,
			t.ToUserID,
			t.FromAddress,
			t.ToAddress,
			t.Value.String(),
			t.GasUsed,
			t.GasPrice.String(),
			t.Fee.String(),
			t.Timestamp,
			t.BlockNumber,
			t.Status,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert transaction in bulk: %w", err)
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByHash retrieves a transaction by its unique hash.
func (s *TransactionStore) GetByHash(ctx context.Context, hash string) (*domain.Transaction, error) {
	query := `
		SELECT transaction_id, hash, contract_id, from_user_id, to_user_id,
		       from_address, to_address, value::text, gas_used, gas_price::text,
		       fee::text, timestamp, block_number, status, created_at
		FROM transactions
		WHERE hash = $1
	`

	var t domain.Transaction
	var value, gasPrice, fee string
	err := s.pool.QueryRow(ctx, query, hash).Scan(
		&t.ID, &t.Hash, &t.ContractID, &t.FromUserID, &t.ToUserID,
		&t.FromAddress, &t.ToAddress, &value, &t.GasUsed, &gasPrice,
		&fee, &t.Timestamp, &t.BlockNumber, &t.Status, &t.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get transaction by hash: %w", err)
	}

	if t.Value, err = parseDecimal(value); err != nil {
		return nil, fmt.Errorf("parse transaction value: %w", err)
	}
	if t.GasPrice, err = parseDecimal(gasPrice); err != nil {
		return nil, fmt.Errorf("parse transaction gas_price: %w", err)
	}
	if t.Fee, err = parseDecimal(fee); err != nil {
		return nil, fmt.Errorf("parse transaction fee: %w", err)
	}
	return &t, nil
}

// Count returns the total number of transactions.
func (s *TransactionStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM transactions`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return count, nil
}
