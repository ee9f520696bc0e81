package postgres

import (
	"context"
	"fmt"

	"defi-analytics/internal/domain"
	"defi-analytics/internal/storage"
)

// UserStore implements storage.UserStore using PostgreSQL.
type UserStore struct {
	pool *Pool
}

// NewUserStore creates a new UserStore.
func NewUserStore(pool *Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Compile-time interface check.
var _ storage.UserStore = (*UserStore)(nil)

// InsertBulk adds multiple users atomically. Fails entire batch with
// ErrDuplicateKey on any address conflict.
func (s *UserStore) InsertBulk(ctx context.Context, users []*domain.User) error {
	if len(users) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO users (
			address, transaction_count, total_volume, first_seen, last_seen, classification
		) VALUES ($1, $2, $3::numeric, $4, $5, $6)
	`

	for _, u := range users {
		_, err := tx.Exec(ctx, query,
			u.Address,
			u.TransactionCount,
			u.TotalVolume.String(),
			u.FirstSeen,
			u.LastSeen,
			u.Classification,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert user in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByAddress retrieves a user by wallet address.
func (s *UserStore) GetByAddress(ctx context.Context, address string) (*domain.User, error) {
	query := `
		SELECT user_id, address, transaction_count, total_volume::text,
		       first_seen, last_seen, classification, created_at
		FROM users
		WHERE address = $1
	`

	var u domain.User
	var volume string
	err := s.pool.QueryRow(ctx, query, address).Scan(
		&u.ID, &u.Address, &u.TransactionCount, &volume,
		&u.FirstSeen, &u.LastSeen, &u.Classification, &u.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get user by address: %w", err)
	}

	u.TotalVolume, err = parseDecimal(volume)
	if err != nil {
		return nil, fmt.Errorf("parse user total_volume: %w", err)
	}
	return &u, nil
}

// Count returns the total number of users.
func (s *UserStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}
