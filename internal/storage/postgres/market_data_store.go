package postgres

import (
	"context"
	"fmt"
	"time"

	"defi-analytics/internal/domain"
	"defi-analytics/internal/storage"
)

// MarketDataStore implements storage.MarketDataStore using PostgreSQL.
type MarketDataStore struct {
	pool *Pool
}

// NewMarketDataStore creates a new MarketDataStore.
func NewMarketDataStore(pool *Pool) *MarketDataStore {
	return &MarketDataStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MarketDataStore = (*MarketDataStore)(nil)

// InsertBulk adds multiple rollup rows atomically. Fails entire batch with
// ErrDuplicateKey on any (protocol_id, date) conflict.
func (s *MarketDataStore) InsertBulk(ctx context.Context, rows []*domain.MarketData) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO market_data (
			protocol_id, date, total_volume, transaction_count,
			unique_users, avg_transaction_value, total_fees
		) VALUES ($1, $2, $3::numeric, $4, $5, $6::numeric, $7::numeric)
	`

	for _, m := range rows {
		_, err := tx.Exec(ctx, query,
			m.ProtocolID,
			m.Date,
			m.TotalVolume.String(),
			m.TransactionCount,
			m.UniqueUsers,
			m.AvgTransactionValue.String(),
			m.TotalFees.String(),
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert market data in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByProtocolDate retrieves one protocol's rollup for a calendar date.
func (s *MarketDataStore) GetByProtocolDate(ctx context.Context, protocolID int64, date time.Time) (*domain.MarketData, error) {
	query := `
		SELECT market_data_id, protocol_id, date, total_volume::text,
		       transaction_count, unique_users, avg_transaction_value::text,
		       total_fees::text, created_at
		FROM market_data
		WHERE protocol_id = $1 AND date = $2
	`

	var m domain.MarketData
	var volume, avgValue, fees string
	err := s.pool.QueryRow(ctx, query, protocolID, date.UTC().Truncate(24*time.Hour)).Scan(
		&m.ID, &m.ProtocolID, &m.Date, &volume,
		&m.TransactionCount, &m.UniqueUsers, &avgValue,
		&fees, &m.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get market data by protocol/date: %w", err)
	}

	if m.TotalVolume, err = parseDecimal(volume); err != nil {
		return nil, fmt.Errorf("parse market data total_volume: %w", err)
	}
	if m.AvgTransactionValue, err = parseDecimal(avgValue); err != nil {
		return nil, fmt.Errorf("parse market data avg_transaction_value: %w", err)
	}
	if m.TotalFees, err = parseDecimal(fees); err != nil {
		return nil, fmt.Errorf("parse market data total_fees: %w", err)
	}
	return &m, nil
}

// ActivityByDate sums unique_users and transaction_count across protocols for
// each date in [from, to], ordered by date ASC.
func (s *MarketDataStore) ActivityByDate(ctx context.Context, from, to time.Time) ([]*domain.ActivityPoint, error) {
	query := `
		SELECT date, COALESCE(SUM(unique_users), 0), COALESCE(SUM(transaction_count), 0)
		FROM market_data
		WHERE date >= $1 AND date <= $2
		GROUP BY date
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query,
		from.UTC().Truncate(24*time.Hour),
		to.UTC().Truncate(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("query activity by date: %w", err)
	}
	defer rows.Close()

	var points []*domain.ActivityPoint
	for rows.Next() {
		var p domain.ActivityPoint
		if err := rows.Scan(&p.Date, &p.ActiveUsers, &p.Transactions); err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity rows: %w", err)
	}

	return points, nil
}
