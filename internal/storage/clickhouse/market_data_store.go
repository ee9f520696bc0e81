package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"defi-analytics/internal/domain"
	"defi-analytics/internal/storage"
)

// MarketDataStore implements storage.MarketDataStore using ClickHouse.
// Amounts are stored as Float64; the ClickHouse mirror serves analytical
// reads, PostgreSQL remains the system of record.
type MarketDataStore struct {
	conn *Conn
}

// NewMarketDataStore creates a new MarketDataStore.
func NewMarketDataStore(conn *Conn) *MarketDataStore {
	return &MarketDataStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MarketDataStore = (*MarketDataStore)(nil)

// InsertBulk adds multiple rollup rows. Fails entire batch with
// ErrDuplicateKey on any (protocol_id, date) conflict. MergeTree does not
// enforce uniqueness at insert time, so duplicates are checked explicitly
// before the batch is sent.
func (s *MarketDataStore) InsertBulk(ctx context.Context, rows []*domain.MarketData) error {
	if len(rows) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		protocolID int64
		date       string
	}
	seen := make(map[key]struct{})
	for _, m := range rows {
		k := key{m.ProtocolID, dayOf(m.Date).Format(time.DateOnly)}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, m := range rows {
		exists, err := s.exists(ctx, m.ProtocolID, m.Date)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO market_data (
			protocol_id, date, total_volume, transaction_count,
			unique_users, avg_transaction_value, total_fees
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, m := range rows {
		err = batch.Append(
			m.ProtocolID, dayOf(m.Date),
			m.TotalVolume.InexactFloat64(), uint64(m.TransactionCount),
			uint64(m.UniqueUsers), m.AvgTransactionValue.InexactFloat64(),
			m.TotalFees.InexactFloat64(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByProtocolDate retrieves one protocol's rollup for a calendar date.
func (s *MarketDataStore) GetByProtocolDate(ctx context.Context, protocolID int64, date time.Time) (*domain.MarketData, error) {
	query := `
		SELECT protocol_id, date, total_volume, transaction_count,
		       unique_users, avg_transaction_value, total_fees
		FROM market_data
		WHERE protocol_id = ? AND date = ?
		LIMIT 1
	`

	var m domain.MarketData
	var volume, avgValue, fees float64
	var txCount, users uint64
	err := s.conn.QueryRow(ctx, query, protocolID, dayOf(date)).Scan(
		&m.ProtocolID, &m.Date, &volume, &txCount, &users, &avgValue, &fees,
	)
	if err != nil {
		return nil, storage.ErrNotFound
	}

	m.TransactionCount = int64(txCount)
	m.UniqueUsers = int64(users)
	m.TotalVolume = decimal.NewFromFloat(volume)
	m.AvgTransactionValue = decimal.NewFromFloat(avgValue)
	m.TotalFees = decimal.NewFromFloat(fees)
	return &m, nil
}

// ActivityByDate sums unique_users and transaction_count across protocols for
// each date in [from, to], ordered by date ASC.
func (s *MarketDataStore) ActivityByDate(ctx context.Context, from, to time.Time) ([]*domain.ActivityPoint, error) {
	query := `
		SELECT date, sum(unique_users), sum(transaction_count)
		FROM market_data
		WHERE date >= ? AND date <= ?
		GROUP BY date
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, dayOf(from), dayOf(to))
	if err != nil {
		return nil, fmt.Errorf("query activity by date: %w", err)
	}
	defer rows.Close()

	var points []*domain.ActivityPoint
	for rows.Next() {
		var p domain.ActivityPoint
		var users, txCount uint64
		if err := rows.Scan(&p.Date, &users, &txCount); err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		p.ActiveUsers = int64(users)
		p.Transactions = int64(txCount)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity rows: %w", err)
	}

	return points, nil
}

// exists checks if a rollup row with the given key exists.
func (s *MarketDataStore) exists(ctx context.Context, protocolID int64, date time.Time) (bool, error) {
	query := `
		SELECT count(*) FROM market_data
		WHERE protocol_id = ? AND date = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, protocolID, dayOf(date)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// dayOf normalizes a timestamp to its UTC calendar day.
func dayOf(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
