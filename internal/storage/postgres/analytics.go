package postgres

import (
	"context"
	"fmt"
	"time"

	"defi-analytics/internal/domain"
	"defi-analytics/internal/storage"
)

// Analytics implements storage.AnalyticsStore using PostgreSQL. All queries
// are read-only and safe to run concurrently with ingestion.
type Analytics struct {
	pool *Pool
}

// NewAnalytics creates a new Analytics store.
func NewAnalytics(pool *Pool) *Analytics {
	return &Analytics{pool: pool}
}

// Compile-time interface check.
var _ storage.AnalyticsStore = (*Analytics)(nil)

// CategoryCounts counts protocols grouped by category.
func (s *Analytics) CategoryCounts(ctx context.Context) ([]*domain.CategoryCount, error) {
	query := `
		SELECT category, count(*)
		FROM protocols
		GROUP BY category
		ORDER BY category ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query category counts: %w", err)
	}
	defer rows.Close()

	var counts []*domain.CategoryCount
	for rows.Next() {
		var c domain.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("scan category count row: %w", err)
		}
		counts = append(counts, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category count rows: %w", err)
	}

	return counts, nil
}

// ChainCounts counts contracts grouped by chain, descending by count.
func (s *Analytics) ChainCounts(ctx context.Context, limit int) ([]*domain.ChainCount, error) {
	query := `
		SELECT chain, count(*)
		FROM contracts
		GROUP BY chain
		ORDER BY count(*) DESC, chain ASC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query chain counts: %w", err)
	}
	defer rows.Close()

	var counts []*domain.ChainCount
	for rows.Next() {
		var c domain.ChainCount
		if err := rows.Scan(&c.Chain, &c.Contracts); err != nil {
			return nil, fmt.Errorf("scan chain count row: %w", err)
		}
		counts = append(counts, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chain count rows: %w", err)
	}

	return counts, nil
}

// DailyVolume sums transaction value and count per calendar date for
// timestamps >= since, ordered by date ASC.
func (s *Analytics) DailyVolume(ctx context.Context, since time.Time) ([]*domain.DailyVolume, error) {
	query := `
		SELECT (timestamp AT TIME ZONE 'UTC')::date AS day,
		       COALESCE(SUM(value), 0)::text,
		       count(*)
		FROM transactions
		WHERE timestamp >= $1
		GROUP BY day
		ORDER BY day ASC
	`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("query daily volume: %w", err)
	}
	defer rows.Close()

	var days []*domain.DailyVolume
	for rows.Next() {
		var d domain.DailyVolume
		var volume string
		if err := rows.Scan(&d.Date, &volume, &d.Transactions); err != nil {
			return nil, fmt.Errorf("scan daily volume row: %w", err)
		}
		if d.Volume, err = parseDecimal(volume); err != nil {
			return nil, fmt.Errorf("parse daily volume: %w", err)
		}
		days = append(days, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily volume rows: %w", err)
	}

	return days, nil
}

// ProtocolVolumes sums transaction value and count per protocol. The outer
// joins keep protocols with no transactions in the result at zero volume.
func (s *Analytics) ProtocolVolumes(ctx context.Context, limit int) ([]*domain.ProtocolVolume, error) {
	query := `
		SELECT p.name, p.symbol, p.category,
		       COALESCE(SUM(t.value), 0)::text,
		       count(t.transaction_id)
		FROM protocols p
		LEFT JOIN contracts c ON c.protocol_id = p.protocol_id
		LEFT JOIN transactions t ON t.contract_id = c.contract_id
		GROUP BY p.protocol_id, p.name, p.symbol, p.category
		ORDER BY SUM(t.value) DESC NULLS LAST, p.protocol_id ASC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query protocol volumes: %w", err)
	}
	defer rows.Close()

	var volumes []*domain.ProtocolVolume
	for rows.Next() {
		var v domain.ProtocolVolume
		var volume string
		if err := rows.Scan(&v.Name, &v.Symbol, &v.Category, &volume, &v.Transactions); err != nil {
			return nil, fmt.Errorf("scan protocol volume row: %w", err)
		}
		if v.Volume, err = parseDecimal(volume); err != nil {
			return nil, fmt.Errorf("parse protocol volume: %w", err)
		}
		volumes = append(volumes, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate protocol volume rows: %w", err)
	}

	return volumes, nil
}

// DailyGasStats averages gas price and fee and sums fees per calendar date
// for timestamps >= since, ordered by date ASC.
func (s *Analytics) DailyGasStats(ctx context.Context, since time.Time) ([]*domain.GasStat, error) {
	query := `
		SELECT (timestamp AT TIME ZONE 'UTC')::date AS day,
		       COALESCE(AVG(gas_price), 0)::text,
		       COALESCE(AVG(fee), 0)::text,
		       COALESCE(SUM(fee), 0)::text
		FROM transactions
		WHERE timestamp >= $1
		GROUP BY day
		ORDER BY day ASC
	`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("query daily gas stats: %w", err)
	}
	defer rows.Close()

	var stats []*domain.GasStat
	for rows.Next() {
		var g domain.GasStat
		var avgGas, avgFee, totalFees string
		if err := rows.Scan(&g.Date, &avgGas, &avgFee, &totalFees); err != nil {
			return nil, fmt.Errorf("scan gas stat row: %w", err)
		}
		if g.AvgGasPrice, err = parseDecimal(avgGas); err != nil {
			return nil, fmt.Errorf("parse avg gas price: %w", err)
		}
		if g.AvgFee, err = parseDecimal(avgFee); err != nil {
			return nil, fmt.Errorf("parse avg fee: %w", err)
		}
		if g.TotalFees, err = parseDecimal(totalFees); err != nil {
			return nil, fmt.Errorf("parse total fees: %w", err)
		}
		stats = append(stats, &g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gas stat rows: %w", err)
	}

	return stats, nil
}

// Summary returns store-wide totals in a single round trip.
func (s *Analytics) Summary(ctx context.Context) (*domain.Summary, error) {
	query := `
		SELECT
			(SELECT count(*) FROM protocols),
			(SELECT count(*) FROM contracts),
			(SELECT count(*) FROM users),
			(SELECT count(*) FROM transactions),
			(SELECT COALESCE(SUM(value), 0)::text FROM transactions),
			(SELECT count(DISTINCT chain) FROM contracts)
	`

	var sum domain.Summary
	var volume string
	err := s.pool.QueryRow(ctx, query).Scan(
		&sum.Protocols, &sum.Contracts, &sum.Users, &sum.Transactions, &volume, &sum.Chains,
	)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}

	if sum.TotalVolume, err = parseDecimal(volume); err != nil {
		return nil, fmt.Errorf("parse summary total volume: %w", err)
	}
	return &sum, nil
}
