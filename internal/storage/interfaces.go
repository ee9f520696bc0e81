package storage

import (
	"context"
	"time"

	"defi-analytics/internal/domain"
)

// ProtocolStore provides access to protocols storage.
type ProtocolStore interface {
	// Insert adds a new protocol and sets p.ID. Returns ErrDuplicateKey if
	// the name exists.
	Insert(ctx context.Context, p *domain.Protocol) error

	// GetByName retrieves a protocol by its unique name. Returns ErrNotFound
	// if not exists.
	GetByName(ctx context.Context, name string) (*domain.Protocol, error)

	// List retrieves up to limit protocols ordered by id ASC.
	List(ctx context.Context, limit int) ([]*domain.Protocol, error)

	// Count returns the total number of protocols.
	Count(ctx context.Context) (int64, error)
}

// ContractStore provides access to contracts storage.
type ContractStore interface {
	// InsertBulk adds multiple contracts atomically. Fails entire batch with
	// ErrDuplicateKey on any (address, chain) conflict.
	InsertBulk(ctx context.Context, contracts []*domain.Contract) error

	// GetByAddressChain retrieves a contract by its (address, chain) natural
	// key. Returns ErrNotFound if not exists.
	GetByAddressChain(ctx context.Context, address, chain string) (*domain.Contract, error)

	// GetByAddress retrieves the oldest contract with the given address
	// across all chains. Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.Contract, error)

	// Count returns the total number of contracts.
	Count(ctx context.Context) (int64, error)
}

// UserStore provides access to users storage.
type UserStore interface {
	// InsertBulk adds multiple users atomically. Fails entire batch with
	// ErrDuplicateKey on any address conflict.
	InsertBulk(ctx context.Context, users []*domain.User) error

	// GetByAddress retrieves a user by wallet address. Returns ErrNotFound
	// if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.User, error)

	// Count returns the total number of users.
	Count(ctx context.Context) (int64, error)
}

// TransactionStore provides access to transactions storage.
type TransactionStore interface {
	// InsertBulk adds multiple transactions atomically. Fails entire batch
	// with ErrDuplicateKey on any hash conflict.
	InsertBulk(ctx context.Context, txs []*domain.Transaction) error

	// GetByHash retrieves a transaction by its unique hash. Returns
	// ErrNotFound if not exists.
	GetByHash(ctx context.Context, hash string) (*domain.Transaction, error)

	// Count returns the total number of transactions.
	Count(ctx context.Context) (int64, error)
}

// MarketDataStore provides access to the market_data daily rollup.
// Backed by PostgreSQL or, when configured, mirrored in ClickHouse.
type MarketDataStore interface {
	// InsertBulk adds multiple rollup rows atomically. Fails entire batch
	// with ErrDuplicateKey on any (protocol_id, date) conflict.
	InsertBulk(ctx context.Context, rows []*domain.MarketData) error

	// GetByProtocolDate retrieves one protocol's rollup for a calendar date.
	// Returns ErrNotFound if not exists.
	GetByProtocolDate(ctx context.Context, protocolID int64, date time.Time) (*domain.MarketData, error)

	// ActivityByDate sums unique_users and transaction_count across
	// protocols for each date in [from, to], ordered by date ASC.
	ActivityByDate(ctx context.Context, from, to time.Time) ([]*domain.ActivityPoint, error)
}

// AnalyticsStore provides the grouped read primitives consumed by the
// aggregation engine. All queries are read-only and tolerate running
// concurrently with ingestion.
type AnalyticsStore interface {
	// CategoryCounts counts protocols grouped by category, unordered.
	CategoryCounts(ctx context.Context) ([]*domain.CategoryCount, error)

	// ChainCounts counts contracts grouped by chain, descending by count,
	// capped at limit.
	ChainCounts(ctx context.Context, limit int) ([]*domain.ChainCount, error)

	// DailyVolume sums transaction value and count per calendar date for
	// timestamps >= since, ordered by date ASC.
	DailyVolume(ctx context.Context, since time.Time) ([]*domain.DailyVolume, error)

	// ProtocolVolumes sums transaction value and count per protocol via
	// outer join (zero-volume protocols included), descending by volume,
	// capped at limit.
	ProtocolVolumes(ctx context.Context, limit int) ([]*domain.ProtocolVolume, error)

	// DailyGasStats averages gas price and fee and sums fees per calendar
	// date for timestamps >= since, ordered by date ASC.
	DailyGasStats(ctx context.Context, since time.Time) ([]*domain.GasStat, error)

	// Summary returns store-wide totals.
	Summary(ctx context.Context) (*domain.Summary, error)
}
