package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a wallet address with running activity aggregates.
// Corresponds to users table in PostgreSQL.
type User struct {
	ID               int64  // BIGSERIAL primary key
	Address          string // unique wallet address
	TransactionCount int64
	TotalVolume      decimal.Decimal // non-negative, NUMERIC(38,18)
	FirstSeen        *time.Time
	LastSeen         *time.Time
	Classification   string // whale, regular, small
	CreatedAt        time.Time
}

// User classification constants
const (
	UserWhale   = "whale"
	UserRegular = "regular"
	UserSmall   = "small"
)
