package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketData is a daily rollup of one protocol's activity.
// Unique on (protocol_id, date); rows are append-only — once present a load
// run never overwrites them.
type MarketData struct {
	ID                  int64
	ProtocolID          int64     // FK to protocols
	Date                time.Time // calendar date, UTC midnight
	TotalVolume         decimal.Decimal
	TransactionCount    int64
	UniqueUsers         int64
	AvgTransactionValue decimal.Decimal
	TotalFees           decimal.Decimal
	CreatedAt           time.Time
}
