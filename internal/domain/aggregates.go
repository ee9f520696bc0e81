package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Aggregate row types returned by the store's read primitives.
// Each is one row of a grouped query, already ordered by the store.

// CategoryCount is a count of protocols in one category.
type CategoryCount struct {
	Category string
	Count    int64
}

// ChainCount is a count of contracts deployed on one chain.
type ChainCount struct {
	Chain     string
	Contracts int64
}

// DailyVolume is one calendar day's summed transaction value and count.
type DailyVolume struct {
	Date         time.Time
	Volume       decimal.Decimal
	Transactions int64
}

// ProtocolVolume is one protocol's total transaction volume and count,
// joined Protocol <- Contract <- Transaction. Protocols without transactions
// appear with zero volume (outer join).
type ProtocolVolume struct {
	Name         string
	Symbol       string
	Category     string
	Volume       decimal.Decimal
	Transactions int64
}

// ActivityPoint is one calendar day's user activity summed across protocols,
// sourced from the market_data rollup.
type ActivityPoint struct {
	Date         time.Time
	ActiveUsers  int64
	Transactions int64
}

// GasStat is one calendar day's gas statistics over transactions.
type GasStat struct {
	Date        time.Time
	AvgGasPrice decimal.Decimal
	AvgFee      decimal.Decimal
	TotalFees   decimal.Decimal
}

// Summary holds store-wide totals.
type Summary struct {
	Protocols    int64
	Contracts    int64
	Users        int64
	Transactions int64
	TotalVolume  decimal.Decimal
	Chains       int64 // distinct chains among contracts
}
