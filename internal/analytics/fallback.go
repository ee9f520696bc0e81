package analytics

import (
	"time"

	"github.com/shopspring/decimal"
)

// Documented synthetic value ranges, per view.
const (
	synthDailyVolumeMin = 10000
	synthDailyVolumeMax = 100000
	synthDailyTxMin     = 100
	synthDailyTxMax     = 1000

	synthProtocolVolumeMin = 50000
	synthProtocolVolumeMax = 500000
	synthProtocolTxMin     = 500
	synthProtocolTxMax     = 5000

	synthActiveUsersMin = 500
	synthActiveUsersMax = 2000
	synthActivityTxMin  = 1000
	synthActivityTxMax  = 5000

	synthMarketCellMin = 5000
	synthMarketCellMax = 50000

	synthGasPriceMin  = 20
	synthGasPriceMax  = 100
	synthFeeMin       = 5
	synthFeeMax       = 50
	synthTotalFeesMin = 10000
	synthTotalFeesMax = 50000

	synthSummaryVolumeMin = 1000000
	synthSummaryVolumeMax = 10000000
)

// uniform draws a decimal uniformly from [min, max).
func (e *Engine) uniform(min, max float64) decimal.Decimal {
	return decimal.NewFromFloat(min + e.rand.Float64()*(max-min))
}

// randint draws an int64 uniformly from [min, max].
func (e *Engine) randint(min, max int64) int64 {
	return min + e.rand.Int63n(max-min+1)
}

// windowDates returns the window's calendar dates ascending, ending on the
// engine's current day.
func (e *Engine) windowDates(days int) []time.Time {
	now := e.now().UTC()
	dates := make([]time.Time, 0, days)
	for i := 0; i < days; i++ {
		dates = append(dates, now.AddDate(0, 0, -(days-i-1)).Truncate(24*time.Hour))
	}
	return dates
}
