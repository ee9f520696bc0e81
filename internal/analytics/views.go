package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"defi-analytics/internal/domain"
	"defi-analytics/internal/observability"
	"defi-analytics/internal/storage"
)

// CategoryCount is one slice of the category distribution.
type CategoryCount struct {
	Category string `json:"name"`
	Count    int64  `json:"value"`
}

// ChainCount is one bar of the contracts-per-chain ranking.
type ChainCount struct {
	Chain     string `json:"blockchain"`
	Contracts int64  `json:"contracts"`
}

// VolumePoint is one day of the volume-over-time series.
type VolumePoint struct {
	Date         string          `json:"date"`
	Volume       decimal.Decimal `json:"volume"`
	Transactions int64           `json:"transactions"`
}

// VolumeSeries is the volume-over-time view result. Synthetic marks the
// whole series; real and synthetic points are never mixed.
type VolumeSeries struct {
	Points    []VolumePoint `json:"points"`
	Synthetic bool          `json:"synthetic"`
}

// ProtocolRow is one protocol of the top-protocols ranking.
type ProtocolRow struct {
	Name         string          `json:"name"`
	Symbol       string          `json:"symbol"`
	Category     string          `json:"type"`
	Volume       decimal.Decimal `json:"volume"`
	Transactions int64           `json:"transactions"`
}

// ProtocolSeries is the top-protocols view result.
type ProtocolSeries struct {
	Rows      []ProtocolRow `json:"rows"`
	Synthetic bool          `json:"synthetic"`
}

// ActivityPoint is one day of the user-activity trend.
type ActivityPoint struct {
	Date         string `json:"date"`
	ActiveUsers  int64  `json:"activeUsers"`
	Transactions int64  `json:"transactions"`
}

// ActivitySeries is the user-activity view result.
type ActivitySeries struct {
	Points    []ActivityPoint `json:"points"`
	Synthetic bool            `json:"synthetic"`
}

// PerformanceRow is one day of the market-performance comparison: the daily
// rollup volume per protocol symbol.
type PerformanceRow struct {
	Date   string                     `json:"date"`
	Values map[string]decimal.Decimal `json:"values"`
}

// PerformanceSeries is the market-performance view result. Fallback is
// per-cell: each protocol-day substitutes independently, and SyntheticCells
// counts how many were substituted.
type PerformanceSeries struct {
	Protocols      []string         `json:"protocols"`
	Rows           []PerformanceRow `json:"rows"`
	SyntheticCells int              `json:"syntheticCells"`
}

// GasPoint is one day of the gas analysis.
type GasPoint struct {
	Date        string          `json:"date"`
	AvgGasPrice decimal.Decimal `json:"avgGasPrice"`
	AvgFee      decimal.Decimal `json:"avgFee"`
	TotalFees   decimal.Decimal `json:"totalFees"`
}

// GasSeries is the gas-analysis view result.
type GasSeries struct {
	Points    []GasPoint `json:"points"`
	Synthetic bool       `json:"synthetic"`
}

// ShareRow is one protocol of the market-share breakdown. Percentage is
// rounded to 2 decimal places and zero when the shown total is zero.
type ShareRow struct {
	Name       string          `json:"name"`
	Category   string          `json:"type"`
	Volume     decimal.Decimal `json:"value"`
	Percentage decimal.Decimal `json:"percentage"`
}

// ShareSeries is the market-share view result.
type ShareSeries struct {
	Rows      []ShareRow `json:"rows"`
	Synthetic bool       `json:"synthetic"`
}

// SummaryView is the dashboard summary. Counts are always real; only
// TotalVolume substitutes when the store holds no volume.
type SummaryView struct {
	TotalProtocols    int64           `json:"totalProtocols"`
	TotalContracts    int64           `json:"totalContracts"`
	TotalUsers        int64           `json:"totalUsers"`
	TotalTransactions int64           `json:"totalTransactions"`
	TotalVolume       decimal.Decimal `json:"totalVolume"`
	UniqueChains      int64           `json:"uniqueChains"`
	SyntheticVolume   bool            `json:"syntheticVolume"`
}

// CategoryDistribution counts protocols by category, unordered. A
// distribution view never fabricates categories, so there is no fallback:
// an empty store yields an empty sequence.
func (e *Engine) CategoryDistribution(ctx context.Context) ([]CategoryCount, error) {
	started := time.Now()

	rows, err := e.analytics.CategoryCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("category distribution: %w", err)
	}

	out := make([]CategoryCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, CategoryCount{Category: r.Category, Count: r.Count})
	}

	observability.RecordView("category_distribution", branchReal, time.Since(started).Seconds())
	return out, nil
}

// ContractsByChain counts contracts per chain, descending, capped at limit
// (default 15). No fallback: chains are never fabricated.
func (e *Engine) ContractsByChain(ctx context.Context, limit int) ([]ChainCount, error) {
	started := time.Now()
	if limit < 1 {
		limit = DefaultTopChains
	}

	rows, err := e.analytics.ChainCounts(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("contracts by chain: %w", err)
	}

	out := make([]ChainCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, ChainCount{Chain: r.Chain, Contracts: r.Contracts})
	}

	observability.RecordView("contracts_by_chain", branchReal, time.Since(started).Seconds())
	return out, nil
}

// VolumeOverTime returns the daily transaction volume and count for a
// trailing window of days (default 30), ascending by date. Falls back to a
// synthetic series when the window holds no rows or only zero volume.
func (e *Engine) VolumeOverTime(ctx context.Context, days int) (*VolumeSeries, error) {
	started := time.Now()
	if days < 1 {
		days = DefaultVolumeWindowDays
	}

	since := e.now().UTC().AddDate(0, 0, -days)
	rows, err := e.analytics.DailyVolume(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("volume over time: %w", err)
	}

	if hasVolume(rows) {
		points := make([]VolumePoint, 0, len(rows))
		for _, r := range rows {
			points = append(points, VolumePoint{
				Date:         r.Date.Format(time.DateOnly),
				Volume:       r.Volume,
				Transactions: r.Transactions,
			})
		}
		observability.RecordView("volume_over_time", branchReal, time.Since(started).Seconds())
		return &VolumeSeries{Points: points}, nil
	}

	points := make([]VolumePoint, 0, days)
	for _, date := range e.windowDates(days) {
		points = append(points, VolumePoint{
			Date:         date.Format(time.DateOnly),
			Volume:       e.uniform(synthDailyVolumeMin, synthDailyVolumeMax),
			Transactions: e.randint(synthDailyTxMin, synthDailyTxMax),
		})
	}

	observability.RecordView("volume_over_time", branchSynthetic, time.Since(started).Seconds())
	return &VolumeSeries{Points: points, Synthetic: true}, nil
}

// TopProtocols ranks protocols by summed transaction volume, descending,
// capped at limit (default 10). Zero-volume protocols still appear in the
// real branch via the outer join; the fallback fires only when every shown
// volume is zero, substituting synthetic volumes for the same protocols.
func (e *Engine) TopProtocols(ctx context.Context, limit int) (*ProtocolSeries, error) {
	started := time.Now()
	if limit < 1 {
		limit = DefaultTopProtocols
	}

	rows, err := e.analytics.ProtocolVolumes(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("top protocols: %w", err)
	}

	if anyProtocolVolume(rows) {
		out := make([]ProtocolRow, 0, len(rows))
		for _, r := range rows {
			out = append(out, ProtocolRow{
				Name:         r.Name,
				Symbol:       r.Symbol,
				Category:     r.Category,
				Volume:       r.Volume,
				Transactions: r.Transactions,
			})
		}
		observability.RecordView("top_protocols", branchReal, time.Since(started).Seconds())
		return &ProtocolSeries{Rows: out}, nil
	}

	protocols, err := e.protocols.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("top protocols fallback: %w", err)
	}

	out := make([]ProtocolRow, 0, len(protocols))
	for _, p := range protocols {
		out = append(out, ProtocolRow{
			Name:         p.Name,
			Symbol:       p.Symbol,
			Category:     p.Category,
			Volume:       e.uniform(synthProtocolVolumeMin, synthProtocolVolumeMax),
			Transactions: e.randint(synthProtocolTxMin, synthProtocolTxMax),
		})
	}

	observability.RecordView("top_protocols", branchSynthetic, time.Since(started).Seconds())
	return &ProtocolSeries{Rows: out, Synthetic: true}, nil
}

// UserActivity sums the market rollup's unique users and transaction counts
// per day over a trailing window (default 30), ascending by date.
func (e *Engine) UserActivity(ctx context.Context, days int) (*ActivitySeries, error) {
	started := time.Now()
	if days < 1 {
		days = DefaultActivityWindowDays
	}

	to := e.now().UTC()
	from := to.AddDate(0, 0, -days)
	rows, err := e.marketData.ActivityByDate(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("user activity: %w", err)
	}

	if len(rows) > 0 {
		points := make([]ActivityPoint, 0, len(rows))
		for _, r := range rows {
			points = append(points, ActivityPoint{
				Date:         r.Date.Format(time.DateOnly),
				ActiveUsers:  r.ActiveUsers,
				Transactions: r.Transactions,
			})
		}
		observability.RecordView("user_activity", branchReal, time.Since(started).Seconds())
		return &ActivitySeries{Points: points}, nil
	}

	points := make([]ActivityPoint, 0, days)
	for _, date := range e.windowDates(days) {
		points = append(points, ActivityPoint{
			Date:         date.Format(time.DateOnly),
			ActiveUsers:  e.randint(synthActiveUsersMin, synthActiveUsersMax),
			Transactions: e.randint(synthActivityTxMin, synthActivityTxMax),
		})
	}

	observability.RecordView("user_activity", branchSynthetic, time.Since(started).Seconds())
	return &ActivitySeries{Points: points, Synthetic: true}, nil
}

// MarketPerformance compares the first five protocols' daily rollup volume
// over a trailing window (default 14). Substitution is per cell: each
// protocol-day missing a rollup row gets a synthetic value independently.
func (e *Engine) MarketPerformance(ctx context.Context, days int) (*PerformanceSeries, error) {
	started := time.Now()
	if days < 1 {
		days = DefaultPerformanceWindowDays
	}

	protocols, err := e.protocols.List(ctx, performanceProtocols)
	if err != nil {
		return nil, fmt.Errorf("market performance: %w", err)
	}
	if len(protocols) == 0 {
		observability.RecordView("market_performance", branchReal, time.Since(started).Seconds())
		return &PerformanceSeries{Protocols: []string{}, Rows: []PerformanceRow{}}, nil
	}

	symbols := make([]string, 0, len(protocols))
	for _, p := range protocols {
		symbols = append(symbols, strings.ToUpper(p.Symbol))
	}

	series := &PerformanceSeries{Protocols: symbols}
	for _, date := range e.windowDates(days) {
		row := PerformanceRow{
			Date:   date.Format(time.DateOnly),
			Values: make(map[string]decimal.Decimal, len(protocols)),
		}

		for i, p := range protocols {
			md, err := e.marketData.GetByProtocolDate(ctx, p.ID, date)
			switch {
			case err == nil:
				row.Values[symbols[i]] = md.TotalVolume
			case errors.Is(err, storage.ErrNotFound):
				row.Values[symbols[i]] = e.uniform(synthMarketCellMin, synthMarketCellMax)
				series.SyntheticCells++
			default:
				return nil, fmt.Errorf("market performance %s/%s: %w", p.Name, row.Date, err)
			}
		}

		series.Rows = append(series.Rows, row)
	}

	branch := branchReal
	if series.SyntheticCells > 0 {
		branch = branchSynthetic
	}
	observability.RecordView("market_performance", branch, time.Since(started).Seconds())
	return series, nil
}

// GasAnalysis returns daily average gas price, average fee and total fees
// over a trailing window (default 30), ascending by date. Falls back when
// the window holds no rows or only zero gas prices.
func (e *Engine) GasAnalysis(ctx context.Context, days int) (*GasSeries, error) {
	started := time.Now()
	if days < 1 {
		days = DefaultGasWindowDays
	}

	since := e.now().UTC().AddDate(0, 0, -days)
	rows, err := e.analytics.DailyGasStats(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("gas analysis: %w", err)
	}

	if anyGasPrice(rows) {
		points := make([]GasPoint, 0, len(rows))
		for _, r := range rows {
			points = append(points, GasPoint{
				Date:        r.Date.Format(time.DateOnly),
				AvgGasPrice: r.AvgGasPrice,
				AvgFee:      r.AvgFee,
				TotalFees:   r.TotalFees,
			})
		}
		observability.RecordView("gas_analysis", branchReal, time.Since(started).Seconds())
		return &GasSeries{Points: points}, nil
	}

	points := make([]GasPoint, 0, days)
	for _, date := range e.windowDates(days) {
		points = append(points, GasPoint{
			Date:        date.Format(time.DateOnly),
			AvgGasPrice: e.uniform(synthGasPriceMin, synthGasPriceMax),
			AvgFee:      e.uniform(synthFeeMin, synthFeeMax),
			TotalFees:   e.uniform(synthTotalFeesMin, synthTotalFeesMax),
		})
	}

	observability.RecordView("gas_analysis", branchSynthetic, time.Since(started).Seconds())
	return &GasSeries{Points: points, Synthetic: true}, nil
}

// MarketShare returns the top-10 protocols' share of the shown volume as
// percentages rounded to 2 decimal places. A zero shown total yields zero
// shares, never a division fault.
func (e *Engine) MarketShare(ctx context.Context) (*ShareSeries, error) {
	started := time.Now()

	rows, err := e.analytics.ProtocolVolumes(ctx, marketShareProtocols)
	if err != nil {
		return nil, fmt.Errorf("market share: %w", err)
	}

	if anyProtocolVolume(rows) {
		total := decimal.Zero
		for _, r := range rows {
			total = total.Add(r.Volume)
		}

		out := make([]ShareRow, 0, len(rows))
		for _, r := range rows {
			out = append(out, ShareRow{
				Name:       r.Name,
				Category:   r.Category,
				Volume:     r.Volume,
				Percentage: sharePercent(r.Volume, total),
			})
		}
		observability.RecordView("market_share", branchReal, time.Since(started).Seconds())
		return &ShareSeries{Rows: out}, nil
	}

	protocols, err := e.protocols.List(ctx, marketShareProtocols)
	if err != nil {
		return nil, fmt.Errorf("market share fallback: %w", err)
	}

	volumes := make([]decimal.Decimal, len(protocols))
	total := decimal.Zero
	for i := range protocols {
		volumes[i] = e.uniform(synthProtocolVolumeMin, synthProtocolVolumeMax)
		total = total.Add(volumes[i])
	}

	out := make([]ShareRow, 0, len(protocols))
	for i, p := range protocols {
		out = append(out, ShareRow{
			Name:       p.Name,
			Category:   p.Category,
			Volume:     volumes[i],
			Percentage: sharePercent(volumes[i], total),
		})
	}

	observability.RecordView("market_share", branchSynthetic, time.Since(started).Seconds())
	return &ShareSeries{Rows: out, Synthetic: true}, nil
}

// Summary returns store-wide totals. Counts are always real; TotalVolume
// substitutes a synthetic value only when the summed volume is zero.
func (e *Engine) Summary(ctx context.Context) (*SummaryView, error) {
	started := time.Now()

	s, err := e.analytics.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}

	view := &SummaryView{
		TotalProtocols:    s.Protocols,
		TotalContracts:    s.Contracts,
		TotalUsers:        s.Users,
		TotalTransactions: s.Transactions,
		TotalVolume:       s.TotalVolume,
		UniqueChains:      s.Chains,
	}

	branch := branchReal
	if s.TotalVolume.IsZero() {
		view.TotalVolume = e.uniform(synthSummaryVolumeMin, synthSummaryVolumeMax)
		view.SyntheticVolume = true
		branch = branchSynthetic
	}

	observability.RecordView("summary", branch, time.Since(started).Seconds())
	return view, nil
}

// hasVolume reports whether the series holds any rows with nonzero volume.
func hasVolume(rows []*domain.DailyVolume) bool {
	for _, r := range rows {
		if !r.Volume.IsZero() {
			return true
		}
	}
	return false
}

// anyProtocolVolume reports whether any shown protocol has nonzero volume.
func anyProtocolVolume(rows []*domain.ProtocolVolume) bool {
	for _, r := range rows {
		if !r.Volume.IsZero() {
			return true
		}
	}
	return false
}

// anyGasPrice reports whether any day has a nonzero average gas price.
func anyGasPrice(rows []*domain.GasStat) bool {
	for _, r := range rows {
		if !r.AvgGasPrice.IsZero() {
			return true
		}
	}
	return false
}

// sharePercent computes volume/total*100 rounded to 2 decimal places,
// defined as zero when total is zero.
func sharePercent(volume, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return volume.Mul(decimal.NewFromInt(100)).Div(total).Round(2)
}
