package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"defi-analytics/internal/domain"
	"defi-analytics/internal/storage"
)

// Analytics is an in-memory implementation of storage.AnalyticsStore.
// It scans the entity stores directly; acceptable for tests and the
// -use-memory mode, where data volumes are small.
type Analytics struct {
	protocols    *ProtocolStore
	contracts    *ContractStore
	users        *UserStore
	transactions *TransactionStore
}

// NewAnalytics creates an analytics reader over the in-memory stores.
func NewAnalytics(protocols *ProtocolStore, contracts *ContractStore, users *UserStore, transactions *TransactionStore) *Analytics {
	return &Analytics{
		protocols:    protocols,
		contracts:    contracts,
		users:        users,
		transactions: transactions,
	}
}

var _ storage.AnalyticsStore = (*Analytics)(nil)

// CategoryCounts counts protocols grouped by category.
func (a *Analytics) CategoryCounts(ctx context.Context) ([]*domain.CategoryCount, error) {
	protocols, err := a.protocols.List(ctx, 0)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	for _, p := range protocols {
		counts[p.Category]++
	}

	result := make([]*domain.CategoryCount, 0, len(counts))
	for category, count := range counts {
		result = append(result, &domain.CategoryCount{Category: category, Count: count})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Category < result[j].Category })
	return result, nil
}

// ChainCounts counts contracts grouped by chain, descending by count.
func (a *Analytics) ChainCounts(_ context.Context, limit int) ([]*domain.ChainCount, error) {
	counts := make(map[string]int64)
	for _, c := range a.contracts.all() {
		counts[c.Chain]++
	}

	result := make([]*domain.ChainCount, 0, len(counts))
	for chain, count := range counts {
		result = append(result, &domain.ChainCount{Chain: chain, Contracts: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Contracts != result[j].Contracts {
			return result[i].Contracts > result[j].Contracts
		}
		return result[i].Chain < result[j].Chain
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// DailyVolume sums transaction value and count per calendar date.
func (a *Analytics) DailyVolume(_ context.Context, since time.Time) ([]*domain.DailyVolume, error) {
	byDate := make(map[time.Time]*domain.DailyVolume)
	for _, tx := range a.transactions.all() {
		if tx.Timestamp.Before(since) {
			continue
		}
		day := tx.Timestamp.UTC().Truncate(24 * time.Hour)
		v, ok := byDate[day]
		if !ok {
			v = &domain.DailyVolume{Date: day}
			byDate[day] = v
		}
		v.Volume = v.Volume.Add(tx.Value)
		v.Transactions++
	}

	result := make([]*domain.DailyVolume, 0, len(byDate))
	for _, v := range byDate {
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

// ProtocolVolumes sums transaction value and count per protocol. Protocols
// without transactions are included with zero volume (outer join semantics).
func (a *Analytics) ProtocolVolumes(ctx context.Context, limit int) ([]*domain.ProtocolVolume, error) {
	protocols, err := a.protocols.List(ctx, 0)
	if err != nil {
		return nil, err
	}

	contractProtocol := make(map[int64]int64)
	for _, c := range a.contracts.all() {
		contractProtocol[c.ID] = c.ProtocolID
	}

	byProtocol := make(map[int64]*domain.ProtocolVolume, len(protocols))
	order := make([]*domain.ProtocolVolume, 0, len(protocols))
	for _, p := range protocols {
		pv := &domain.ProtocolVolume{Name: p.Name, Symbol: p.Symbol, Category: p.Category}
		byProtocol[p.ID] = pv
		order = append(order, pv)
	}

	for _, tx := range a.transactions.all() {
		protocolID, ok := contractProtocol[tx.ContractID]
		if !ok {
			continue
		}
		pv, ok := byProtocol[protocolID]
		if !ok {
			continue
		}
		pv.Volume = pv.Volume.Add(tx.Value)
		pv.Transactions++
	}

	sort.SliceStable(order, func(i, j int) bool { return order[i].Volume.GreaterThan(order[j].Volume) })

	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}
	return order, nil
}

// DailyGasStats averages gas price and fee and sums fees per calendar date.
func (a *Analytics) DailyGasStats(_ context.Context, since time.Time) ([]*domain.GasStat, error) {
	type acc struct {
		gasSum decimal.Decimal
		feeSum decimal.Decimal
		count  int64
	}

	byDate := make(map[time.Time]*acc)
	for _, tx := range a.transactions.all() {
		if tx.Timestamp.Before(since) {
			continue
		}
		day := tx.Timestamp.UTC().Truncate(24 * time.Hour)
		g, ok := byDate[day]
		if !ok {
			g = &acc{}
			byDate[day] = g
		}
		g.gasSum = g.gasSum.Add(tx.GasPrice)
		g.feeSum = g.feeSum.Add(tx.Fee)
		g.count++
	}

	result := make([]*domain.GasStat, 0, len(byDate))
	for day, g := range byDate {
		count := decimal.NewFromInt(g.count)
		result = append(result, &domain.GasStat{
			Date:        day,
			AvgGasPrice: g.gasSum.Div(count),
			AvgFee:      g.feeSum.Div(count),
			TotalFees:   g.feeSum,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

// Summary returns store-wide totals.
func (a *Analytics) Summary(ctx context.Context) (*domain.Summary, error) {
	protocols, err := a.protocols.Count(ctx)
	if err != nil {
		return nil, err
	}
	contracts, err := a.contracts.Count(ctx)
	if err != nil {
		return nil, err
	}
	users, err := a.users.Count(ctx)
	if err != nil {
		return nil, err
	}

	chains := make(map[string]struct{})
	for _, c := range a.contracts.all() {
		chains[c.Chain] = struct{}{}
	}

	txs := a.transactions.all()
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Value)
	}

	return &domain.Summary{
		Protocols:    protocols,
		Contracts:    contracts,
		Users:        users,
		Transactions: int64(len(txs)),
		TotalVolume:  total,
		Chains:       int64(len(chains)),
	}, nil
}
