package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"defi-analytics/internal/domain"
	"defi-analytics/internal/storage"
)

// MarketDataStore is an in-memory implementation of storage.MarketDataStore.
type MarketDataStore struct {
	mu     sync.RWMutex
	byKey  map[string]*domain.MarketData // keyed by (protocol_id, date)
	nextID int64
}

// NewMarketDataStore creates a new in-memory market data store.
func NewMarketDataStore() *MarketDataStore {
	return &MarketDataStore{
		byKey:  make(map[string]*domain.MarketData),
		nextID: 1,
	}
}

var _ storage.MarketDataStore = (*MarketDataStore)(nil)

// marketKey generates a unique key for a rollup row.
func marketKey(protocolID int64, date time.Time) string {
	return fmt.Sprintf("%d|%s", protocolID, date.UTC().Format("2006-01-02"))
}

// InsertBulk adds multiple rollup rows atomically. Fails entire batch on any
// duplicate (protocol_id, date).
func (s *MarketDataStore) InsertBulk(_ context.Context, rows []*domain.MarketData) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r == nil || r.ProtocolID == 0 || r.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		key := marketKey(r.ProtocolID, r.Date)
		if _, exists := s.byKey[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range rows {
		r.ID = s.nextID
		s.nextID++
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now().UTC()
		}
		copy := *r
		s.byKey[marketKey(r.ProtocolID, r.Date)] = &copy
	}

	return nil
}

// GetByProtocolDate retrieves one protocol's rollup for a calendar date.
func (s *MarketDataStore) GetByProtocolDate(_ context.Context, protocolID int64, date time.Time) (*domain.MarketData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byKey[marketKey(protocolID, date)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *r
	return &copy, nil
}

// ActivityByDate sums unique_users and transaction_count per date in
// [from, to], ordered by date ASC.
func (s *MarketDataStore) ActivityByDate(_ context.Context, from, to time.Time) ([]*domain.ActivityPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fromDay := from.UTC().Truncate(24 * time.Hour)
	toDay := to.UTC().Truncate(24 * time.Hour)

	byDate := make(map[time.Time]*domain.ActivityPoint)
	for _, r := range s.byKey {
		day := r.Date.UTC().Truncate(24 * time.Hour)
		if day.Before(fromDay) || day.After(toDay) {
			continue
		}
		p, ok := byDate[day]
		if !ok {
			p = &domain.ActivityPoint{Date: day}
			byDate[day] = p
		}
		p.ActiveUsers += r.UniqueUsers
		p.Transactions += r.TransactionCount
	}

	result := make([]*domain.ActivityPoint, 0, len(byDate))
	for _, p := range byDate {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}
