// Package analytics computes read-time aggregate views over the relational
// store, substituting a bounded pseudo-random synthetic series when real data
// is absent or all-zero so dashboards stay populated before ingestion.
package analytics

import (
	"log"
	"math/rand"
	"time"

	"defi-analytics/internal/storage"
)

// View window and limit defaults.
const (
	DefaultVolumeWindowDays      = 30
	DefaultActivityWindowDays    = 30
	DefaultGasWindowDays         = 30
	DefaultPerformanceWindowDays = 14
	DefaultTopProtocols          = 10
	DefaultTopChains             = 15

	marketShareProtocols = 10
	performanceProtocols = 5
)

// Metric branch labels for which side of the real-or-synthetic decision
// served a view.
const (
	branchReal      = "real"
	branchSynthetic = "synthetic"
)

// Engine computes the analytics views. Queries are read-only and tolerate
// running concurrently with ingestion; there is no snapshot consistency
// across the views composing one dashboard response.
type Engine struct {
	analytics  storage.AnalyticsStore
	protocols  storage.ProtocolStore
	marketData storage.MarketDataStore
	now        func() time.Time
	rand       *rand.Rand
	logger     *log.Logger
}

// Options contains configuration for creating an Engine. Now and Rand are
// injectable so tests can pin the clock and the synthetic values.
type Options struct {
	Analytics  storage.AnalyticsStore
	Protocols  storage.ProtocolStore
	MarketData storage.MarketDataStore
	Now        func() time.Time // Default: time.Now
	Rand       *rand.Rand       // Default: time-seeded
	Logger     *log.Logger
}

// NewEngine creates a new aggregation engine.
func NewEngine(opts Options) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Engine{
		analytics:  opts.Analytics,
		protocols:  opts.Protocols,
		marketData: opts.MarketData,
		now:        now,
		rand:       rng,
		logger:     logger,
	}
}
