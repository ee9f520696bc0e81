package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"defi-analytics/internal/analytics"
	"defi-analytics/internal/storage"
	chstore "defi-analytics/internal/storage/clickhouse"
	pgstore "defi-analytics/internal/storage/postgres"
)

func main() {
	// Parse flags
	view := flag.String("view", "all", "View to compute: categories, chains, volume, top-protocols, activity, performance, gas, share, summary, or all")
	days := flag.Int("days", 0, "Trailing window in days (0 uses the view default)")
	limit := flag.Int("limit", 0, "Ranking limit (0 uses the view default)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string for the market_data mirror (optional)")
	seed := flag.Int64("seed", 0, "Seed for synthetic fallback values (0 uses a time-based seed)")

	flag.Parse()

	logger := log.New(os.Stderr, "[dashboard] ", log.LstdFlags)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, *view, *days, *limit, *postgresDSN, *clickhouseDSN, *seed); err != nil {
		logger.Fatalf("Error: %v", err)
	}
}

func run(ctx context.Context, logger *log.Logger, view string, days, limit int, postgresDSN, clickhouseDSN string, seed int64) error {
	if postgresDSN == "" {
		return fmt.Errorf("--postgres-dsn is required")
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	var marketDataStore storage.MarketDataStore = pgstore.NewMarketDataStore(pool)
	if clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			return fmt.Errorf("connect to clickhouse: %w", err)
		}
		defer conn.Close()
		marketDataStore = chstore.NewMarketDataStore(conn)
	}

	opts := analytics.Options{
		Analytics:  pgstore.NewAnalytics(pool),
		Protocols:  pgstore.NewProtocolStore(pool),
		MarketData: marketDataStore,
		Logger:     logger,
	}
	if seed != 0 {
		opts.Rand = rand.New(rand.NewSource(seed))
	}
	engine := analytics.NewEngine(opts)

	payload, err := compute(ctx, engine, view, days, limit)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

// compute dispatches one view, or assembles the combined payload for "all".
func compute(ctx context.Context, engine *analytics.Engine, view string, days, limit int) (any, error) {
	switch view {
	case "categories":
		return engine.CategoryDistribution(ctx)
	case "chains":
		return engine.ContractsByChain(ctx, limit)
	case "volume":
		return engine.VolumeOverTime(ctx, days)
	case "top-protocols":
		return engine.TopProtocols(ctx, limit)
	case "activity":
		return engine.UserActivity(ctx, days)
	case "performance":
		return engine.MarketPerformance(ctx, days)
	case "gas":
		return engine.GasAnalysis(ctx, days)
	case "share":
		return engine.MarketShare(ctx)
	case "summary":
		return engine.Summary(ctx)
	case "all":
		return computeAll(ctx, engine, days, limit)
	default:
		return nil, fmt.Errorf("unknown view %q", view)
	}
}

func computeAll(ctx context.Context, engine *analytics.Engine, days, limit int) (map[string]any, error) {
	payload := make(map[string]any)

	views := []struct {
		name    string
		compute func() (any, error)
	}{
		{"categoryDistribution", func() (any, error) { return engine.CategoryDistribution(ctx) }},
		{"contractsByChain", func() (any, error) { return engine.ContractsByChain(ctx, limit) }},
		{"volumeOverTime", func() (any, error) { return engine.VolumeOverTime(ctx, days) }},
		{"topProtocols", func() (any, error) { return engine.TopProtocols(ctx, limit) }},
		{"userActivity", func() (any, error) { return engine.UserActivity(ctx, days) }},
		{"marketPerformance", func() (any, error) { return engine.MarketPerformance(ctx, days) }},
		{"gasAnalysis", func() (any, error) { return engine.GasAnalysis(ctx, days) }},
		{"marketShare", func() (any, error) { return engine.MarketShare(ctx) }},
		{"summary", func() (any, error) { return engine.Summary(ctx) }},
	}

	for _, v := range views {
		out, err := v.compute()
		if err != nil {
			return nil, err
		}
		payload[v.name] = out
	}

	return payload, nil
}
