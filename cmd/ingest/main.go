package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"defi-analytics/internal/ingestion"
	"defi-analytics/internal/observability"
	"defi-analytics/internal/storage"
	chstore "defi-analytics/internal/storage/clickhouse"
	"defi-analytics/internal/storage/memory"
	"defi-analytics/internal/storage/migrations"
	pgstore "defi-analytics/internal/storage/postgres"
)

func main() {
	// Parse flags
	dataDir := flag.String("data-dir", "data", "Directory holding the well-known batch files")
	file := flag.String("file", "", "Load a single batch file instead of the data directory")
	kind := flag.String("kind", "", "Batch kind for -file: contracts, users, transactions, or market")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string for the market_data mirror (optional)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	chunkSize := flag.Int("chunk-size", 1000, "Records per commit chunk")
	migrate := flag.Bool("migrate", false, "Run schema migrations before loading")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lshortfile)

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, *dataDir, *file, *kind, *postgresDSN, *clickhouseDSN, *useMemory, *chunkSize, *migrate); err != nil {
		logger.Fatalf("Error: %v", err)
	}
}

func run(ctx context.Context, logger *log.Logger, dataDir, file, kind, postgresDSN, clickhouseDSN string, useMemory bool, chunkSize int, migrate bool) error {
	// Require --postgres-dsn unless --use-memory is explicitly set
	if !useMemory && postgresDSN == "" {
		return fmt.Errorf("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	// Create stores (use interfaces)
	var (
		protocolStore    storage.ProtocolStore    = memory.NewProtocolStore()
		contractStore    storage.ContractStore    = memory.NewContractStore()
		userStore        storage.UserStore        = memory.NewUserStore()
		transactionStore storage.TransactionStore = memory.NewTransactionStore()
		marketDataStore  storage.MarketDataStore  = memory.NewMarketDataStore()
	)

	if !useMemory {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				return fmt.Errorf("run postgres migrations: %w", err)
			}
			logger.Println("PostgreSQL migrations applied")
		}

		protocolStore = pgstore.NewProtocolStore(pool)
		contractStore = pgstore.NewContractStore(pool)
		userStore = pgstore.NewUserStore(pool)
		transactionStore = pgstore.NewTransactionStore(pool)
		marketDataStore = pgstore.NewMarketDataStore(pool)
	}

	// Mirror the market_data rollup in ClickHouse when a DSN is given
	if clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			return fmt.Errorf("run clickhouse migrations: %w", err)
		}
		defer conn.Close()

		marketDataStore = chstore.NewMarketDataStore(conn)
		logger.Println("market_data rollup backed by ClickHouse")
	}

	loader := ingestion.NewLoader(ingestion.LoaderOptions{
		Protocols:    protocolStore,
		Contracts:    contractStore,
		Users:        userStore,
		Transactions: transactionStore,
		MarketData:   marketDataStore,
		ChunkSize:    chunkSize,
		Logger:       logger,
	})

	if file != "" {
		if kind == "" {
			return fmt.Errorf("--kind is required with --file")
		}

		res, err := loader.LoadFile(ctx, ingestion.Kind(kind), file)
		if err != nil {
			return err
		}
		logger.Printf("Done: created=%d skipped=%d", res.Created, res.Skipped)
		return nil
	}

	results, err := loader.LoadDir(ctx, dataDir)
	if err != nil {
		return err
	}
	for k, res := range results {
		logger.Printf("%s: created=%d skipped=%d", k, res.Created, res.Skipped)
	}
	return nil
}
