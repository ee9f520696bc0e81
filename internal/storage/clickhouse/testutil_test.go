package clickhouse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a ClickHouse container and returns a connection.
// Returns a cleanup function that must be called when done.
func setupTestDB(t *testing.T) (*Conn, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60 * time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_DB":       "test",
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	dsn := fmt.Sprintf("clickhouse://%s:%s/test", host, port.Port())

	conn, err := NewConn(ctx, dsn)
	require.NoError(t, err)

	runMigrations(t, conn)

	cleanup := func() {
		conn.Close()
		_ = container.Terminate(ctx)
	}

	return conn, cleanup
}

// runMigrations applies the market_data schema, preferring the checked-in
// migration file and falling back to an inline copy.
func runMigrations(t *testing.T, conn *Conn) {
	t.Helper()
	ctx := context.Background()

	path := findMigrationFile()
	if path != "" {
		content, err := os.ReadFile(path)
		require.NoError(t, err)

		err = conn.Exec(ctx, string(content))
		require.NoError(t, err, "failed to apply migration %s", path)
		return
	}

	t.Log("Migration file not found, using inline schema")
	err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS market_data (
			protocol_id            Int64,
			date                   Date,
			total_volume           Float64,
			transaction_count      UInt64,
			unique_users           UInt64,
			avg_transaction_value  Float64,
			total_fees             Float64
		) ENGINE = ReplacingMergeTree()
		ORDER BY (protocol_id, date)
	`)
	require.NoError(t, err)
}

// findMigrationFile attempts to locate the clickhouse migration directory.
func findMigrationFile() string {
	paths := []string{
		"../migrations/clickhouse/001_market_data.sql",
		"../../../internal/storage/migrations/clickhouse/001_market_data.sql",
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	// Walk up to the module root
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, "internal", "storage", "migrations", "clickhouse", "001_market_data.sql")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
