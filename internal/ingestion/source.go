package ingestion

import (
	"fmt"

	"github.com/parquet-go/parquet-go"
)

// Kind identifies one batch entity type.
type Kind string

const (
	KindContracts    Kind = "contracts"
	KindUsers        Kind = "users"
	KindTransactions Kind = "transactions"
	KindMarketData   Kind = "market"
)

// dirFiles lists the well-known batch file names in foreign-key order.
// Contracts come first because they create protocols; transactions and
// market rollups resolve against entities committed by earlier passes.
var dirFiles = []struct {
	kind Kind
	name string
}{
	{KindContracts, "contracts.parquet"},
	{KindUsers, "users.parquet"},
	{KindTransactions, "transactions.parquet"},
	{KindMarketData, "market.parquet"},
}

// ReadContracts decodes a contracts batch file.
func ReadContracts(path string) ([]ContractRecord, error) {
	return readBatch[ContractRecord](path)
}

// ReadUsers decodes a users batch file.
func ReadUsers(path string) ([]UserRecord, error) {
	return readBatch[UserRecord](path)
}

// ReadTransactions decodes a transactions batch file.
func ReadTransactions(path string) ([]TransactionRecord, error) {
	return readBatch[TransactionRecord](path)
}

// ReadMarketData decodes a market rollup batch file.
func ReadMarketData(path string) ([]MarketRecord, error) {
	return readBatch[MarketRecord](path)
}

// readBatch decodes all rows of a Parquet file. An unreadable or
// schema-incompatible file is a structural error, fatal for the invocation.
func readBatch[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, fmt.Errorf("read batch file %s: %w", path, err)
	}
	return rows, nil
}
