package ingestion

// Batch record types decoded from Parquet files. Field names follow the
// batch source schema; timestamps arrive as unix milliseconds and amounts as
// float64, converted to domain types by the loader.

// ContractRecord is one row of contracts.parquet. The batch embeds the
// owning protocol's columns so protocols can be created on first sight.
type ContractRecord struct {
	ProtocolName        string `parquet:"protocol_name"`
	ProtocolSymbol      string `parquet:"protocol_symbol"`
	ProtocolCategory    string `parquet:"type"`
	ProtocolDescription string `parquet:"description,optional"`
	ProtocolWebsiteURL  string `parquet:"website_url,optional"`
	ContractAddress     string `parquet:"contract_address"`
	Blockchain          string `parquet:"blockchain"`
	Active              *bool  `parquet:"is_active,optional"` // nil means active
}

// UserRecord is one row of users.parquet.
type UserRecord struct {
	Address          string  `parquet:"user_address"`
	TransactionCount int64   `parquet:"total_transactions,optional"`
	TotalVolume      float64 `parquet:"total_volume,optional"`
	FirstSeenMs      *int64  `parquet:"first_transaction_date,optional"`
	LastSeenMs       *int64  `parquet:"last_transaction_date,optional"`
	Classification   string  `parquet:"user_type,optional"`
}

// TransactionRecord is one row of transactions.parquet. The contract is
// referenced by address only; the loader resolves it to a surrogate id.
type TransactionRecord struct {
	Hash            string  `parquet:"transaction_hash"`
	ContractAddress string  `parquet:"contract_address"`
	FromAddress     string  `parquet:"from_address"`
	ToAddress       string  `parquet:"to_address,optional"`
	Value           float64 `parquet:"value,optional"`
	GasUsed         int64   `parquet:"gas_used,optional"`
	GasPrice        float64 `parquet:"gas_price,optional"`
	Fee             float64 `parquet:"transaction_fee,optional"`
	TimestampMs     int64   `parquet:"timestamp"`
	BlockNumber     int64   `parquet:"block_number,optional"`
	Status          string  `parquet:"status,optional"`
}

// MarketRecord is one row of market.parquet, a daily rollup keyed by
// protocol name and calendar date.
type MarketRecord struct {
	ProtocolName        string  `parquet:"protocol_name"`
	DateMs              int64   `parquet:"date"`
	TotalVolume         float64 `parquet:"total_volume,optional"`
	TransactionCount    int64   `parquet:"transaction_count,optional"`
	UniqueUsers         int64   `parquet:"unique_users,optional"`
	AvgTransactionValue float64 `parquet:"avg_transaction_value,optional"`
	TotalFees           float64 `parquet:"total_fees,optional"`
}
