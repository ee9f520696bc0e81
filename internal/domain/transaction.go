package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents a single on-chain transaction against a contract.
// Sender/receiver user links are best-effort: the raw address strings are
// always stored even when no matching User row exists.
// Corresponds to transactions table in PostgreSQL.
type Transaction struct {
	ID          int64  // BIGSERIAL primary key
	Hash        string // unique transaction hash
	ContractID  int64  // FK to contracts
	FromUserID  *int64 // FK to users, nil when unresolved
	ToUserID    *int64 // FK to users, nil when unresolved
	FromAddress string
	ToAddress   string
	Value       decimal.Decimal // NUMERIC(38,18)
	GasUsed     int64
	GasPrice    decimal.Decimal
	Fee         decimal.Decimal
	Timestamp   time.Time // required, indexed
	BlockNumber int64
	Status      string // success | failed | pending
	CreatedAt   time.Time
}

// Transaction status constants
const (
	TxStatusSuccess = "success"
	TxStatusFailed  = "failed"
	TxStatusPending = "pending"
)
