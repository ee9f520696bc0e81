package domain

import "time"

// Contract represents a deployed contract owned by a protocol.
// Unique on (address, chain); corresponds to contracts table in PostgreSQL.
type Contract struct {
	ID         int64  // BIGSERIAL primary key
	Address    string // contract address on its chain
	Chain      string // blockchain name (ethereum, polygon, ...)
	ProtocolID int64  // FK to protocols
	Active     bool
	CreatedAt  time.Time
}
