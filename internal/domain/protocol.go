package domain

import "time"

// Protocol represents an on-chain protocol (DEX, lending market, etc.).
// Corresponds to protocols table in PostgreSQL.
type Protocol struct {
	ID          int64  // BIGSERIAL primary key
	Name        string // globally unique protocol name
	Symbol      string // ticker symbol
	Category    string // free-form classification: DEX, Lending, Stablecoin, ...
	Description string
	WebsiteURL  string
	CreatedAt   time.Time
}
