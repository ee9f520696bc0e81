package postgres

import (
	"context"
	"fmt"

	"defi-analytics/internal/domain"
	"defi-analytics/internal/storage"
)

// ProtocolStore implements storage.ProtocolStore using PostgreSQL.
type ProtocolStore struct {
	pool *Pool
}

// NewProtocolStore creates a new ProtocolStore.
func NewProtocolStore(pool *Pool) *ProtocolStore {
	return &ProtocolStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ProtocolStore = (*ProtocolStore)(nil)

// Insert adds a new protocol and sets p.ID. Returns ErrDuplicateKey if the
// name exists.
func (s *ProtocolStore) Insert(ctx context.Context, p *domain.Protocol) error {
	query := `
		INSERT INTO protocols (name, symbol, category, description, website_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING protocol_id, created_at
	`

	err := s.pool.QueryRow(ctx, query,
		p.Name,
		p.Symbol,
		p.Category,
		p.Description,
		p.WebsiteURL,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert protocol: %w", err)
	}
	return nil
}

// GetByName retrieves a protocol by its unique name.
func (s *ProtocolStore) GetByName(ctx context.Context, name string) (*domain.Protocol, error) {
	query := `
		SELECT protocol_id, name, symbol, category, description, website_url, created_at
		FROM protocols
		WHERE name = $1
	`

	var p domain.Protocol
	err := s.pool.QueryRow(ctx, query, name).Scan(
		&p.ID, &p.Name, &p.Symbol, &p.Category, &p.Description, &p.WebsiteURL, &p.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get protocol by name: %w", err)
	}
	return &p, nil
}

// List retrieves up to limit protocols ordered by id ASC. A non-positive
// limit returns all rows.
func (s *ProtocolStore) List(ctx context.Context, limit int) ([]*domain.Protocol, error) {
	query := `
		SELECT protocol_id, name, symbol, category, description, website_url, created_at
		FROM protocols
		ORDER BY protocol_id ASC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list protocols: %w", err)
	}
	defer rows.Close()

	var protocols []*domain.Protocol
	for rows.Next() {
		var p domain.Protocol
		err := rows.Scan(&p.ID, &p.Name, &p.Symbol, &p.Category, &p.Description, &p.WebsiteURL, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan protocol row: %w", err)
		}
		protocols = append(protocols, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate protocol rows: %w", err)
	}

	return protocols, nil
}

// Count returns the total number of protocols.
func (s *ProtocolStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM protocols`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count protocols: %w", err)
	}
	return count, nil
}
