package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PostgresStore persists scan records in the scan_records table.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a scan-history store over an existing pool.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Record(ctx context.Context, entityID, category string) error {
	query := `
		INSERT INTO scan_records (id, entity_id, category, scanned_at)
		VALUES ($1, $2, $3, NOW())
	`

	_, err := s.db.ExecContext(ctx, query, uuid.New().String(), entityID, category)
	if err != nil {
		return fmt.Errorf("failed to record scan: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountSince(ctx context.Context, entityID, category string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM scan_records
		WHERE entity_id = $1 AND category = $2 AND scanned_at >= $3
	`

	var count int
	if err := s.db.GetContext(ctx, &count, query, entityID, category, since); err != nil {
		return 0, fmt.Errorf("failed to count scans: %w", err)
	}
	return count, nil
}
