package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/storeloop/catalog-orchestrator/internal/domain"
)

// PostgresStore persists products and item history in Postgres.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a product store over an existing pool.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Upsert inserts or updates the row for (tenant, connection, external id)
// in one statement. A draft placeholder is promoted in place: the conflict
// branch overwrites detail fields and flips status to active.
func (s *PostgresStore) Upsert(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = StatusActive
	}

	query := `
		INSERT INTO products (
			id, tenant_id, connection_id, external_id,
			title, description, category, price, image_url, status,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10,
			NOW(), NOW()
		)
		ON CONFLICT (tenant_id, connection_id, external_id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			price = EXCLUDED.price,
			image_url = EXCLUDED.image_url,
			status = EXCLUDED.status,
			updated_at = NOW()
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.TenantID, p.ConnectionID, p.ExternalID,
		p.Title, p.Description, p.Category, p.Price, p.ImageURL, p.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

// CreateDraft inserts a placeholder row unless one already exists.
func (s *PostgresStore) CreateDraft(ctx context.Context, tenantID, connectionID, externalID string) error {
	query := `
		INSERT INTO products (id, tenant_id, connection_id, external_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (tenant_id, connection_id, external_id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query, uuid.New().String(), tenantID, connectionID, externalID, StatusDraft)
	if err != nil {
		return fmt.Errorf("failed to create draft product: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, productID string) (*Product, error) {
	query := `
		SELECT id, tenant_id, connection_id, external_id,
		       COALESCE(title, '') AS title,
		       COALESCE(description, '') AS description,
		       COALESCE(category, '') AS category,
		       COALESCE(price, 0) AS price,
		       COALESCE(image_url, '') AS image_url,
		       status,
		       COALESCE(render_status, '') AS render_status,
		       COALESCE(render_url, '') AS render_url,
		       created_at, updated_at
		FROM products
		WHERE id = $1
	`

	var p Product
	if err := s.db.GetContext(ctx, &p, query, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) RecordItemHistory(ctx context.Context, e HistoryEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	query := `
		INSERT INTO sync_item_history (id, parent_job_id, batch_number, entity_id, outcome, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`

	_, err := s.db.ExecContext(ctx, query, e.ID, e.ParentJobID, e.BatchNumber, e.EntityID, e.Outcome, e.Reason)
	if err != nil {
		return fmt.Errorf("failed to record item history: %w", err)
	}
	return nil
}

func (s *PostgresStore) TouchLastSynced(ctx context.Context, connectionID string, at time.Time) error {
	query := `
		INSERT INTO connections (connection_id, last_synced_at)
		VALUES ($1, $2)
		ON CONFLICT (connection_id) DO UPDATE SET last_synced_at = EXCLUDED.last_synced_at
	`

	_, err := s.db.ExecContext(ctx, query, connectionID, at)
	if err != nil {
		return fmt.Errorf("failed to touch last synced: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateRenderStatus(ctx context.Context, productID, status, renderURL string) error {
	query := `
		UPDATE products
		SET render_status = $2,
		    render_url = CASE WHEN $3 <> '' THEN $3 ELSE render_url END,
		    updated_at = NOW()
		WHERE id = $1
	`

	res, err := s.db.ExecContext(ctx, query, productID, status, renderURL)
	if err != nil {
		return fmt.Errorf("failed to update render status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}
