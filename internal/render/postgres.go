package render

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/storeloop/catalog-orchestrator/internal/domain"
)

// PostgresStore is the durable Store over the videos table.
type PostgresStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewPostgresStore(db *sqlx.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

func (s *PostgresStore) Create(ctx context.Context, v *Video) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Status == "" {
		v.Status = StatusPending
	}
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO videos (id, product_id, status, external_ref, result_url, thumbnail_url, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		v.ID, v.ProductID, v.Status, v.ExternalRef, v.ResultURL, v.ThumbnailURL, v.ErrorMessage, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, videoID string) (*Video, error) {
	var v Video
	err := s.db.GetContext(ctx, &v, `SELECT * FROM videos WHERE id = $1`, videoID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrVideoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select video: %w", err)
	}
	return &v, nil
}

func (s *PostgresStore) ApplyResult(ctx context.Context, videoID string, u ResultUpdate) (*Video, error) {
	// NULLIF/COALESCE keeps stored values where the callback sent nothing.
	var v Video
	err := s.db.GetContext(ctx, &v, `
		UPDATE videos SET
			status        = COALESCE(NULLIF($2, ''), status),
			external_ref  = COALESCE(NULLIF($3, ''), external_ref),
			result_url    = COALESCE(NULLIF($4, ''), result_url),
			thumbnail_url = COALESCE(NULLIF($5, ''), thumbnail_url),
			error_message = CASE WHEN $7 THEN '' ELSE COALESCE(NULLIF($6, ''), error_message) END,
			updated_at    = NOW()
		WHERE id = $1
		RETURNING *`,
		videoID, u.Status, u.ExternalRef, u.ResultURL, u.ThumbnailURL, u.ErrorMessage, u.ClearError,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrVideoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update video: %w", err)
	}
	return &v, nil
}
