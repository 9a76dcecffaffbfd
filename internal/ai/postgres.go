package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Store is the PostgreSQL implementation of SuggestionStore.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

func (s *Store) SaveSuggestions(ctx context.Context, entityID string, suggestions []Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for i := range suggestions {
		sg := &suggestions[i]
		if sg.ID == "" {
			sg.ID = uuid.NewString()
		}
		sg.EntityID = entityID
		sg.CreatedAt = now

		_, err = tx.ExecContext(ctx, `
			INSERT INTO ai_suggestions (id, entity_id, category, title, body, confidence, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			sg.ID, sg.EntityID, sg.Category, sg.Title, sg.Body, sg.Confidence, sg.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert suggestion: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) ReplaceContent(ctx context.Context, c *GeneratedContent) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM ai_generated_content WHERE entity_id = $1 AND kind = $2`,
		c.EntityID, c.Kind,
	)
	if err != nil {
		return fmt.Errorf("delete previous content: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ai_generated_content (id, entity_id, kind, content, confidence, tokens_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.EntityID, c.Kind, c.Content, c.Confidence, c.TokensUsed, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert content: %w", err)
	}

	return tx.Commit()
}
