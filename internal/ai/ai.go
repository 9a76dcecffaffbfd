package ai

import (
	"context"
	"time"

	"github.com/storeloop/catalog-orchestrator/internal/products"
)

// Content kinds for generated artifacts.
const (
	ContentKindDescription = "description"
)

// Suggestion is one categorized improvement recommendation for an entity.
type Suggestion struct {
	ID         string    `db:"id" json:"id"`
	EntityID   string    `db:"entity_id" json:"entity_id"`
	Category   string    `db:"category" json:"category"`
	Title      string    `db:"title" json:"title"`
	Body       string    `db:"body" json:"body"`
	Confidence float64   `db:"confidence" json:"confidence"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// GeneratedContent is the separately-tracked generated artifact for an
// entity. At most one row per (entity, kind) is kept: regeneration
// replaces the previous artifact instead of accumulating duplicates.
type GeneratedContent struct {
	ID         string    `db:"id" json:"id"`
	EntityID   string    `db:"entity_id" json:"entity_id"`
	Kind       string    `db:"kind" json:"kind"`
	Content    string    `db:"content" json:"content"`
	Confidence float64   `db:"confidence" json:"confidence"`
	TokensUsed int       `db:"tokens_used" json:"tokens_used"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// TextGenerator is the AI text-generation capability. It is not required
// to rate-limit itself; callers insert artificial delays and consult the
// cooldown gate before invoking it.
type TextGenerator interface {
	GenerateSuggestions(ctx context.Context, entity *products.Product, contextMarketplaces []string) ([]Suggestion, error)
	GenerateContent(ctx context.Context, entity *products.Product) (*GeneratedContent, error)
}

// SuggestionStore persists both artifact types.
type SuggestionStore interface {
	SaveSuggestions(ctx context.Context, entityID string, suggestions []Suggestion) error

	// ReplaceContent removes any previous artifact of the same
	// (entity, kind) before inserting the new one.
	ReplaceContent(ctx context.Context, c *GeneratedContent) error
}
