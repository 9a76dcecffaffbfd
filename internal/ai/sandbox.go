package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/storeloop/catalog-orchestrator/internal/products"
)

// NewGenerator returns the TextGenerator wired into the scan worker. The
// static generator is the only one available so far, so a non-sandbox
// deployment refuses to start instead of fabricating AI content.
func NewGenerator(sandbox bool) (TextGenerator, error) {
	if !sandbox {
		return nil, errors.New("no AI provider configured, enable sandbox mode")
	}
	return NewStaticGenerator(), nil
}

// StaticGenerator is a deterministic TextGenerator used in sandbox mode
// and tests. It fabricates suggestions and content from the entity's own
// fields so runs are reproducible without an external model.
type StaticGenerator struct {
	// FailEntities maps entity IDs to errors returned for them.
	FailEntities map[string]error

	// SuggestionsPerEntity sets how many suggestions are produced per
	// call. Zero means the default of 2.
	SuggestionsPerEntity int
}

func NewStaticGenerator() *StaticGenerator {
	return &StaticGenerator{FailEntities: map[string]error{}}
}

func (g *StaticGenerator) GenerateSuggestions(ctx context.Context, entity *products.Product, contextMarketplaces []string) ([]Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := g.FailEntities[entity.ID]; err != nil {
		return nil, err
	}

	n := g.SuggestionsPerEntity
	if n <= 0 {
		n = 2
	}

	categories := []string{"title", "description", "attributes", "pricing"}
	out := make([]Suggestion, 0, n)
	for i := 0; i < n; i++ {
		cat := categories[i%len(categories)]
		out = append(out, Suggestion{
			EntityID:   entity.ID,
			Category:   cat,
			Title:      fmt.Sprintf("Improve %s for %q", cat, entity.Title),
			Body:       fmt.Sprintf("Listing %s could be enriched based on %d comparable marketplaces.", cat, len(contextMarketplaces)),
			Confidence: 0.7 + 0.05*float64(i%4),
		})
	}
	return out, nil
}

func (g *StaticGenerator) GenerateContent(ctx context.Context, entity *products.Product) (*GeneratedContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := g.FailEntities[entity.ID]; err != nil {
		return nil, err
	}

	return &GeneratedContent{
		EntityID:   entity.ID,
		Kind:       ContentKindDescription,
		Content:    fmt.Sprintf("%s. A quality listing in the %s category.", entity.Title, entity.Category),
		Confidence: 0.8,
		TokensUsed: 40 + len(entity.Title),
	}, nil
}
