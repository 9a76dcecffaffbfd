package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeloop/catalog-orchestrator/internal/products"
)

func TestMemoryStore_ReplaceContent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first := &GeneratedContent{EntityID: "e-1", Kind: ContentKindDescription, Content: "v1"}
	require.NoError(t, store.ReplaceContent(ctx, first))

	second := &GeneratedContent{EntityID: "e-1", Kind: ContentKindDescription, Content: "v2"}
	require.NoError(t, store.ReplaceContent(ctx, second))

	got := store.ContentFor("e-1", ContentKindDescription)
	require.NotNil(t, got)
	assert.Equal(t, "v2", got.Content)
	assert.NotEqual(t, first.ID, got.ID)

	assert.Nil(t, store.ContentFor("e-1", "other_kind"))
	assert.Nil(t, store.ContentFor("e-2", ContentKindDescription))
}

func TestMemoryStore_SaveSuggestions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.SaveSuggestions(ctx, "e-1", []Suggestion{
		{Category: "title", Title: "Add brand name"},
		{Category: "pricing", Title: "Competitive pricing"},
	}))
	require.NoError(t, store.SaveSuggestions(ctx, "e-1", []Suggestion{
		{Category: "description", Title: "Expand materials section"},
	}))

	got := store.SuggestionsFor("e-1")
	require.Len(t, got, 3)
	for _, s := range got {
		assert.NotEmpty(t, s.ID)
		assert.Equal(t, "e-1", s.EntityID)
		assert.False(t, s.CreatedAt.IsZero())
	}
}

func TestNewGenerator(t *testing.T) {
	g, err := NewGenerator(true)
	require.NoError(t, err)
	assert.IsType(t, &StaticGenerator{}, g)

	_, err = NewGenerator(false)
	assert.Error(t, err)
}

func TestStaticGenerator(t *testing.T) {
	ctx := context.Background()
	gen := NewStaticGenerator()
	entity := &products.Product{ID: "e-1", Title: "Blue Shirt", Category: "apparel"}

	suggestions, err := gen.GenerateSuggestions(ctx, entity, []string{"etsy", "amazon"})
	require.NoError(t, err)
	assert.Len(t, suggestions, 2)

	content, err := gen.GenerateContent(ctx, entity)
	require.NoError(t, err)
	require.NotNil(t, content)
	assert.Equal(t, ContentKindDescription, content.Kind)
	assert.Contains(t, content.Content, "Blue Shirt")
	assert.Positive(t, content.TokensUsed)
}

func TestStaticGenerator_FailEntities(t *testing.T) {
	ctx := context.Background()
	gen := NewStaticGenerator()
	gen.FailEntities = map[string]error{"e-bad": errors.New("model unavailable")}

	_, err := gen.GenerateSuggestions(ctx, &products.Product{ID: "e-bad"}, nil)
	assert.Error(t, err)

	_, err = gen.GenerateContent(ctx, &products.Product{ID: "e-bad"})
	assert.Error(t, err)
}
