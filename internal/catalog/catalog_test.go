package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeloop/catalog-orchestrator/internal/domain"
)

func makeItems(n int) []Item {
	items := make([]Item, 0, n)
	for i := 1; i <= n; i++ {
		category := "apparel"
		if i%2 == 0 {
			category = "home"
		}
		items = append(items, Item{
			ExternalID: fmt.Sprintf("item-%03d", i),
			Title:      fmt.Sprintf("Test Item %d", i),
			Category:   category,
			Price:      float64(i),
			UpdatedAt:  time.Now().Add(-time.Duration(i) * time.Hour),
		})
	}
	return items
}

func TestRegistry_Lookup(t *testing.T) {
	reg := NewRegistry()
	src := NewStaticSource(nil, 10)

	reg.Register("sandbox", src)

	got, err := reg.Lookup("sandbox")
	require.NoError(t, err)
	assert.Same(t, src, got)

	_, err = reg.Lookup("etsy")
	assert.ErrorIs(t, err, domain.ErrUnknownMarketplace)
}

func TestStaticSource_ListIDs_Paging(t *testing.T) {
	ctx := context.Background()
	src := NewStaticSource(makeItems(25), 10)
	conn := ConnectionRef{ConnectionID: "c-1", Marketplace: "sandbox"}

	var all []string
	for page := 0; ; page++ {
		p, err := src.ListIDs(ctx, conn, Filters{}, page)
		require.NoError(t, err)
		all = append(all, p.IDs...)
		if !p.HasMore {
			break
		}
	}
	assert.Len(t, all, 25)
	assert.Equal(t, "item-001", all[0])
	assert.Equal(t, "item-025", all[24])
}

func TestStaticSource_ListIDs_FiltersPerPage(t *testing.T) {
	ctx := context.Background()
	src := NewStaticSource(makeItems(20), 10)
	conn := ConnectionRef{}

	p, err := src.ListIDs(ctx, conn, Filters{Category: "home"}, 0)
	require.NoError(t, err)
	assert.Len(t, p.IDs, 5, "half of a 10-item page matches")
	assert.True(t, p.HasMore)
}

func TestStaticSource_EstimateTotal(t *testing.T) {
	ctx := context.Background()
	src := NewStaticSource(makeItems(20), 10)

	total, ok, err := src.EstimateTotal(ctx, ConnectionRef{}, Filters{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 20, total)

	total, ok, err = src.EstimateTotal(ctx, ConnectionRef{}, Filters{Category: "home"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10, total)

	src.CanEstimate = false
	_, ok, err = src.EstimateTotal(ctx, ConnectionRef{}, Filters{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStaticSource_FetchDetail(t *testing.T) {
	ctx := context.Background()
	src := NewStaticSource(makeItems(5), 10)
	src.SkipIDs["item-002"] = true
	src.FailIDs["item-003"] = errors.New("upstream 500")

	item, err := src.FetchDetail(ctx, ConnectionRef{}, "item-001")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "Test Item 1", item.Title)

	item, err = src.FetchDetail(ctx, ConnectionRef{}, "item-002")
	require.NoError(t, err)
	assert.Nil(t, item, "skip id answers with no detail")

	_, err = src.FetchDetail(ctx, ConnectionRef{}, "item-003")
	assert.Error(t, err)

	item, err = src.FetchDetail(ctx, ConnectionRef{}, "unknown")
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestFilters_Match(t *testing.T) {
	cutoff := time.Now().Add(-2 * time.Hour)
	item := &Item{
		Title:     "Blue Cotton Shirt",
		Category:  "apparel",
		UpdatedAt: time.Now().Add(-time.Hour),
	}

	tests := []struct {
		name   string
		f      Filters
		expect bool
	}{
		{"empty filter matches", Filters{}, true},
		{"category match", Filters{Category: "apparel"}, true},
		{"category mismatch", Filters{Category: "home"}, false},
		{"search case-insensitive", Filters{Search: "cotton"}, true},
		{"search mismatch", Filters{Search: "wool"}, false},
		{"updated inside window", Filters{UpdatedSince: &cutoff}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, tt.f.Match(item))
		})
	}
}
