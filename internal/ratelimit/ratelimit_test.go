package ratelimit

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGate(store Store) *Gate {
	return NewGate(store, 24*time.Hour, 2, slog.Default())
}

func TestGate_Eligible(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	gate := testGate(store)

	// entity-b has one scan, entity-c has exhausted its allowance
	require.NoError(t, gate.Record(ctx, CategoryAIScan, "entity-b"))
	require.NoError(t, gate.Record(ctx, CategoryAIScan, "entity-c"))
	require.NoError(t, gate.Record(ctx, CategoryAIScan, "entity-c"))

	eligible, blocked, err := gate.Eligible(ctx, CategoryAIScan, []string{"entity-a", "entity-b", "entity-c"})
	require.NoError(t, err)

	assert.Equal(t, []string{"entity-a", "entity-b"}, eligible)
	require.Len(t, blocked, 1)
	assert.Equal(t, "entity-c", blocked[0].EntityID)
	assert.Equal(t, 2, blocked[0].ScanCount)
}

func TestGate_WindowExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	gate := testGate(store)

	base := time.Now()
	store.SetClock(func() time.Time { return base.Add(-25 * time.Hour) })
	require.NoError(t, gate.Record(ctx, CategoryAIScan, "entity-a"))
	require.NoError(t, gate.Record(ctx, CategoryAIScan, "entity-a"))

	// Both scans have aged out of the rolling window
	store.SetClock(time.Now)
	allowed, count, err := gate.Allow(ctx, CategoryAIScan, "entity-a")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 0, count)
}

func TestGate_Allow(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	gate := testGate(store)

	allowed, count, err := gate.Allow(ctx, CategoryAIScan, "entity-a")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 0, count)

	require.NoError(t, gate.Record(ctx, CategoryAIScan, "entity-a"))
	allowed, count, err = gate.Allow(ctx, CategoryAIScan, "entity-a")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, count)

	require.NoError(t, gate.Record(ctx, CategoryAIScan, "entity-a"))
	allowed, count, err = gate.Allow(ctx, CategoryAIScan, "entity-a")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 2, count)
}

func TestGate_CategoriesAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	gate := testGate(store)

	require.NoError(t, gate.Record(ctx, CategoryAIScan, "entity-a"))
	require.NoError(t, gate.Record(ctx, CategoryAIScan, "entity-a"))

	allowed, count, err := gate.Allow(ctx, "other_category", "entity-a")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 0, count)
}

func TestNewGate_Defaults(t *testing.T) {
	gate := NewGate(NewMemoryStore(), 0, 0, slog.Default())
	assert.Equal(t, 24*time.Hour, gate.window)
	assert.Equal(t, 2, gate.maxScans)
}
