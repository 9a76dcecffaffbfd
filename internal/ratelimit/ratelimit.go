package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Categories of rate-limited actions.
const (
	CategoryAIScan = "ai_scan"
)

// Store is the append-only scan-history ledger. Rows are written on every
// attempt, never mutated, and expired by a rolling-window count query
// rather than TTL deletion so the history stays available for audit.
type Store interface {
	Record(ctx context.Context, entityID, category string) error
	CountSince(ctx context.Context, entityID, category string, since time.Time) (int, error)
}

// BlockedEntity reports why an entity was excluded from a scan pass.
type BlockedEntity struct {
	EntityID  string `json:"entity_id"`
	ScanCount int    `json:"scan_count"`
}

// Gate enforces "at most N actions per entity per rolling window".
type Gate struct {
	store    Store
	window   time.Duration
	maxScans int
	logger   *slog.Logger
}

// NewGate builds a gate over the scan-history store.
func NewGate(store Store, window time.Duration, maxScans int, logger *slog.Logger) *Gate {
	if window <= 0 {
		window = 24 * time.Hour
	}
	if maxScans <= 0 {
		maxScans = 2
	}
	return &Gate{
		store:    store,
		window:   window,
		maxScans: maxScans,
		logger:   logger,
	}
}

// Eligible splits candidates into entities that may be processed and a
// structured blocked set. Blocked entities are reported back, never
// silently dropped.
func (g *Gate) Eligible(ctx context.Context, category string, entityIDs []string) ([]string, []BlockedEntity, error) {
	since := time.Now().Add(-g.window)
	eligible := make([]string, 0, len(entityIDs))
	var blocked []BlockedEntity

	for _, id := range entityIDs {
		count, err := g.store.CountSince(ctx, id, category, since)
		if err != nil {
			return nil, nil, err
		}
		if count >= g.maxScans {
			blocked = append(blocked, BlockedEntity{EntityID: id, ScanCount: count})
			continue
		}
		eligible = append(eligible, id)
	}

	if len(blocked) > 0 {
		g.logger.Info("Entities excluded by cooldown",
			slog.String("category", category),
			slog.Int("blocked", len(blocked)),
			slog.Int("eligible", len(eligible)),
		)
	}
	return eligible, blocked, nil
}

// Allow re-checks a single entity's cooldown immediately before work.
// Guards against a cooldown consumed by a concurrent batch between
// pre-filter time and execution time.
func (g *Gate) Allow(ctx context.Context, category, entityID string) (bool, int, error) {
	count, err := g.store.CountSince(ctx, entityID, category, time.Now().Add(-g.window))
	if err != nil {
		return false, 0, err
	}
	return count < g.maxScans, count, nil
}

// Record writes one attempt row. Called on every attempt, including ones
// the caller subsequently skips.
func (g *Gate) Record(ctx context.Context, category, entityID string) error {
	return g.store.Record(ctx, entityID, category)
}
