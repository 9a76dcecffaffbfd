package aiscan

import (
	"context"
	"time"
)

// Defaults for the rate-limited AI pipeline. Batches are small and spread
// over time; the bottleneck is the generation backend, not the broker.
const (
	DefaultBatchSize  = 10
	DefaultBatchDelay = 30 * time.Second
	DefaultItemDelay  = 2 * time.Second
)

// Config tunes the scan pipeline.
type Config struct {
	// BatchSize is the number of entities per fan-out batch.
	BatchSize int

	// BatchDelay staggers batch visibility: batch n becomes consumable
	// after (n-1)*BatchDelay.
	BatchDelay time.Duration

	// ItemDelay is the pause between consecutive generation calls inside
	// a batch.
	ItemDelay time.Duration
}

func (c Config) batchSize() int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	return DefaultBatchSize
}

func (c Config) batchDelay() time.Duration {
	if c.BatchDelay > 0 {
		return c.BatchDelay
	}
	return DefaultBatchDelay
}

func (c Config) itemDelay() time.Duration {
	if c.ItemDelay > 0 {
		return c.ItemDelay
	}
	return DefaultItemDelay
}

// ScanPayload starts an AI scan over a set of local entities.
type ScanPayload struct {
	TenantID            string   `json:"tenant_id"`
	EntityIDs           []string `json:"entity_ids"`
	ContextMarketplaces []string `json:"context_marketplaces,omitempty"`
}

// BatchPayload carries one partition of eligible entities to a worker.
type BatchPayload struct {
	ParentJobID         string   `json:"parent_job_id"`
	BatchNumber         int      `json:"batch_number"`
	TotalBatches        int      `json:"total_batches"`
	TenantID            string   `json:"tenant_id"`
	EntityIDs           []string `json:"entity_ids"`
	ContextMarketplaces []string `json:"context_marketplaces,omitempty"`
}

// sleep waits for d or until the context is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// partition splits ids into consecutive slices of at most size.
func partition(ids []string, size int) [][]string {
	if size <= 0 || len(ids) == 0 {
		return nil
	}
	out := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
