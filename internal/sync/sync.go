package sync

import (
	"github.com/storeloop/catalog-orchestrator/internal/catalog"
)

// Defaults applied when config leaves the knobs unset.
const (
	DefaultBatchSize = 75
	DefaultPageSize  = 100
)

// Config tunes the sync pipeline.
type Config struct {
	// BatchSize is the number of items per fan-out batch.
	BatchSize int

	// PageSize caps one enumeration round-trip to the source. Purely a
	// paging hint for progress reporting; sources page at their own size.
	PageSize int
}

func (c Config) batchSize() int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	return DefaultBatchSize
}

// OrchestratorPayload starts a full-catalog sync for one connection.
type OrchestratorPayload struct {
	Connection catalog.ConnectionRef `json:"connection"`
	Filters    catalog.Filters       `json:"filters"`

	// CreateDrafts inserts placeholder products during enumeration so
	// consumers can observe partial results before details arrive.
	CreateDrafts bool `json:"create_drafts,omitempty"`
}

// BatchPayload carries one partition of external ids to a batch worker.
type BatchPayload struct {
	ParentJobID  string                `json:"parent_job_id"`
	BatchNumber  int                   `json:"batch_number"`
	TotalBatches int                   `json:"total_batches"`
	Connection   catalog.ConnectionRef `json:"connection"`
	ExternalIDs  []string              `json:"external_ids"`
	CreateDrafts bool                  `json:"create_drafts,omitempty"`
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
