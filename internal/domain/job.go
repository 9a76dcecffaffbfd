package domain

import (
	"encoding/json"
	"math"
	"time"
)

// JobType identifies which handler a queued unit of work is routed to.
type JobType string

const (
	JobTypeSyncOrchestrator JobType = "SYNC_ORCHESTRATOR"
	JobTypeSyncBatch        JobType = "SYNC_BATCH"
	JobTypeAIScan           JobType = "AI_SCAN"
	JobTypeAIBatch          JobType = "AI_BATCH"
)

// JobStatus is the lifecycle state of a ledger job.
//
// A parent enters processing_batches once its batch units are created and
// stays there until every child has reported a terminal state.
type JobStatus string

const (
	JobStatusQueued            JobStatus = "queued"
	JobStatusProcessingBatches JobStatus = "processing_batches"
	JobStatusCompleted         JobStatus = "completed"
	JobStatusFailed            JobStatus = "failed"

	// JobStatusCancelled is reserved so a cancelled parent is
	// distinguishable from completed/failed. No transition into it is
	// wired yet; cancellation semantics are intentionally unimplemented.
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether a job in this status will never change again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Metadata field names used for cross-worker coordination on parent jobs.
const (
	MetaTotalItems      = "totalItems"
	MetaProcessedItems  = "processedItems"
	MetaFailedItems     = "failedItems"
	MetaPhase           = "phase"
	MetaEstimatedTotal  = "estimatedTotal"
	MetaTotalBatches    = "totalBatches"
	MetaBlockedEntities = "blockedEntities"
)

// Phases of a sync parent. Progress measured while scanning is not
// comparable to progress measured while syncing, so the counter is reset
// on the phase flip.
const (
	PhaseScanning = "scanning"
	PhaseSyncing  = "syncing"
)

// Job is one row in the job ledger: a dispatched unit of work, parent or
// child. Rows are never deleted; they are retained for audit and debugging.
type Job struct {
	JobID       string         `db:"job_id" json:"job_id"`
	ParentJobID *string        `db:"parent_job_id" json:"parent_job_id,omitempty"`
	Type        JobType        `db:"job_type" json:"job_type"`
	Status      JobStatus      `db:"status" json:"status"`
	Progress    int            `db:"progress" json:"progress"`
	Metadata    map[string]any `db:"-" json:"metadata,omitempty"`
	Error       string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// MetaInt reads an integer metadata field. JSON round-trips turn numbers
// into float64, so both representations are accepted.
func (j *Job) MetaInt(key string) int64 {
	if j.Metadata == nil {
		return 0
	}
	switch v := j.Metadata[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// MetaString reads a string metadata field.
func (j *Job) MetaString(key string) string {
	if j.Metadata == nil {
		return ""
	}
	if v, ok := j.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// ProgressPercent derives a percent from ledger counters. It returns
// ok=false when the total is not yet known, in which case progress is
// indeterminate and must not be written (a stale zero total would
// otherwise read as divide-by-zero or a misleading 100%).
func ProgressPercent(processed, total int64) (int, bool) {
	if total <= 0 {
		return 0, false
	}
	pct := int(math.Round(float64(processed) / float64(total) * 100))
	if pct > 100 {
		pct = 100
	}
	return pct, true
}
