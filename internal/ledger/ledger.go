package ledger

import (
	"context"

	"github.com/storeloop/catalog-orchestrator/internal/domain"
)

// CreateJobParams collects inputs for a new ledger row.
//
// JobID may be supplied by the caller so the row can be written before the
// matching queue message is published; the zero value generates one.
type CreateJobParams struct {
	JobID       string
	ParentJobID *string
	Type        domain.JobType
	Metadata    map[string]any
}

// Ledger is the durable record of every dispatched unit of work,
// independent of the broker. It is the source of truth for cross-worker
// coordination: multiple batch workers mutate the same parent's counters
// concurrently, so all counter updates must be atomic single-statement
// conditional writes, never read-modify-write.
type Ledger interface {
	CreateJob(ctx context.Context, p CreateJobParams) (*domain.Job, error)
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	FindChildren(ctx context.Context, parentJobID string) ([]domain.Job, error)

	// UpdateMetadata merges fields into the job's metadata map. Existing
	// keys not named in fields are left untouched.
	UpdateMetadata(ctx context.Context, jobID string, fields map[string]any) error

	// IncrementCounter atomically adds delta to an integer metadata field
	// and returns the new value. Counters are never decremented.
	IncrementCounter(ctx context.Context, jobID, field string, delta int64) (int64, error)

	SetStatus(ctx context.Context, jobID string, status domain.JobStatus) error
	SetProgress(ctx context.Context, jobID string, percent int) error

	// CompleteParent flips a parent from processing_batches to completed.
	// The status guard makes the flip idempotent when sibling batches
	// finish near-simultaneously: exactly one caller observes flipped=true
	// and performs the one-time bookkeeping.
	CompleteParent(ctx context.Context, jobID string) (bool, error)

	MarkCompleted(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID, reason string) error
}

// ParentDone reports whether every child of the parent is terminal. A
// child row may be created after an earlier child already finished, so
// completion requires both that all known children are terminal and that
// the expected batch count (written to the parent before fan-out) has
// been reached.
func ParentDone(parent *domain.Job, children []domain.Job) bool {
	expected := parent.MetaInt(domain.MetaTotalBatches)
	if expected > 0 && int64(len(children)) < expected {
		return false
	}
	if len(children) == 0 {
		return false
	}
	for _, c := range children {
		if !c.Status.Terminal() {
			return false
		}
	}
	return true
}

// CompleteParentIfDone rechecks sibling state and flips the parent to
// completed when every child is terminal. It returns true only for the
// single caller that performed the flip.
func CompleteParentIfDone(ctx context.Context, l Ledger, parentJobID string) (bool, error) {
	parent, err := l.GetJob(ctx, parentJobID)
	if err != nil {
		return false, err
	}
	if parent.Status.Terminal() {
		return false, nil
	}
	children, err := l.FindChildren(ctx, parentJobID)
	if err != nil {
		return false, err
	}
	if !ParentDone(parent, children) {
		return false, nil
	}
	return l.CompleteParent(ctx, parentJobID)
}
