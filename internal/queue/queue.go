package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/storeloop/catalog-orchestrator/internal/domain"
)

// Named queues. One job type per queue so per-queue concurrency ceilings
// map directly onto job types.
const (
	QueueSyncOrchestrator = "sync.orchestrator"
	QueueSyncBatch        = "sync.batch"
	QueueAIScan           = "ai.scan"
	QueueAIBatch          = "ai.batch"
)

// DefaultMaxAttempts bounds transport redeliveries when the enqueuer does
// not specify a limit.
const DefaultMaxAttempts = 3

// Options tune a single enqueue.
type Options struct {
	// JobID pairs the message with an existing ledger row. The ledger row
	// must be written before the message is published; the zero value
	// generates a fresh id.
	JobID string

	// Priority is the broker priority (0 = normal, higher wins).
	Priority uint8

	// Delay holds the message back before it becomes consumable. Used to
	// spread dependent batches over time for rate-limited downstreams; a
	// scheduling decision, not a correctness requirement.
	Delay time.Duration

	// MaxAttempts bounds redeliveries; 0 means DefaultMaxAttempts.
	MaxAttempts int
}

// Envelope is the wire format for a queued unit of work.
type Envelope struct {
	JobID       string          `json:"job_id"`
	JobType     domain.JobType  `json:"job_type"`
	Payload     json.RawMessage `json:"payload"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
}

// JobContext is what a handler receives for one delivery.
type JobContext struct {
	JobID       string
	Type        domain.JobType
	Data        json.RawMessage
	Attempt     int
	MaxAttempts int

	progress ProgressFunc
}

// ProgressFunc reports percent progress for the job being handled.
type ProgressFunc func(ctx context.Context, jobID string, percent int) error

// Bind unmarshals the payload into v.
func (jc *JobContext) Bind(v any) error {
	if err := json.Unmarshal(jc.Data, v); err != nil {
		return domain.ErrInvalidPayload
	}
	return nil
}

// ReportProgress writes percent progress through the ledger. Errors are
// swallowed by the transport wrapper; progress is advisory.
func (jc *JobContext) ReportProgress(ctx context.Context, percent int) {
	if jc.progress != nil {
		_ = jc.progress(ctx, jc.JobID, percent)
	}
}

// FinalAttempt reports whether no further redelivery will follow a failure
// of the current attempt. Handlers use it to run terminal bookkeeping
// (marking themselves failed, rechecking parent completion) on the last try.
func (jc *JobContext) FinalAttempt() bool {
	return jc.Attempt >= jc.MaxAttempts
}

// Handler processes one delivery. A returned error triggers redelivery up
// to MaxAttempts; exhausting attempts marks the ledger row failed without
// operator intervention.
type Handler func(ctx context.Context, job *JobContext) error

// Ledger is the slice of the job ledger the transport needs: terminal
// failure marking when attempts are exhausted, and progress reporting.
type Ledger interface {
	MarkFailed(ctx context.Context, jobID, reason string) error
	SetProgress(ctx context.Context, jobID string, percent int) error
}

// Transport is a thin abstraction over the message broker: named queues,
// typed payloads, priority, delay and bounded redelivery.
type Transport interface {
	Enqueue(ctx context.Context, queueName string, jobType domain.JobType, payload any, opts Options) (string, error)
	Consume(ctx context.Context, queueName string, jobType domain.JobType, concurrency int, handler Handler) error
}
