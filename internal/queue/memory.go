package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storeloop/catalog-orchestrator/internal/domain"
)

// EnqueuedRecord is the memory transport's log of one enqueue, kept for
// inspection in tests and local runs.
type EnqueuedRecord struct {
	Queue    string
	JobType  domain.JobType
	JobID    string
	Priority uint8
	Delay    time.Duration
	Attempts int
}

type memoryPending struct {
	queue string
	env   Envelope
}

// MemoryTransport is an in-process Transport. Jobs run synchronously on
// Enqueue when a handler is registered, which makes orchestration flows
// deterministic under test; delay is recorded rather than waited out.
type MemoryTransport struct {
	mu       sync.Mutex
	ledger   Ledger
	handlers map[string]Handler
	pending  []memoryPending
	records  []EnqueuedRecord
}

// NewMemoryTransport creates an empty in-memory transport.
func NewMemoryTransport(l Ledger) *MemoryTransport {
	return &MemoryTransport{
		ledger:   l,
		handlers: make(map[string]Handler),
	}
}

func handlerKey(queueName string, jobType domain.JobType) string {
	return queueName + "|" + string(jobType)
}

func (t *MemoryTransport) Enqueue(ctx context.Context, queueName string, jobType domain.JobType, payload any, opts Options) (string, error) {
	jobID := opts.JobID
	if jobID == "" {
		jobID = uuid.New().String()
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	env := Envelope{
		JobID:       jobID,
		JobType:     jobType,
		Payload:     payloadJSON,
		Attempt:     1,
		MaxAttempts: maxAttempts,
		EnqueuedAt:  time.Now(),
	}

	t.mu.Lock()
	t.records = append(t.records, EnqueuedRecord{
		Queue:    queueName,
		JobType:  jobType,
		JobID:    jobID,
		Priority: opts.Priority,
		Delay:    opts.Delay,
	})
	handler, ok := t.handlers[handlerKey(queueName, jobType)]
	if !ok {
		t.pending = append(t.pending, memoryPending{queue: queueName, env: env})
		t.mu.Unlock()
		return jobID, nil
	}
	t.mu.Unlock()

	t.dispatch(ctx, handler, env)
	return jobID, nil
}

func (t *MemoryTransport) Consume(_ context.Context, queueName string, jobType domain.JobType, _ int, handler Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[handlerKey(queueName, jobType)] = handler
	return nil
}

// Flush dispatches jobs that were enqueued before their handler was
// registered. It loops because handlers may enqueue further work.
func (t *MemoryTransport) Flush(ctx context.Context) {
	for {
		t.mu.Lock()
		if len(t.pending) == 0 {
			t.mu.Unlock()
			return
		}
		next := t.pending[0]
		t.pending = t.pending[1:]
		handler, ok := t.handlers[handlerKey(next.queue, next.env.JobType)]
		t.mu.Unlock()

		if ok {
			t.dispatch(ctx, handler, next.env)
		}
	}
}

// Records returns a copy of the enqueue log.
func (t *MemoryTransport) Records() []EnqueuedRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]EnqueuedRecord, len(t.records))
	copy(out, t.records)
	return out
}

func (t *MemoryTransport) dispatch(ctx context.Context, handler Handler, env Envelope) {
	for attempt := env.Attempt; attempt <= env.MaxAttempts; attempt++ {
		jobCtx := &JobContext{
			JobID:       env.JobID,
			Type:        env.JobType,
			Data:        env.Payload,
			Attempt:     attempt,
			MaxAttempts: env.MaxAttempts,
		}
		if t.ledger != nil {
			jobCtx.progress = t.ledger.SetProgress
		}

		err := handler(ctx, jobCtx)
		if err == nil {
			return
		}
		if attempt >= env.MaxAttempts {
			if t.ledger != nil {
				_ = t.ledger.MarkFailed(ctx, env.JobID, err.Error())
			}
			return
		}
	}
}
