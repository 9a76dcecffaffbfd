package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/storeloop/catalog-orchestrator/internal/domain"
	"github.com/storeloop/catalog-orchestrator/internal/telemetry"
	"github.com/storeloop/catalog-orchestrator/shared/rabbitmq"
)

// AMQPConfig tunes the broker-backed transport.
type AMQPConfig struct {
	// RetryBackoff is the redelivery delay applied when a handler fails
	// and attempts remain. Scaled linearly by attempt number.
	RetryBackoff time.Duration

	// JobTimeout bounds a single handler invocation.
	JobTimeout time.Duration

	// Prefetch widens the per-queue prefetch window beyond the consumer
	// count; 0 means prefetch equals concurrency.
	Prefetch int
}

// AMQPTransport implements Transport on top of RabbitMQ. Redelivery is
// done by republishing through the wait queue with an attempt header
// rather than broker nack/requeue, so the attempt count survives and
// backoff applies between tries.
type AMQPTransport struct {
	client  *rabbitmq.Client
	ledger  Ledger
	logger  *slog.Logger
	cfg     AMQPConfig
	wg      sync.WaitGroup
	nextTag func() string
}

// NewAMQPTransport wires the transport over an established client.
func NewAMQPTransport(client *rabbitmq.Client, l Ledger, logger *slog.Logger, cfg AMQPConfig) *AMQPTransport {
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 15 * time.Second
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 15 * time.Minute
	}
	return &AMQPTransport{
		client: client,
		ledger: l,
		logger: logger,
		cfg:    cfg,
		nextTag: func() string {
			return "consumer-" + uuid.New().String()[:8]
		},
	}
}

// DeclareQueues declares every named work queue and its wait companion.
func (t *AMQPTransport) DeclareQueues() error {
	for _, q := range []string{QueueSyncOrchestrator, QueueSyncBatch, QueueAIScan, QueueAIBatch} {
		if err := t.client.DeclareWorkQueue(q); err != nil {
			return err
		}
	}
	return nil
}

// Enqueue publishes one unit of work. When opts.JobID is set the matching
// ledger row must already exist: parents are written before children are
// dispatched so consumers can poll parent state mid-fan-out.
func (t *AMQPTransport) Enqueue(ctx context.Context, queueName string, jobType domain.JobType, payload any, opts Options) (string, error) {
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

	if err := t.publish(ctx, queueName, env, opts.Priority, opts.Delay); err != nil {
		return "", err
	}

	telemetry.JobsEnqueued.WithLabelValues(queueName).Inc()
	t.logger.Debug("Job enqueued",
		slog.String("queue", queueName),
		slog.String("job_id", jobID),
		slog.String("job_type", string(jobType)),
		slog.Duration("delay", opts.Delay),
	)
	return jobID, nil
}

func (t *AMQPTransport) publish(ctx context.Context, queueName string, env Envelope, priority uint8, delay time.Duration) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	headers := amqp.Table{
		"x-attempt": int32(env.Attempt),
	}
	return t.client.Publish(ctx, queueName, body, priority, delay, headers)
}

// Consume registers a handler and spawns concurrency consumer goroutines
// for the queue.
func (t *AMQPTransport) Consume(ctx context.Context, queueName string, jobType domain.JobType, concurrency int, handler Handler) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	prefetch := concurrency
	if t.cfg.Prefetch > prefetch {
		prefetch = t.cfg.Prefetch
	}

	deliveries, err := t.client.Consume(queueName, t.nextTag(), prefetch)
	if err != nil {
		return fmt.Errorf("failed to start consumer for %s: %w", queueName, err)
	}

	for i := 0; i < concurrency; i++ {
		t.wg.Add(1)
		go t.consumeLoop(ctx, queueName, jobType, deliveries, handler)
	}

	t.logger.Info("Consumer registered",
		slog.String("queue", queueName),
		slog.String("job_type", string(jobType)),
		slog.Int("concurrency", concurrency),
	)
	return nil
}

// Wait blocks until every consumer goroutine has exited.
func (t *AMQPTransport) Wait() {
	t.wg.Wait()
}

func (t *AMQPTransport) consumeLoop(ctx context.Context, queueName string, jobType domain.JobType, deliveries <-chan amqp.Delivery, handler Handler) {
	defer t.wg.Done()
	telemetry.ActiveConsumers.WithLabelValues(queueName).Inc()
	defer telemetry.ActiveConsumers.WithLabelValues(queueName).Dec()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("Consumer stopping - context canceled",
				slog.String("queue", queueName),
			)
			return

		case delivery, ok := <-deliveries:
			if !ok {
				t.logger.Warn("Delivery channel closed",
					slog.String("queue", queueName),
				)
				return
			}
			t.handleDelivery(ctx, queueName, jobType, delivery, handler)
		}
	}
}

func (t *AMQPTransport) handleDelivery(ctx context.Context, queueName string, jobType domain.JobType, delivery amqp.Delivery, handler Handler) {
	var env Envelope
	if err := json.Unmarshal(delivery.Body, &env); err != nil {
		t.logger.Error("Failed to parse message envelope",
			slog.String("queue", queueName),
			slog.String("error", err.Error()),
		)
		// Malformed messages are unrecoverable; drop without requeue.
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			t.logger.Error("Failed to NACK malformed message",
				slog.String("error", nackErr.Error()),
			)
		}
		return
	}

	if env.JobType != jobType {
		t.logger.Error("Job type does not match queue registration",
			slog.String("queue", queueName),
			slog.String("job_type", string(env.JobType)),
		)
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			t.logger.Error("Failed to NACK mistyped message",
				slog.String("error", nackErr.Error()),
			)
		}
		return
	}

	jobCtx := &JobContext{
		JobID:       env.JobID,
		Type:        env.JobType,
		Data:        env.Payload,
		Attempt:     env.Attempt,
		MaxAttempts: env.MaxAttempts,
		progress:    t.ledger.SetProgress,
	}

	runCtx, cancel := context.WithTimeout(ctx, t.cfg.JobTimeout)
	err := handler(runCtx, jobCtx)
	cancel()

	if err == nil {
		telemetry.JobsProcessed.WithLabelValues(string(jobType), "success").Inc()
		if ackErr := delivery.Ack(false); ackErr != nil {
			t.logger.Error("Failed to ACK message",
				slog.String("job_id", env.JobID),
				slog.String("error", ackErr.Error()),
			)
		}
		return
	}

	t.logger.Error("Job handler failed",
		slog.String("queue", queueName),
		slog.String("job_id", env.JobID),
		slog.Int("attempt", env.Attempt),
		slog.Int("max_attempts", env.MaxAttempts),
		slog.String("error", err.Error()),
	)

	if env.Attempt >= env.MaxAttempts {
		telemetry.JobsProcessed.WithLabelValues(string(jobType), "failed").Inc()
		if markErr := t.ledger.MarkFailed(ctx, env.JobID, err.Error()); markErr != nil {
			t.logger.Error("Failed to mark exhausted job failed",
				slog.String("job_id", env.JobID),
				slog.String("error", markErr.Error()),
			)
		}
		if ackErr := delivery.Ack(false); ackErr != nil {
			t.logger.Error("Failed to ACK exhausted message",
				slog.String("job_id", env.JobID),
				slog.String("error", ackErr.Error()),
			)
		}
		return
	}

	// Republish with backoff through the wait queue, then ACK the original
	// so the attempt header advances instead of a blind broker requeue.
	retry := env
	retry.Attempt++
	backoff := time.Duration(env.Attempt) * t.cfg.RetryBackoff
	if pubErr := t.publish(ctx, queueName, retry, delivery.Priority, backoff); pubErr != nil {
		t.logger.Error("Failed to republish for retry, requeueing delivery",
			slog.String("job_id", env.JobID),
			slog.String("error", pubErr.Error()),
		)
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			t.logger.Error("Failed to NACK message for requeue",
				slog.String("error", nackErr.Error()),
			)
		}
		return
	}

	telemetry.JobsProcessed.WithLabelValues(string(jobType), "retried").Inc()
	if ackErr := delivery.Ack(false); ackErr != nil {
		t.logger.Error("Failed to ACK retried message",
			slog.String("job_id", env.JobID),
			slog.String("error", ackErr.Error()),
		)
	}
}
