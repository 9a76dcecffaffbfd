package aiscan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/storeloop/catalog-orchestrator/internal/domain"
	"github.com/storeloop/catalog-orchestrator/internal/ledger"
	"github.com/storeloop/catalog-orchestrator/internal/queue"
	"github.com/storeloop/catalog-orchestrator/internal/ratelimit"
)

// Orchestrator fans an AI scan out into delayed batches. Entities that
// exhausted their cooldown are excluded up front and reported on the
// parent's metadata so the exclusion is visible to status readers.
type Orchestrator struct {
	ledger    ledger.Ledger
	transport queue.Transport
	gate      *ratelimit.Gate
	cfg       Config
	logger    *slog.Logger
}

func NewOrchestrator(l ledger.Ledger, t queue.Transport, gate *ratelimit.Gate, cfg Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{ledger: l, transport: t, gate: gate, cfg: cfg, logger: logger}
}

// Handle runs one AI_SCAN delivery.
func (o *Orchestrator) Handle(ctx context.Context, job *queue.JobContext) error {
	var p ScanPayload
	if err := job.Bind(&p); err != nil {
		return err
	}

	log := o.logger.With("job_id", job.JobID, "tenant_id", p.TenantID)

	eligible, blocked, err := o.gate.Eligible(ctx, ratelimit.CategoryAIScan, p.EntityIDs)
	if err != nil {
		return fmt.Errorf("cooldown check: %w", err)
	}

	batches := partition(eligible, o.cfg.batchSize())

	meta := map[string]any{
		domain.MetaTotalItems:     len(eligible),
		domain.MetaTotalBatches:   len(batches),
		domain.MetaProcessedItems: 0,
		domain.MetaFailedItems:    0,
	}
	if len(blocked) > 0 {
		meta[domain.MetaBlockedEntities] = blocked
	}
	if err = o.ledger.UpdateMetadata(ctx, job.JobID, meta); err != nil {
		return fmt.Errorf("write scan metadata: %w", err)
	}

	if len(batches) == 0 {
		if err = o.ledger.SetProgress(ctx, job.JobID, 100); err != nil {
			log.Warn("final progress write failed", "error", err)
		}
		if err = o.ledger.MarkCompleted(ctx, job.JobID); err != nil {
			return fmt.Errorf("complete empty scan: %w", err)
		}
		log.Info("no eligible entities, scan completed", "blocked", len(blocked))
		return nil
	}

	if err = o.ledger.SetStatus(ctx, job.JobID, domain.JobStatusProcessingBatches); err != nil {
		return fmt.Errorf("enter fan-out: %w", err)
	}

	for i, batch := range batches {
		payload := BatchPayload{
			ParentJobID:         job.JobID,
			BatchNumber:         i + 1,
			TotalBatches:        len(batches),
			TenantID:            p.TenantID,
			EntityIDs:           batch,
			ContextMarketplaces: p.ContextMarketplaces,
		}

		child, cErr := o.ledger.CreateJob(ctx, ledger.CreateJobParams{
			ParentJobID: &job.JobID,
			Type:        domain.JobTypeAIBatch,
			Metadata: map[string]any{
				"batchNumber": i + 1,
				"batchSize":   len(batch),
			},
		})
		if cErr != nil {
			return fmt.Errorf("create batch %d: %w", i+1, cErr)
		}

		// Later batches are held back so consecutive batches do not hit
		// the generation backend at the same time.
		delay := time.Duration(i) * o.cfg.batchDelay()
		_, eErr := o.transport.Enqueue(ctx, queue.QueueAIBatch, domain.JobTypeAIBatch, payload, queue.Options{
			JobID: child.JobID,
			Delay: delay,
		})
		if eErr != nil {
			return fmt.Errorf("enqueue batch %d: %w", i+1, eErr)
		}
	}

	log.Info("scan fan-out complete", "batches", len(batches), "eligible", len(eligible), "blocked", len(blocked))
	return nil
}
