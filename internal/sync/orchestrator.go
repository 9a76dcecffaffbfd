package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/storeloop/catalog-orchestrator/internal/catalog"
	"github.com/storeloop/catalog-orchestrator/internal/domain"
	"github.com/storeloop/catalog-orchestrator/internal/ledger"
	"github.com/storeloop/catalog-orchestrator/internal/products"
	"github.com/storeloop/catalog-orchestrator/internal/queue"
)

// Orchestrator executes the fan-out half of a catalog sync: enumerate the
// source, partition the ids, and hand each partition to a batch worker.
// The orchestrator's own ledger row doubles as the parent of all batches.
type Orchestrator struct {
	ledger    ledger.Ledger
	transport queue.Transport
	sources   *catalog.Registry
	store     products.Store
	cfg       Config
	logger    *slog.Logger
}

func NewOrchestrator(l ledger.Ledger, t queue.Transport, sources *catalog.Registry, store products.Store, cfg Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		ledger:    l,
		transport: t,
		sources:   sources,
		store:     store,
		cfg:       cfg,
		logger:    logger,
	}
}

// Handle runs one SYNC_ORCHESTRATOR delivery.
func (o *Orchestrator) Handle(ctx context.Context, job *queue.JobContext) error {
	var p OrchestratorPayload
	if err := job.Bind(&p); err != nil {
		return err
	}

	log := o.logger.With("job_id", job.JobID, "connection_id", p.Connection.ConnectionID, "marketplace", p.Connection.Marketplace)

	src, err := o.sources.Lookup(p.Connection.Marketplace)
	if err != nil {
		return err
	}

	scanMeta := map[string]any{domain.MetaPhase: domain.PhaseScanning}
	if total, ok, estErr := src.EstimateTotal(ctx, p.Connection, p.Filters); estErr != nil {
		log.Warn("estimate failed, continuing without estimate", "error", estErr)
	} else if ok {
		scanMeta[domain.MetaEstimatedTotal] = total
	}
	if err = o.ledger.UpdateMetadata(ctx, job.JobID, scanMeta); err != nil {
		return fmt.Errorf("write scan metadata: %w", err)
	}

	ids, err := o.enumerate(ctx, job, src, p)
	if err != nil {
		return fmt.Errorf("enumerate %s: %w", p.Connection.Marketplace, err)
	}
	log.Info("enumeration finished", "total_items", len(ids))

	batches := partition(ids, o.cfg.batchSize())

	// The phase flip resets progress: scanning percent and syncing percent
	// measure different denominators.
	err = o.ledger.UpdateMetadata(ctx, job.JobID, map[string]any{
		domain.MetaPhase:          domain.PhaseSyncing,
		domain.MetaTotalItems:     len(ids),
		domain.MetaTotalBatches:   len(batches),
		domain.MetaProcessedItems: 0,
		domain.MetaFailedItems:    0,
	})
	if err != nil {
		return fmt.Errorf("write fan-out metadata: %w", err)
	}
	if err = o.ledger.SetProgress(ctx, job.JobID, 0); err != nil {
		return fmt.Errorf("reset progress: %w", err)
	}

	if len(batches) == 0 {
		if err = o.ledger.MarkCompleted(ctx, job.JobID); err != nil {
			return fmt.Errorf("complete empty sync: %w", err)
		}
		if err = o.store.TouchLastSynced(ctx, p.Connection.ConnectionID, time.Now().UTC()); err != nil {
			log.Warn("touch last synced failed", "error", err)
		}
		log.Info("nothing to sync, parent completed")
		return nil
	}

	if err = o.ledger.SetStatus(ctx, job.JobID, domain.JobStatusProcessingBatches); err != nil {
		return fmt.Errorf("enter fan-out: %w", err)
	}

	for i, batch := range batches {
		payload := BatchPayload{
			ParentJobID:  job.JobID,
			BatchNumber:  i + 1,
			TotalBatches: len(batches),
			Connection:   p.Connection,
			ExternalIDs:  batch,
			CreateDrafts: p.CreateDrafts,
		}

		// The child row is written before its message so a worker picking
		// the message up always finds the row.
		child, cErr := o.ledger.CreateJob(ctx, ledger.CreateJobParams{
			ParentJobID: &job.JobID,
			Type:        domain.JobTypeSyncBatch,
			Metadata: map[string]any{
				"batchNumber": i + 1,
				"batchSize":   len(batch),
			},
		})
		if cErr != nil {
			return fmt.Errorf("create batch %d: %w", i+1, cErr)
		}

		_, eErr := o.transport.Enqueue(ctx, queue.QueueSyncBatch, domain.JobTypeSyncBatch, payload, queue.Options{JobID: child.JobID})
		if eErr != nil {
			return fmt.Errorf("enqueue batch %d: %w", i+1, eErr)
		}
	}

	log.Info("fan-out complete", "batches", len(batches))
	return nil
}

// enumerate walks the source page by page, optionally creating draft
// placeholders as ids arrive.
func (o *Orchestrator) enumerate(ctx context.Context, job *queue.JobContext, src catalog.Source, p OrchestratorPayload) ([]string, error) {
	var ids []string
	for pageNum := 0; ; pageNum++ {
		page, err := src.ListIDs(ctx, p.Connection, p.Filters, pageNum)
		if err != nil {
			return nil, fmt.Errorf("list page %d: %w", pageNum, err)
		}
		for _, id := range page.IDs {
			if p.CreateDrafts {
				if dErr := o.store.CreateDraft(ctx, p.Connection.TenantID, p.Connection.ConnectionID, id); dErr != nil {
					o.logger.Warn("draft create failed", "job_id", job.JobID, "external_id", id, "error", dErr)
				}
			}
			ids = append(ids, id)
		}
		if !page.HasMore {
			return ids, nil
		}
	}
}
