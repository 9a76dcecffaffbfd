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
	"github.com/storeloop/catalog-orchestrator/internal/telemetry"
)

// BatchWorker processes one partition of external ids. Item failures are
// isolated: a failing item is recorded and counted, never aborts the
// batch. The worker marks its own ledger row terminal and is responsible
// for rechecking parent completion afterwards.
type BatchWorker struct {
	ledger  ledger.Ledger
	sources *catalog.Registry
	store   products.Store
	logger  *slog.Logger
}

func NewBatchWorker(l ledger.Ledger, sources *catalog.Registry, store products.Store, logger *slog.Logger) *BatchWorker {
	return &BatchWorker{ledger: l, sources: sources, store: store, logger: logger}
}

// Handle runs one SYNC_BATCH delivery.
func (w *BatchWorker) Handle(ctx context.Context, job *queue.JobContext) error {
	var p BatchPayload
	if err := job.Bind(&p); err != nil {
		return err
	}

	log := w.logger.With("job_id", job.JobID, "parent_job_id", p.ParentJobID, "batch", p.BatchNumber)

	if err := w.run(ctx, job, &p, log); err != nil {
		if job.FinalAttempt() {
			// Terminal bookkeeping on the last try: without it a stuck
			// batch would leave the parent in processing_batches forever.
			if mErr := w.ledger.MarkFailed(ctx, job.JobID, err.Error()); mErr != nil {
				log.Error("mark batch failed", "error", mErr)
			}
			w.finishParent(ctx, &p, log)
		}
		return err
	}
	return nil
}

func (w *BatchWorker) run(ctx context.Context, job *queue.JobContext, p *BatchPayload, log *slog.Logger) error {
	src, err := w.sources.Lookup(p.Connection.Marketplace)
	if err != nil {
		return err
	}

	parent, err := w.ledger.GetJob(ctx, p.ParentJobID)
	if err != nil {
		return fmt.Errorf("load parent: %w", err)
	}
	totalItems := parent.MetaInt(domain.MetaTotalItems)

	if err = w.ledger.SetStatus(ctx, job.JobID, domain.JobStatusProcessingBatches); err != nil {
		return fmt.Errorf("start batch: %w", err)
	}

	var succeeded, failed, skipped int
	for i, externalID := range p.ExternalIDs {
		outcome, reason := w.processItem(ctx, src, p, externalID)
		switch outcome {
		case products.OutcomeSuccess:
			succeeded++
		case products.OutcomeSkipped:
			skipped++
		case products.OutcomeFailed:
			failed++
			log.Warn("item failed", "external_id", externalID, "reason", reason)
		}
		telemetry.ItemsProcessed.WithLabelValues(outcome).Inc()

		hErr := w.store.RecordItemHistory(ctx, products.HistoryEntry{
			ParentJobID: p.ParentJobID,
			BatchNumber: p.BatchNumber,
			EntityID:    externalID,
			Outcome:     outcome,
			Reason:      reason,
		})
		if hErr != nil {
			log.Warn("item history write failed", "external_id", externalID, "error", hErr)
		}

		w.advanceParent(ctx, p.ParentJobID, outcome, totalItems, log)

		if pct, ok := domain.ProgressPercent(int64(i+1), int64(len(p.ExternalIDs))); ok {
			job.ReportProgress(ctx, pct)
		}
	}

	if err = w.ledger.MarkCompleted(ctx, job.JobID); err != nil {
		return fmt.Errorf("complete batch: %w", err)
	}
	log.Info("batch finished", "succeeded", succeeded, "skipped", skipped, "failed", failed)

	w.finishParent(ctx, p, log)
	return nil
}

// processItem fetches one detail and upserts the local product. A nil
// detail with nil error means the source has nothing syncable for the id.
func (w *BatchWorker) processItem(ctx context.Context, src catalog.Source, p *BatchPayload, externalID string) (outcome, reason string) {
	item, err := src.FetchDetail(ctx, p.Connection, externalID)
	if err != nil {
		return products.OutcomeFailed, err.Error()
	}
	if item == nil {
		return products.OutcomeSkipped, "no detail available"
	}

	err = w.store.Upsert(ctx, &products.Product{
		TenantID:     p.Connection.TenantID,
		ConnectionID: p.Connection.ConnectionID,
		ExternalID:   externalID,
		Title:        item.Title,
		Description:  item.Description,
		Category:     item.Category,
		Price:        item.Price,
		ImageURL:     item.ImageURL,
		Status:       products.StatusActive,
	})
	if err != nil {
		return products.OutcomeFailed, err.Error()
	}
	return products.OutcomeSuccess, ""
}

// advanceParent bumps the shared counters and recomputes parent progress.
// Counters go through the ledger's atomic increment; reading a snapshot
// and writing it back would lose sibling updates.
func (w *BatchWorker) advanceParent(ctx context.Context, parentJobID, outcome string, totalItems int64, log *slog.Logger) {
	field := domain.MetaProcessedItems
	if outcome == products.OutcomeFailed {
		field = domain.MetaFailedItems
	}
	if _, err := w.ledger.IncrementCounter(ctx, parentJobID, field, 1); err != nil {
		log.Warn("parent counter update failed", "field", field, "error", err)
		return
	}

	parent, err := w.ledger.GetJob(ctx, parentJobID)
	if err != nil {
		return
	}
	handled := parent.MetaInt(domain.MetaProcessedItems) + parent.MetaInt(domain.MetaFailedItems)
	if pct, ok := domain.ProgressPercent(handled, totalItems); ok {
		if sErr := w.ledger.SetProgress(ctx, parentJobID, pct); sErr != nil {
			log.Warn("parent progress update failed", "error", sErr)
		}
	}
}

// finishParent flips the parent to completed when this batch was the last
// sibling to reach a terminal state. Exactly one batch observes the flip
// and stamps the connection's last sync time.
func (w *BatchWorker) finishParent(ctx context.Context, p *BatchPayload, log *slog.Logger) {
	flipped, err := ledger.CompleteParentIfDone(ctx, w.ledger, p.ParentJobID)
	if err != nil {
		log.Error("parent completion check failed", "error", err)
		return
	}
	if !flipped {
		return
	}

	if err = w.ledger.SetProgress(ctx, p.ParentJobID, 100); err != nil {
		log.Warn("final parent progress write failed", "error", err)
	}
	if err = w.store.TouchLastSynced(ctx, p.Connection.ConnectionID, time.Now().UTC()); err != nil {
		log.Warn("touch last synced failed", "connection_id", p.Connection.ConnectionID, "error", err)
	}
	log.Info("sync completed", "parent_job_id", p.ParentJobID)
}
