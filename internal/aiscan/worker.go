package aiscan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/storeloop/catalog-orchestrator/internal/ai"
	"github.com/storeloop/catalog-orchestrator/internal/domain"
	"github.com/storeloop/catalog-orchestrator/internal/ledger"
	"github.com/storeloop/catalog-orchestrator/internal/products"
	"github.com/storeloop/catalog-orchestrator/internal/queue"
	"github.com/storeloop/catalog-orchestrator/internal/ratelimit"
	"github.com/storeloop/catalog-orchestrator/internal/telemetry"
)

// Worker runs one AI batch strictly sequentially: one generation call in
// flight at a time, with a pause between items. Concurrency for this queue
// must stay at 1; parallel workers would defeat the pacing.
type Worker struct {
	ledger    ledger.Ledger
	gate      *ratelimit.Gate
	generator ai.TextGenerator
	artifacts ai.SuggestionStore
	store     products.Store
	cfg       Config
	logger    *slog.Logger
}

func NewWorker(l ledger.Ledger, gate *ratelimit.Gate, gen ai.TextGenerator, artifacts ai.SuggestionStore, store products.Store, cfg Config, logger *slog.Logger) *Worker {
	return &Worker{
		ledger:    l,
		gate:      gate,
		generator: gen,
		artifacts: artifacts,
		store:     store,
		cfg:       cfg,
		logger:    logger,
	}
}

// Handle runs one AI_BATCH delivery.
func (w *Worker) Handle(ctx context.Context, job *queue.JobContext) error {
	var p BatchPayload
	if err := job.Bind(&p); err != nil {
		return err
	}

	log := w.logger.With("job_id", job.JobID, "parent_job_id", p.ParentJobID, "batch", p.BatchNumber)

	if err := w.run(ctx, job, &p, log); err != nil {
		if job.FinalAttempt() {
			if mErr := w.ledger.MarkFailed(ctx, job.JobID, err.Error()); mErr != nil {
				log.Error("mark batch failed", "error", mErr)
			}
			w.finishParent(ctx, p.ParentJobID, log)
		}
		return err
	}
	return nil
}

func (w *Worker) run(ctx context.Context, job *queue.JobContext, p *BatchPayload, log *slog.Logger) error {
	parent, err := w.ledger.GetJob(ctx, p.ParentJobID)
	if err != nil {
		return fmt.Errorf("load parent: %w", err)
	}
	totalItems := parent.MetaInt(domain.MetaTotalItems)

	if err = w.ledger.SetStatus(ctx, job.JobID, domain.JobStatusProcessingBatches); err != nil {
		return fmt.Errorf("start batch: %w", err)
	}

	for i, entityID := range p.EntityIDs {
		if i > 0 {
			if sErr := sleep(ctx, w.cfg.itemDelay()); sErr != nil {
				return sErr
			}
		}

		outcome, reason := w.processEntity(ctx, p, entityID)
		if outcome == products.OutcomeFailed {
			log.Warn("entity scan failed", "entity_id", entityID, "reason", reason)
		}
		telemetry.ItemsProcessed.WithLabelValues(outcome).Inc()

		hErr := w.store.RecordItemHistory(ctx, products.HistoryEntry{
			ParentJobID: p.ParentJobID,
			BatchNumber: p.BatchNumber,
			EntityID:    entityID,
			Outcome:     outcome,
			Reason:      reason,
		})
		if hErr != nil {
			log.Warn("item history write failed", "entity_id", entityID, "error", hErr)
		}

		w.advanceParent(ctx, p.ParentJobID, outcome, totalItems, log)

		if pct, ok := domain.ProgressPercent(int64(i+1), int64(len(p.EntityIDs))); ok {
			job.ReportProgress(ctx, pct)
		}
	}

	if err = w.ledger.MarkCompleted(ctx, job.JobID); err != nil {
		return fmt.Errorf("complete batch: %w", err)
	}

	w.finishParent(ctx, p.ParentJobID, log)
	return nil
}

// processEntity generates and stores both artifact types for one entity.
// The cooldown is re-checked immediately before the first generation call:
// a concurrent batch may have consumed the entity's remaining allowance
// since the orchestrator's pre-filter.
func (w *Worker) processEntity(ctx context.Context, p *BatchPayload, entityID string) (outcome, reason string) {
	allowed, count, err := w.gate.Allow(ctx, ratelimit.CategoryAIScan, entityID)
	if err != nil {
		return products.OutcomeFailed, err.Error()
	}
	if !allowed {
		return products.OutcomeSkipped, fmt.Sprintf("cooldown reached (%d scans in window)", count)
	}

	// Every attempt consumes allowance, including ones that go on to fail.
	if err = w.gate.Record(ctx, ratelimit.CategoryAIScan, entityID); err != nil {
		return products.OutcomeFailed, err.Error()
	}

	entity, err := w.store.Get(ctx, entityID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return products.OutcomeSkipped, "entity no longer exists"
		}
		return products.OutcomeFailed, err.Error()
	}

	suggestions, err := w.generator.GenerateSuggestions(ctx, entity, p.ContextMarketplaces)
	if err != nil {
		return products.OutcomeFailed, err.Error()
	}
	if err = w.artifacts.SaveSuggestions(ctx, entityID, suggestions); err != nil {
		return products.OutcomeFailed, err.Error()
	}

	content, err := w.generator.GenerateContent(ctx, entity)
	if err != nil {
		return products.OutcomeFailed, err.Error()
	}
	if content != nil {
		content.EntityID = entityID
		if err = w.artifacts.ReplaceContent(ctx, content); err != nil {
			return products.OutcomeFailed, err.Error()
		}
	}

	return products.OutcomeSuccess, ""
}

func (w *Worker) advanceParent(ctx context.Context, parentJobID, outcome string, totalItems int64, log *slog.Logger) {
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

func (w *Worker) finishParent(ctx context.Context, parentJobID string, log *slog.Logger) {
	flipped, err := ledger.CompleteParentIfDone(ctx, w.ledger, parentJobID)
	if err != nil {
		log.Error("parent completion check failed", "error", err)
		return
	}
	if flipped {
		if err = w.ledger.SetProgress(ctx, parentJobID, 100); err != nil {
			log.Warn("final parent progress write failed", "error", err)
		}
		log.Info("scan completed", "parent_job_id", parentJobID)
	}
}
