package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/storeloop/catalog-orchestrator/internal/aiscan"
	"github.com/storeloop/catalog-orchestrator/internal/domain"
	"github.com/storeloop/catalog-orchestrator/internal/ledger"
	"github.com/storeloop/catalog-orchestrator/internal/queue"
	syncpipe "github.com/storeloop/catalog-orchestrator/internal/sync"
)

// Service starts orchestrated pipelines. The parent ledger row is written
// before the message is published, so a caller holding the returned job id
// can always resolve it against the ledger even if the broker is lagging.
type Service struct {
	ledger    ledger.Ledger
	transport queue.Transport
	logger    *slog.Logger
}

func NewService(l ledger.Ledger, t queue.Transport, logger *slog.Logger) *Service {
	return &Service{ledger: l, transport: t, logger: logger}
}

// SyncRequest starts a catalog sync for one connection.
type SyncRequest struct {
	Payload  syncpipe.OrchestratorPayload
	Priority uint8
}

// StartSync creates the parent job and enqueues the sync orchestrator.
func (s *Service) StartSync(ctx context.Context, req SyncRequest) (*domain.Job, error) {
	conn := req.Payload.Connection
	if conn.ConnectionID == "" || conn.Marketplace == "" {
		return nil, domain.ErrInvalidPayload
	}

	job, err := s.ledger.CreateJob(ctx, ledger.CreateJobParams{
		Type: domain.JobTypeSyncOrchestrator,
		Metadata: map[string]any{
			"tenantId":     conn.TenantID,
			"connectionId": conn.ConnectionID,
			"marketplace":  conn.Marketplace,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create sync job: %w", err)
	}

	_, err = s.transport.Enqueue(ctx, queue.QueueSyncOrchestrator, domain.JobTypeSyncOrchestrator, req.Payload, queue.Options{
		JobID:    job.JobID,
		Priority: req.Priority,
	})
	if err != nil {
		if mErr := s.ledger.MarkFailed(ctx, job.JobID, "enqueue failed: "+err.Error()); mErr != nil {
			s.logger.Error("mark unpublished job failed", "job_id", job.JobID, "error", mErr)
		}
		return nil, fmt.Errorf("enqueue sync: %w", err)
	}

	s.logger.Info("sync dispatched", "job_id", job.JobID, "connection_id", conn.ConnectionID, "marketplace", conn.Marketplace)
	return job, nil
}

// ScanRequest starts an AI scan over a set of entities.
type ScanRequest struct {
	Payload  aiscan.ScanPayload
	Priority uint8
}

// StartAIScan creates the parent job and enqueues the scan orchestrator.
func (s *Service) StartAIScan(ctx context.Context, req ScanRequest) (*domain.Job, error) {
	if len(req.Payload.EntityIDs) == 0 {
		return nil, domain.ErrInvalidPayload
	}

	job, err := s.ledger.CreateJob(ctx, ledger.CreateJobParams{
		Type: domain.JobTypeAIScan,
		Metadata: map[string]any{
			"tenantId":    req.Payload.TenantID,
			"entityCount": len(req.Payload.EntityIDs),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create scan job: %w", err)
	}

	_, err = s.transport.Enqueue(ctx, queue.QueueAIScan, domain.JobTypeAIScan, req.Payload, queue.Options{
		JobID:    job.JobID,
		Priority: req.Priority,
	})
	if err != nil {
		if mErr := s.ledger.MarkFailed(ctx, job.JobID, "enqueue failed: "+err.Error()); mErr != nil {
			s.logger.Error("mark unpublished job failed", "job_id", job.JobID, "error", mErr)
		}
		return nil, fmt.Errorf("enqueue scan: %w", err)
	}

	s.logger.Info("ai scan dispatched", "job_id", job.JobID, "entities", len(req.Payload.EntityIDs))
	return job, nil
}
