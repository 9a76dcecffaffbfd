package handler

import (
	"context"
	"log/slog"

	"github.com/storeloop/catalog-orchestrator/internal/audit"
	"github.com/storeloop/catalog-orchestrator/internal/dispatch"
	"github.com/storeloop/catalog-orchestrator/internal/ledger"
	"github.com/storeloop/catalog-orchestrator/internal/render"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger     *slog.Logger
	Ledger     ledger.Ledger
	Dispatch   *dispatch.Service
	Render     *render.Service
	AuditStore audit.Store
	Recorder   *audit.Recorder

	// HealthCheck probes backing services for the health endpoint.
	// Optional; nil means the process itself is the only check.
	HealthCheck func(ctx context.Context) error
}
