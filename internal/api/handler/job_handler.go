package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/storeloop/catalog-orchestrator/internal/aiscan"
	"github.com/storeloop/catalog-orchestrator/internal/api/dto"
	"github.com/storeloop/catalog-orchestrator/internal/catalog"
	"github.com/storeloop/catalog-orchestrator/internal/dispatch"
	"github.com/storeloop/catalog-orchestrator/internal/domain"
	"github.com/storeloop/catalog-orchestrator/internal/ledger"
	syncpipe "github.com/storeloop/catalog-orchestrator/internal/sync"
)

// JobHandler handles pipeline dispatch and job status requests
type JobHandler struct {
	logger   *slog.Logger
	ledger   ledger.Ledger
	dispatch *dispatch.Service
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:   deps.Logger,
		ledger:   deps.Ledger,
		dispatch: deps.Dispatch,
	}
}

// StartSync handles POST /api/v1/syncs
func (h *JobHandler) StartSync(c *gin.Context) {
	var req dto.StartSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.dispatch.StartSync(c.Request.Context(), dispatch.SyncRequest{
		Payload: syncpipe.OrchestratorPayload{
			Connection: catalog.ConnectionRef{
				TenantID:     req.TenantID,
				ConnectionID: req.ConnectionID,
				Marketplace:  req.Marketplace,
			},
			Filters: catalog.Filters{
				Category:     req.Filters.Category,
				Search:       req.Filters.Search,
				UpdatedSince: req.Filters.UpdatedSince,
			},
			CreateDrafts: req.CreateDrafts,
		},
		Priority: req.Priority,
	})
	if err != nil {
		h.logger.Error("Failed to start sync", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to start sync",
		})
		return
	}

	c.JSON(http.StatusAccepted, dto.FromJob(job))
}

// StartAIScan handles POST /api/v1/ai-scans
func (h *JobHandler) StartAIScan(c *gin.Context) {
	var req dto.StartScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.dispatch.StartAIScan(c.Request.Context(), dispatch.ScanRequest{
		Payload: aiscan.ScanPayload{
			TenantID:            req.TenantID,
			EntityIDs:           req.EntityIDs,
			ContextMarketplaces: req.ContextMarketplaces,
		},
		Priority: req.Priority,
	})
	if err != nil {
		h.logger.Error("Failed to start ai scan", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to start ai scan",
		})
		return
	}

	c.JSON(http.StatusAccepted, dto.FromJob(job))
}

// GetJob handles GET /api/v1/jobs/:job_id
// Returns the job with its children so fan-out progress is visible in one
// read.
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.ledger.GetJob(c.Request.Context(), jobID)
	if errors.Is(err, domain.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get job", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	resp := dto.JobDetailResponse{JobResponse: dto.FromJob(job)}

	if job.ParentJobID == nil {
		children, cErr := h.ledger.FindChildren(c.Request.Context(), jobID)
		if cErr != nil {
			h.logger.Error("Failed to load children", slog.String("job_id", jobID), slog.String("error", cErr.Error()))
		} else {
			for i := range children {
				resp.Children = append(resp.Children, dto.FromJob(&children[i]))
			}
		}
	}

	c.JSON(http.StatusOK, resp)
}
