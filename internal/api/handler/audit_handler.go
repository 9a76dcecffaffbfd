package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/storeloop/catalog-orchestrator/internal/api/dto"
	"github.com/storeloop/catalog-orchestrator/internal/audit"
	"github.com/storeloop/catalog-orchestrator/internal/domain"
)

// AuditHandler serves the webhook audit log
type AuditHandler struct {
	logger *slog.Logger
	store  audit.Store
}

// NewAuditHandler creates a new AuditHandler instance
func NewAuditHandler(deps *Dependencies) *AuditHandler {
	return &AuditHandler{
		logger: deps.Logger,
		store:  deps.AuditStore,
	}
}

// ListAudit handles GET /api/v1/webhook-audit
func (h *AuditHandler) ListAudit(c *gin.Context) {
	var req dto.ListAuditRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	cursor, err := DecodeAuditCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	records, next, err := h.store.List(c.Request.Context(), audit.ListParams{
		Endpoint: req.Endpoint,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list audit records", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list audit records",
		})
		return
	}

	resp := dto.ListAuditResponse{Records: make([]dto.AuditRecordDTO, 0, len(records))}
	for _, r := range records {
		resp.Records = append(resp.Records, auditDTO(r))
	}
	if next != nil {
		resp.NextCursor = EncodeAuditCursor(next)
	}

	c.JSON(http.StatusOK, resp)
}

// GetAudit handles GET /api/v1/webhook-audit/:id
func (h *AuditHandler) GetAudit(c *gin.Context) {
	id := c.Param("id")

	r, err := h.store.Get(c.Request.Context(), id)
	if errors.Is(err, domain.ErrAuditRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Audit record not found",
		})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get audit record", slog.String("id", id), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get audit record",
		})
		return
	}

	c.JSON(http.StatusOK, auditDTO(*r))
}

func auditDTO(r audit.Record) dto.AuditRecordDTO {
	return dto.AuditRecordDTO{
		ID:         r.ID,
		Endpoint:   r.Endpoint,
		VideoID:    r.VideoID,
		RawBody:    r.RawBody,
		StatusCode: r.StatusCode,
		Outcome:    r.Outcome,
		CreatedAt:  r.CreatedAt,
	}
}
