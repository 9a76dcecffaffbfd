package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/storeloop/catalog-orchestrator/internal/api/dto"
	"github.com/storeloop/catalog-orchestrator/internal/audit"
	"github.com/storeloop/catalog-orchestrator/internal/domain"
	"github.com/storeloop/catalog-orchestrator/internal/render"
	"github.com/storeloop/catalog-orchestrator/internal/telemetry"
)

// Webhook endpoint names as recorded in the audit log.
const (
	EndpointVideoSuccess = "/internal/videos/success"
	EndpointVideoFailure = "/internal/videos/failure"
)

// VideoHandler handles render requests and provider callbacks
type VideoHandler struct {
	logger   *slog.Logger
	render   *render.Service
	recorder *audit.Recorder
}

// NewVideoHandler creates a new VideoHandler instance
func NewVideoHandler(deps *Dependencies) *VideoHandler {
	return &VideoHandler{
		logger:   deps.Logger,
		render:   deps.Render,
		recorder: deps.Recorder,
	}
}

// CreateVideo handles POST /api/v1/videos
func (h *VideoHandler) CreateVideo(c *gin.Context) {
	var req dto.CreateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	v, err := h.render.RequestRender(c.Request.Context(), req.ProductID)
	if errors.Is(err, domain.ErrProductNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Product not found",
		})
		return
	}
	if err != nil {
		h.logger.Error("Failed to request render", slog.String("product_id", req.ProductID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to request render",
		})
		return
	}

	c.JSON(http.StatusCreated, v)
}

// VideoSuccess handles POST /internal/videos/success
//
// The raw body is captured before binding so malformed callbacks are
// auditable verbatim. The audit write happens off the request path and
// never changes the response.
func (h *VideoHandler) VideoSuccess(c *gin.Context) {
	rawBody, _ := c.GetRawData()

	var req dto.VideoSuccessRequest
	if err := json.Unmarshal(rawBody, &req); err != nil || req.ID == "" {
		h.respondWebhook(c, EndpointVideoSuccess, rawBody, req.ID, http.StatusBadRequest, "Invalid callback payload", nil)
		return
	}

	v, err := h.render.HandleSuccess(c.Request.Context(), req.ID, render.ResultUpdate{
		ResultURL:    req.ResultURL,
		ThumbnailURL: req.ThumbnailURL,
		ExternalRef:  req.ExternalRef,
	})
	if errors.Is(err, domain.ErrVideoNotFound) {
		h.respondWebhook(c, EndpointVideoSuccess, rawBody, req.ID, http.StatusNotFound, "Video not found", nil)
		return
	}
	if err != nil {
		h.logger.Error("Failed to apply success callback", slog.String("video_id", req.ID), slog.String("error", err.Error()))
		h.respondWebhook(c, EndpointVideoSuccess, rawBody, req.ID, http.StatusInternalServerError, "Failed to apply callback", nil)
		return
	}

	h.respondWebhook(c, EndpointVideoSuccess, rawBody, req.ID, http.StatusOK, "", v)
}

// VideoFailure handles POST /internal/videos/failure
func (h *VideoHandler) VideoFailure(c *gin.Context) {
	rawBody, _ := c.GetRawData()

	var req dto.VideoFailureRequest
	if err := json.Unmarshal(rawBody, &req); err != nil || req.ID == "" {
		h.respondWebhook(c, EndpointVideoFailure, rawBody, req.ID, http.StatusBadRequest, "Invalid callback payload", nil)
		return
	}

	v, err := h.render.HandleFailure(c.Request.Context(), req.ID, req.Error)
	if errors.Is(err, domain.ErrVideoNotFound) {
		h.respondWebhook(c, EndpointVideoFailure, rawBody, req.ID, http.StatusNotFound, "Video not found", nil)
		return
	}
	if err != nil {
		h.logger.Error("Failed to apply failure callback", slog.String("video_id", req.ID), slog.String("error", err.Error()))
		h.respondWebhook(c, EndpointVideoFailure, rawBody, req.ID, http.StatusInternalServerError, "Failed to apply callback", nil)
		return
	}

	h.respondWebhook(c, EndpointVideoFailure, rawBody, req.ID, http.StatusOK, "", v)
}

// respondWebhook writes the callback response envelope and schedules the
// audit append.
func (h *VideoHandler) respondWebhook(c *gin.Context, endpoint string, rawBody []byte, videoID string, status int, message string, data any) {
	outcome := audit.OutcomeAccepted
	if status >= http.StatusBadRequest {
		outcome = audit.OutcomeRejected
	}
	telemetry.WebhookCalls.WithLabelValues(endpoint, outcome).Inc()

	h.recorder.Record(audit.Record{
		Endpoint:   endpoint,
		VideoID:    videoID,
		RawBody:    string(rawBody),
		StatusCode: status,
		Outcome:    outcome,
	})

	if status >= http.StatusBadRequest {
		c.JSON(status, gin.H{
			"success": false,
			"message": message,
		})
		return
	}
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}
