package dto

import (
	"time"

	"github.com/storeloop/catalog-orchestrator/internal/domain"
)

type SyncFilters struct {
	Category     string     `json:"category"`
	Search       string     `json:"search"`
	UpdatedSince *time.Time `json:"updated_since"`
}

type StartSyncRequest struct {
	TenantID     string      `json:"tenant_id" binding:"required"`
	ConnectionID string      `json:"connection_id" binding:"required"`
	Marketplace  string      `json:"marketplace" binding:"required"`
	Filters      SyncFilters `json:"filters"`
	CreateDrafts bool        `json:"create_drafts"`
	Priority     uint8       `json:"priority"`
}

type StartScanRequest struct {
	TenantID            string   `json:"tenant_id" binding:"required"`
	EntityIDs           []string `json:"entity_ids" binding:"required,min=1"`
	ContextMarketplaces []string `json:"context_marketplaces"`
	Priority            uint8    `json:"priority"`
}

type JobResponse struct {
	JobID       string         `json:"job_id"`
	ParentJobID string         `json:"parent_job_id,omitempty"`
	JobType     string         `json:"job_type"`
	Status      string         `json:"status"`
	Progress    int            `json:"progress"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Error       string         `json:"error_message,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type JobDetailResponse struct {
	JobResponse
	Children []JobResponse `json:"children,omitempty"`
}

func FromJob(j *domain.Job) JobResponse {
	resp := JobResponse{
		JobID:     j.JobID,
		JobType:   string(j.Type),
		Status:    string(j.Status),
		Progress:  j.Progress,
		Metadata:  j.Metadata,
		Error:     j.Error,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if j.ParentJobID != nil {
		resp.ParentJobID = *j.ParentJobID
	}
	return resp
}

type CreateVideoRequest struct {
	ProductID string `json:"product_id" binding:"required"`
}

// Provider callback bodies. Only the id is required; absent optional
// fields leave the stored values untouched.
type VideoSuccessRequest struct {
	ID           string `json:"id" binding:"required"`
	ResultURL    string `json:"resultUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
	ExternalRef  string `json:"externalRef"`
}

type VideoFailureRequest struct {
	ID    string `json:"id" binding:"required"`
	Error string `json:"error"`
}

type ListAuditRequest struct {
	Endpoint string `form:"endpoint"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type AuditRecordDTO struct {
	ID         string    `json:"id"`
	Endpoint   string    `json:"endpoint"`
	VideoID    string    `json:"video_id,omitempty"`
	RawBody    string    `json:"raw_body"`
	StatusCode int       `json:"status_code"`
	Outcome    string    `json:"outcome"`
	CreatedAt  time.Time `json:"created_at"`
}

type ListAuditResponse struct {
	Records    []AuditRecordDTO `json:"records"`
	NextCursor string           `json:"next_cursor,omitempty"`
}
