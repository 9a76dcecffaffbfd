package products

import (
	"context"
	"time"
)

// Product lifecycle states. A draft placeholder is created during
// enumeration so consumers can observe partial progress; the batch worker
// transitions it in place when the full detail arrives.
const (
	StatusDraft  = "draft"
	StatusActive = "active"
)

// Product is the local entity mirroring one marketplace item, keyed by
// (tenant, connection, external id).
type Product struct {
	ID           string    `db:"id" json:"id"`
	TenantID     string    `db:"tenant_id" json:"tenant_id"`
	ConnectionID string    `db:"connection_id" json:"connection_id"`
	ExternalID   string    `db:"external_id" json:"external_id"`
	Title        string    `db:"title" json:"title"`
	Description  string    `db:"description" json:"description"`
	Category     string    `db:"category" json:"category"`
	Price        float64   `db:"price" json:"price"`
	ImageURL     string    `db:"image_url" json:"image_url"`
	Status       string    `db:"status" json:"status"`
	RenderStatus string    `db:"render_status" json:"render_status,omitempty"`
	RenderURL    string    `db:"render_url" json:"render_url,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Item history outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// HistoryEntry is one audit row for a processed item, referencing the
// batch and parent job that touched it.
type HistoryEntry struct {
	ID          string    `db:"id" json:"id"`
	ParentJobID string    `db:"parent_job_id" json:"parent_job_id"`
	BatchNumber int       `db:"batch_number" json:"batch_number"`
	EntityID    string    `db:"entity_id" json:"entity_id"`
	Outcome     string    `db:"outcome" json:"outcome"`
	Reason      string    `db:"reason" json:"reason,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Store persists products, per-item history, and connection bookkeeping.
type Store interface {
	// Upsert writes the product keyed by (tenant, connection, external
	// id). An existing draft placeholder for the key is transitioned in
	// place rather than re-inserted.
	Upsert(ctx context.Context, p *Product) error

	// CreateDraft inserts a draft placeholder when none exists yet.
	CreateDraft(ctx context.Context, tenantID, connectionID, externalID string) error

	Get(ctx context.Context, productID string) (*Product, error)

	RecordItemHistory(ctx context.Context, e HistoryEntry) error

	// TouchLastSynced stamps the connection's last successful sync.
	// Called exactly once per completed parent.
	TouchLastSynced(ctx context.Context, connectionID string, at time.Time) error

	// UpdateRenderStatus maintains the denormalized render view embedded
	// in the product record for read efficiency.
	UpdateRenderStatus(ctx context.Context, productID, status, renderURL string) error
}
