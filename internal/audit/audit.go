package audit

import (
	"context"
	"time"
)

// Outcomes of an audited inbound call.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// Record is one inbound webhook call, captured verbatim. The raw body is
// stored exactly as received so disputed callbacks can be replayed.
type Record struct {
	ID         string    `db:"id" json:"id"`
	Endpoint   string    `db:"endpoint" json:"endpoint"`
	VideoID    string    `db:"video_id" json:"video_id,omitempty"`
	RawBody    string    `db:"raw_body" json:"raw_body"`
	StatusCode int       `db:"status_code" json:"status_code"`
	Outcome    string    `db:"outcome" json:"outcome"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Cursor marks a position in the newest-first listing.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// ListParams filter and page the audit listing.
type ListParams struct {
	Endpoint string
	PageSize int
	Cursor   *Cursor
}

// DefaultPageSize bounds unpaged listings.
const DefaultPageSize = 50

// Store persists audit records. Append is called off the request path and
// must never influence the webhook response.
type Store interface {
	Append(ctx context.Context, r *Record) error
	Get(ctx context.Context, id string) (*Record, error)

	// List returns records newest first, optionally filtered by endpoint.
	// A non-nil next cursor means more records exist.
	List(ctx context.Context, p ListParams) ([]Record, *Cursor, error)
}
