package render

import (
	"context"
	"time"
)

// Video render states.
const (
	StatusPending    = "pending"
	StatusGenerating = "generating"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// DefaultFailureMessage is stored when a failure callback carries no
// reason of its own.
const DefaultFailureMessage = "Rendering failed"

// Video is one render request for a product. It enters generating when
// the provider accepts the job and leaves generating only through the
// webhook endpoints; there is no timeout on the generating state.
// Terminal states are not locked: a later callback for the same video
// overwrites the earlier result, last write wins.
type Video struct {
	ID           string    `db:"id" json:"id"`
	ProductID    string    `db:"product_id" json:"product_id"`
	Status       string    `db:"status" json:"status"`
	ExternalRef  string    `db:"external_ref" json:"external_ref,omitempty"`
	ResultURL    string    `db:"result_url" json:"result_url,omitempty"`
	ThumbnailURL string    `db:"thumbnail_url" json:"thumbnail_url,omitempty"`
	ErrorMessage string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ResultUpdate carries the fields a completion callback may set. Empty
// fields are left untouched on the stored row, not blanked; ClearError
// wipes the stored error message on a success overwrite.
type ResultUpdate struct {
	Status       string
	ExternalRef  string
	ResultURL    string
	ThumbnailURL string
	ErrorMessage string
	ClearError   bool
}

// Store persists render requests.
type Store interface {
	Create(ctx context.Context, v *Video) error
	Get(ctx context.Context, videoID string) (*Video, error)

	// ApplyResult merges a callback's fields into the row. Absent fields
	// keep their stored values; present fields overwrite unconditionally.
	ApplyResult(ctx context.Context, videoID string, u ResultUpdate) (*Video, error)
}

// Submitter starts a render with the external provider and returns the
// provider's reference id. Implementations live outside this subsystem.
type Submitter interface {
	Submit(ctx context.Context, v *Video) (string, error)
}
