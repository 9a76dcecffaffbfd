package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/storeloop/catalog-orchestrator/internal/domain"
)

// Store is the Postgres-backed job ledger.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a Postgres ledger over an existing connection pool.
func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

type jobRow struct {
	JobID       string         `db:"job_id"`
	ParentJobID sql.NullString `db:"parent_job_id"`
	JobType     string         `db:"job_type"`
	Status      string         `db:"status"`
	Progress    int            `db:"progress"`
	Metadata    []byte         `db:"metadata"`
	Error       sql.NullString `db:"error_message"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r jobRow) toDomain() (*domain.Job, error) {
	job := &domain.Job{
		JobID:     r.JobID,
		Type:      domain.JobType(r.JobType),
		Status:    domain.JobStatus(r.Status),
		Progress:  r.Progress,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.ParentJobID.Valid {
		job.ParentJobID = &r.ParentJobID.String
	}
	if r.Error.Valid {
		job.Error = r.Error.String
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &job.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job metadata: %w", err)
		}
	}
	return job, nil
}

// CreateJob inserts a new ledger row in status queued.
func (s *Store) CreateJob(ctx context.Context, p CreateJobParams) (*domain.Job, error) {
	jobID := p.JobID
	if jobID == "" {
		jobID = uuid.New().String()
	}
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}

	metadataJSON, err := json.Marshal(p.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job metadata: %w", err)
	}

	query := `
		INSERT INTO jobs (job_id, parent_job_id, job_type, status, progress, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	var createdAt, updatedAt time.Time
	err = s.db.QueryRowContext(ctx, query, jobID, p.ParentJobID, string(p.Type), string(domain.JobStatusQueued), metadataJSON).
		Scan(&createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("Job created",
		slog.String("job_id", jobID),
		slog.String("job_type", string(p.Type)),
	)

	return &domain.Job{
		JobID:       jobID,
		ParentJobID: p.ParentJobID,
		Type:        p.Type,
		Status:      domain.JobStatusQueued,
		Metadata:    p.Metadata,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

// GetJob retrieves a job by its id.
func (s *Store) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		SELECT job_id, parent_job_id, job_type, status, progress, metadata, error_message, created_at, updated_at
		FROM jobs
		WHERE job_id = $1
	`

	var row jobRow
	if err := s.db.GetContext(ctx, &row, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return row.toDomain()
}

// FindChildren returns every job referencing the given parent.
func (s *Store) FindChildren(ctx context.Context, parentJobID string) ([]domain.Job, error) {
	query := `
		SELECT job_id, parent_job_id, job_type, status, progress, metadata, error_message, created_at, updated_at
		FROM jobs
		WHERE parent_job_id = $1
		ORDER BY created_at ASC
	`

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query, parentJobID); err != nil {
		return nil, fmt.Errorf("failed to find children: %w", err)
	}

	children := make([]domain.Job, 0, len(rows))
	for _, r := range rows {
		job, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		children = append(children, *job)
	}
	return children, nil
}

// UpdateMetadata merges fields into the metadata document with a single
// JSONB concatenation, leaving unnamed keys untouched.
func (s *Store) UpdateMetadata(ctx context.Context, jobID string, fields map[string]any) error {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata fields: %w", err)
	}

	query := `
		UPDATE jobs
		SET metadata = COALESCE(metadata, '{}'::jsonb) || $2::jsonb,
		    updated_at = NOW()
		WHERE job_id = $1
	`

	res, err := s.db.ExecContext(ctx, query, jobID, fieldsJSON)
	if err != nil {
		return fmt.Errorf("failed to update job metadata: %w", err)
	}
	return s.requireRow(res, jobID)
}

// IncrementCounter bumps an integer metadata field in one conditional
// UPDATE so concurrent batch workers never lose an increment.
func (s *Store) IncrementCounter(ctx context.Context, jobID, field string, delta int64) (int64, error) {
	query := `
		UPDATE jobs
		SET metadata = jsonb_set(
			COALESCE(metadata, '{}'::jsonb),
			ARRAY[$2],
			to_jsonb(COALESCE((metadata ->> $2)::bigint, 0) + $3)
		),
		updated_at = NOW()
		WHERE job_id = $1
		RETURNING (metadata ->> $2)::bigint
	`

	var value int64
	err := s.db.QueryRowContext(ctx, query, jobID, field, delta).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrJobNotFound
		}
		return 0, fmt.Errorf("failed to increment counter %q: %w", field, err)
	}
	return value, nil
}

// SetStatus writes the job status.
func (s *Store) SetStatus(ctx context.Context, jobID string, status domain.JobStatus) error {
	query := `
		UPDATE jobs
		SET status = $2, updated_at = NOW()
		WHERE job_id = $1
	`

	res, err := s.db.ExecContext(ctx, query, jobID, string(status))
	if err != nil {
		return fmt.Errorf("failed to set job status: %w", err)
	}
	if err := s.requireRow(res, jobID); err != nil {
		return err
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", string(status)),
	)
	return nil
}

// SetProgress writes percent progress. Progress only moves forward for a
// job while its children are running; a retried job may reset it, so no
// monotonic guard is applied across attempts.
func (s *Store) SetProgress(ctx context.Context, jobID string, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	query := `
		UPDATE jobs
		SET progress = $2, updated_at = NOW()
		WHERE job_id = $1
	`

	res, err := s.db.ExecContext(ctx, query, jobID, percent)
	if err != nil {
		return fmt.Errorf("failed to set job progress: %w", err)
	}
	return s.requireRow(res, jobID)
}

// CompleteParent flips processing_batches to completed. The WHERE guard is
// the idempotence barrier: when sibling batches race, only one UPDATE
// matches a row.
func (s *Store) CompleteParent(ctx context.Context, jobID string) (bool, error) {
	query := `
		UPDATE jobs
		SET status = $2, progress = 100, updated_at = NOW()
		WHERE job_id = $1 AND status = $3
	`

	res, err := s.db.ExecContext(ctx, query, jobID, string(domain.JobStatusCompleted), string(domain.JobStatusProcessingBatches))
	if err != nil {
		return false, fmt.Errorf("failed to complete parent job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected > 0 {
		s.logger.Info("Parent job completed",
			slog.String("job_id", jobID),
		)
	}
	return affected > 0, nil
}

// MarkCompleted sets a terminal completed status on a child unit.
func (s *Store) MarkCompleted(ctx context.Context, jobID string) error {
	return s.SetStatus(ctx, jobID, domain.JobStatusCompleted)
}

// MarkFailed sets a terminal failed status with a reason.
func (s *Store) MarkFailed(ctx context.Context, jobID, reason string) error {
	query := `
		UPDATE jobs
		SET status = $2, error_message = $3, updated_at = NOW()
		WHERE job_id = $1
	`

	res, err := s.db.ExecContext(ctx, query, jobID, string(domain.JobStatusFailed), reason)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	if err := s.requireRow(res, jobID); err != nil {
		return err
	}

	s.logger.Warn("Job marked failed",
		slog.String("job_id", jobID),
		slog.String("reason", reason),
	)
	return nil
}

func (s *Store) requireRow(res sql.Result, jobID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}
