package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storeloop/catalog-orchestrator/internal/domain"
)

// Memory is an in-process ledger used by tests and local development. It
// mirrors the Postgres store's atomicity guarantees with a single mutex.
type Memory struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		jobs: make(map[string]*domain.Job),
	}
}

func (m *Memory) CreateJob(_ context.Context, p CreateJobParams) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobID := p.JobID
	if jobID == "" {
		jobID = uuid.New().String()
	}

	metadata := make(map[string]any, len(p.Metadata))
	for k, v := range p.Metadata {
		metadata[k] = v
	}

	now := time.Now()
	job := &domain.Job{
		JobID:       jobID,
		ParentJobID: p.ParentJobID,
		Type:        p.Type,
		Status:      domain.JobStatusQueued,
		Metadata:    metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.jobs[jobID] = job
	return copyJob(job), nil
}

func (m *Memory) GetJob(_ context.Context, jobID string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return copyJob(job), nil
}

func (m *Memory) FindChildren(_ context.Context, parentJobID string) ([]domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var children []domain.Job
	for _, job := range m.jobs {
		if job.ParentJobID != nil && *job.ParentJobID == parentJobID {
			children = append(children, *copyJob(job))
		}
	}
	return children, nil
}

func (m *Memory) UpdateMetadata(_ context.Context, jobID string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	if job.Metadata == nil {
		job.Metadata = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		job.Metadata[k] = v
	}
	job.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) IncrementCounter(_ context.Context, jobID, field string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return 0, domain.ErrJobNotFound
	}
	if job.Metadata == nil {
		job.Metadata = make(map[string]any)
	}
	value := job.MetaInt(field) + delta
	job.Metadata[field] = value
	job.UpdatedAt = time.Now()
	return value, nil
}

func (m *Memory) SetStatus(_ context.Context, jobID string, status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	job.Status = status
	job.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) SetProgress(_ context.Context, jobID string, percent int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	job.Progress = percent
	job.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) CompleteParent(_ context.Context, jobID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return false, domain.ErrJobNotFound
	}
	if job.Status != domain.JobStatusProcessingBatches {
		return false, nil
	}
	job.Status = domain.JobStatusCompleted
	job.Progress = 100
	job.UpdatedAt = time.Now()
	return true, nil
}

func (m *Memory) MarkCompleted(ctx context.Context, jobID string) error {
	return m.SetStatus(ctx, jobID, domain.JobStatusCompleted)
}

func (m *Memory) MarkFailed(_ context.Context, jobID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	job.Status = domain.JobStatusFailed
	job.Error = reason
	job.UpdatedAt = time.Now()
	return nil
}

func copyJob(job *domain.Job) *domain.Job {
	dup := *job
	if job.Metadata != nil {
		dup.Metadata = make(map[string]any, len(job.Metadata))
		for k, v := range job.Metadata {
			dup.Metadata[k] = v
		}
	}
	return &dup
}
