package render

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storeloop/catalog-orchestrator/internal/domain"
)

// MemoryStore is an in-memory Store for tests and sandbox runs.
type MemoryStore struct {
	mu     sync.Mutex
	videos map[string]*Video
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{videos: make(map[string]*Video)}
}

func (m *MemoryStore) Create(_ context.Context, v *Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Status == "" {
		v.Status = StatusPending
	}
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now

	cp := *v
	m.videos[v.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, videoID string) (*Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.videos[videoID]
	if !ok {
		return nil, domain.ErrVideoNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *MemoryStore) ApplyResult(_ context.Context, videoID string, u ResultUpdate) (*Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.videos[videoID]
	if !ok {
		return nil, domain.ErrVideoNotFound
	}
	if u.Status != "" {
		v.Status = u.Status
	}
	if u.ExternalRef != "" {
		v.ExternalRef = u.ExternalRef
	}
	if u.ResultURL != "" {
		v.ResultURL = u.ResultURL
	}
	if u.ThumbnailURL != "" {
		v.ThumbnailURL = u.ThumbnailURL
	}
	if u.ClearError {
		v.ErrorMessage = ""
	} else if u.ErrorMessage != "" {
		v.ErrorMessage = u.ErrorMessage
	}
	v.UpdatedAt = time.Now().UTC()

	cp := *v
	return &cp, nil
}
