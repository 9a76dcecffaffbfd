package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storeloop/catalog-orchestrator/internal/domain"
)

// MemoryStore is an in-memory Store for tests and sandbox runs.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m.records = append(m.records, *r)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.records {
		if m.records[i].ID == id {
			cp := m.records[i]
			return &cp, nil
		}
	}
	return nil, domain.ErrAuditRecordNotFound
}

func (m *MemoryStore) List(_ context.Context, p ListParams) ([]Record, *Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	matched := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		if p.Endpoint != "" && r.Endpoint != p.Endpoint {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	if p.Cursor != nil {
		after := matched[:0]
		for _, r := range matched {
			if r.CreatedAt.Before(p.Cursor.CreatedAt) ||
				(r.CreatedAt.Equal(p.Cursor.CreatedAt) && r.ID < p.Cursor.ID) {
				after = append(after, r)
			}
		}
		matched = after
	}

	var next *Cursor
	if len(matched) > pageSize {
		matched = matched[:pageSize]
		last := matched[len(matched)-1]
		next = &Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return matched, next, nil
}
