package products

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storeloop/catalog-orchestrator/internal/domain"
)

type productKey struct {
	tenantID     string
	connectionID string
	externalID   string
}

// MemoryStore is an in-process product store for tests and local runs.
type MemoryStore struct {
	mu         sync.Mutex
	byKey      map[productKey]*Product
	byID       map[string]*Product
	History    []HistoryEntry
	LastSynced map[string]time.Time

	// TouchCount records bookkeeping invocations per connection so tests
	// can assert completion bookkeeping ran exactly once.
	TouchCount map[string]int
}

// NewMemoryStore creates an empty in-memory product store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byKey:      make(map[productKey]*Product),
		byID:       make(map[string]*Product),
		LastSynced: make(map[string]time.Time),
		TouchCount: make(map[string]int),
	}
}

func (s *MemoryStore) Upsert(_ context.Context, p *Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := productKey{p.TenantID, p.ConnectionID, p.ExternalID}
	now := time.Now()

	if existing, ok := s.byKey[key]; ok {
		// Draft placeholders are promoted in place.
		existing.Title = p.Title
		existing.Description = p.Description
		existing.Category = p.Category
		existing.Price = p.Price
		existing.ImageURL = p.ImageURL
		existing.Status = StatusActive
		existing.UpdatedAt = now
		p.ID = existing.ID
		return nil
	}

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	stored := *p
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.byKey[key] = &stored
	s.byID[stored.ID] = &stored
	return nil
}

func (s *MemoryStore) CreateDraft(_ context.Context, tenantID, connectionID, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := productKey{tenantID, connectionID, externalID}
	if _, ok := s.byKey[key]; ok {
		return nil
	}
	now := time.Now()
	draft := &Product{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		ConnectionID: connectionID,
		ExternalID:   externalID,
		Status:       StatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.byKey[key] = draft
	s.byID[draft.ID] = draft
	return nil
}

func (s *MemoryStore) Get(_ context.Context, productID string) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	dup := *p
	return &dup, nil
}

// GetByExternalID is a test helper for inspecting upsert results.
func (s *MemoryStore) GetByExternalID(tenantID, connectionID, externalID string) (*Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byKey[productKey{tenantID, connectionID, externalID}]
	if !ok {
		return nil, false
	}
	dup := *p
	return &dup, true
}

// Add inserts a fully-formed product, bypassing upsert semantics. Used to
// seed test fixtures.
func (s *MemoryStore) Add(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	stored := p
	s.byKey[productKey{p.TenantID, p.ConnectionID, p.ExternalID}] = &stored
	s.byID[stored.ID] = &stored
}

func (s *MemoryStore) RecordItemHistory(_ context.Context, e HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.CreatedAt = time.Now()
	s.History = append(s.History, e)
	return nil
}

func (s *MemoryStore) TouchLastSynced(_ context.Context, connectionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastSynced[connectionID] = at
	s.TouchCount[connectionID]++
	return nil
}

func (s *MemoryStore) UpdateRenderStatus(_ context.Context, productID, status, renderURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.RenderStatus = status
	if renderURL != "" {
		p.RenderURL = renderURL
	}
	p.UpdatedAt = time.Now()
	return nil
}

// HistoryFor returns history entries for one entity id.
func (s *MemoryStore) HistoryFor(entityID string) []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []HistoryEntry
	for _, e := range s.History {
		if e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out
}
