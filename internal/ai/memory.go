package ai

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory SuggestionStore for tests and sandbox runs.
type MemoryStore struct {
	mu          sync.Mutex
	suggestions map[string][]Suggestion
	content     map[string]map[string]*GeneratedContent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		suggestions: make(map[string][]Suggestion),
		content:     make(map[string]map[string]*GeneratedContent),
	}
}

func (m *MemoryStore) SaveSuggestions(_ context.Context, entityID string, suggestions []Suggestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for i := range suggestions {
		sg := suggestions[i]
		if sg.ID == "" {
			sg.ID = uuid.NewString()
		}
		sg.EntityID = entityID
		sg.CreatedAt = now
		m.suggestions[entityID] = append(m.suggestions[entityID], sg)
	}
	return nil
}

func (m *MemoryStore) ReplaceContent(_ context.Context, c *GeneratedContent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()

	byKind := m.content[c.EntityID]
	if byKind == nil {
		byKind = make(map[string]*GeneratedContent)
		m.content[c.EntityID] = byKind
	}
	cp := *c
	byKind[c.Kind] = &cp
	return nil
}

// SuggestionsFor returns stored suggestions for an entity.
func (m *MemoryStore) SuggestionsFor(entityID string) []Suggestion {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Suggestion, len(m.suggestions[entityID]))
	copy(out, m.suggestions[entityID])
	return out
}

// ContentFor returns the current artifact for (entity, kind), or nil.
func (m *MemoryStore) ContentFor(entityID, kind string) *GeneratedContent {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.content[entityID][kind]
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
