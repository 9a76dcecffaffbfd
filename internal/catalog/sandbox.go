package catalog

import (
	"context"
	"sync"
)

// StaticSource serves a fixed item set from memory. It backs the
// "sandbox" marketplace in local runs and stands in for real sources in
// tests. It has no server-side filtering, so filters are applied
// client-side per page the way a real filterless source has to.
type StaticSource struct {
	mu       sync.RWMutex
	items    []Item
	pageSize int

	// CanEstimate controls whether EstimateTotal reports a number.
	CanEstimate bool

	// SkipIDs lists ids FetchDetail answers with "no sub-unit data".
	SkipIDs map[string]bool

	// FailIDs lists ids FetchDetail fails on.
	FailIDs map[string]error
}

// NewStaticSource builds a sandbox source over the given items.
func NewStaticSource(items []Item, pageSize int) *StaticSource {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &StaticSource{
		items:       items,
		pageSize:    pageSize,
		CanEstimate: true,
		SkipIDs:     make(map[string]bool),
		FailIDs:     make(map[string]error),
	}
}

func (s *StaticSource) EstimateTotal(_ context.Context, _ ConnectionRef, f Filters) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.CanEstimate {
		return 0, false, nil
	}
	total := 0
	for i := range s.items {
		if f.Match(&s.items[i]) {
			total++
		}
	}
	return total, true, nil
}

// ListIDs pages through the raw item list and filters each page
// client-side, so memory stays bounded by the page size rather than the
// catalog size.
func (s *StaticSource) ListIDs(_ context.Context, _ ConnectionRef, f Filters, page int) (Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := page * s.pageSize
	if start >= len(s.items) {
		return Page{}, nil
	}
	end := start + s.pageSize
	if end > len(s.items) {
		end = len(s.items)
	}

	var ids []string
	for i := start; i < end; i++ {
		if f.Match(&s.items[i]) {
			ids = append(ids, s.items[i].ExternalID)
		}
	}
	return Page{IDs: ids, HasMore: end < len(s.items)}, nil
}

func (s *StaticSource) FetchDetail(_ context.Context, _ ConnectionRef, externalID string) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err, ok := s.FailIDs[externalID]; ok {
		return nil, err
	}
	if s.SkipIDs[externalID] {
		return nil, nil
	}
	for i := range s.items {
		if s.items[i].ExternalID == externalID {
			item := s.items[i]
			return &item, nil
		}
	}
	return nil, nil
}
