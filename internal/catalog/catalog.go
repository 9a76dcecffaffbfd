package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/storeloop/catalog-orchestrator/internal/domain"
)

// ConnectionRef identifies one tenant's connection to a marketplace.
type ConnectionRef struct {
	TenantID     string `json:"tenant_id"`
	ConnectionID string `json:"connection_id"`
	Marketplace  string `json:"marketplace"`
}

// Filters narrow an enumeration. Sources without server-side filtering
// must apply these client-side per page, not after fetching everything.
type Filters struct {
	Category     string     `json:"category,omitempty"`
	Search       string     `json:"search,omitempty"`
	UpdatedSince *time.Time `json:"updated_since,omitempty"`
}

// Match applies the filter predicates to a single item. Used by sources
// doing client-side filtering.
func (f Filters) Match(item *Item) bool {
	if f.Category != "" && item.Category != f.Category {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(item.Title), strings.ToLower(f.Search)) {
		return false
	}
	if f.UpdatedSince != nil && item.UpdatedAt.Before(*f.UpdatedSince) {
		return false
	}
	return true
}

// Variant is one purchasable sub-unit of an item.
type Variant struct {
	SKU   string  `json:"sku"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
}

// Item is the marketplace-side representation of a catalog entry.
type Item struct {
	ExternalID  string    `json:"external_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	ImageURL    string    `json:"image_url"`
	Variants    []Variant `json:"variants"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Page is one slice of an enumeration.
type Page struct {
	IDs     []string
	HasMore bool
}

// Source is the capability a marketplace integration must provide.
// Implementations live outside this subsystem; they are registered by
// name at startup.
type Source interface {
	// EstimateTotal returns a best-effort count of items under the
	// filter. ok=false means the source cannot estimate without a full
	// fetch; callers must not show a misleading number in that case.
	EstimateTotal(ctx context.Context, conn ConnectionRef, f Filters) (total int, ok bool, err error)

	// ListIDs enumerates external ids page by page. page starts at 0.
	ListIDs(ctx context.Context, conn ConnectionRef, f Filters, page int) (Page, error)

	// FetchDetail loads the full item. A nil item with nil error means
	// the source has no sub-unit data for the id; callers treat that as
	// a skip, not an error.
	FetchDetail(ctx context.Context, conn ConnectionRef, externalID string) (*Item, error)
}

// Registry is the lookup table mapping marketplace names to sources.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register binds a source to a marketplace name, replacing any previous
// binding.
func (r *Registry) Register(marketplace string, src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[marketplace] = src
}

// Lookup resolves a marketplace name to its source.
func (r *Registry) Lookup(marketplace string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[marketplace]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownMarketplace, marketplace)
	}
	return src, nil
}
