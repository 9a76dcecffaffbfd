package aiscan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeloop/catalog-orchestrator/internal/ai"
	"github.com/storeloop/catalog-orchestrator/internal/domain"
	"github.com/storeloop/catalog-orchestrator/internal/ledger"
	"github.com/storeloop/catalog-orchestrator/internal/products"
	"github.com/storeloop/catalog-orchestrator/internal/queue"
	"github.com/storeloop/catalog-orchestrator/internal/ratelimit"
)

type scanPipeline struct {
	ledger    *ledger.Memory
	transport *queue.MemoryTransport
	rlStore   *ratelimit.MemoryStore
	gate      *ratelimit.Gate
	generator *ai.StaticGenerator
	artifacts *ai.MemoryStore
	store     *products.MemoryStore
}

func newScanPipeline(t *testing.T, entityCount int) *scanPipeline {
	t.Helper()

	p := &scanPipeline{
		ledger:    ledger.NewMemory(),
		rlStore:   ratelimit.NewMemoryStore(),
		generator: ai.NewStaticGenerator(),
		artifacts: ai.NewMemoryStore(),
		store:     products.NewMemoryStore(),
	}
	p.transport = queue.NewMemoryTransport(p.ledger)
	p.gate = ratelimit.NewGate(p.rlStore, 24*time.Hour, 2, slog.Default())

	for i := 1; i <= entityCount; i++ {
		p.store.Add(products.Product{
			ID:       fmt.Sprintf("prod-%03d", i),
			TenantID: "t-1",
			Title:    fmt.Sprintf("Product %d", i),
			Category: "apparel",
			Status:   products.StatusActive,
		})
	}

	logger := slog.Default()
	cfg := Config{BatchSize: 10, BatchDelay: 30 * time.Second, ItemDelay: time.Millisecond}
	orch := NewOrchestrator(p.ledger, p.transport, p.gate, cfg, logger)
	worker := NewWorker(p.ledger, p.gate, p.generator, p.artifacts, p.store, cfg, logger)

	ctx := context.Background()
	require.NoError(t, p.transport.Consume(ctx, queue.QueueAIScan, domain.JobTypeAIScan, 1, orch.Handle))
	require.NoError(t, p.transport.Consume(ctx, queue.QueueAIBatch, domain.JobTypeAIBatch, 1, worker.Handle))
	return p
}

func (p *scanPipeline) entityIDs(n int) []string {
	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		ids = append(ids, fmt.Sprintf("prod-%03d", i))
	}
	return ids
}

func (p *scanPipeline) start(t *testing.T, payload ScanPayload) *domain.Job {
	t.Helper()
	ctx := context.Background()

	parent, err := p.ledger.CreateJob(ctx, ledger.CreateJobParams{Type: domain.JobTypeAIScan})
	require.NoError(t, err)

	_, err = p.transport.Enqueue(ctx, queue.QueueAIScan, domain.JobTypeAIScan, payload, queue.Options{JobID: parent.JobID})
	require.NoError(t, err)
	return parent
}

func TestAIScan_EndToEnd(t *testing.T) {
	ctx := context.Background()
	p := newScanPipeline(t, 25)

	parent := p.start(t, ScanPayload{TenantID: "t-1", EntityIDs: p.entityIDs(25)})

	got, err := p.ledger.GetJob(ctx, parent.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	assert.Equal(t, int64(25), got.MetaInt(domain.MetaTotalItems))
	assert.Equal(t, int64(3), got.MetaInt(domain.MetaTotalBatches))
	assert.Equal(t, int64(25), got.MetaInt(domain.MetaProcessedItems))
	assert.Equal(t, 100, got.Progress)

	// Artifacts stored for a sample entity
	assert.NotEmpty(t, p.artifacts.SuggestionsFor("prod-001"))
	content := p.artifacts.ContentFor("prod-001", ai.ContentKindDescription)
	require.NotNil(t, content)
	assert.Contains(t, content.Content, "Product 1")
}

func TestAIScan_BatchDelaysIncrease(t *testing.T) {
	p := newScanPipeline(t, 25)

	p.start(t, ScanPayload{TenantID: "t-1", EntityIDs: p.entityIDs(25)})

	var delays []time.Duration
	for _, r := range p.transport.Records() {
		if r.Queue == queue.QueueAIBatch {
			delays = append(delays, r.Delay)
		}
	}
	assert.Equal(t, []time.Duration{0, 30 * time.Second, 60 * time.Second}, delays)
}

func TestAIScan_BlockedEntitiesReported(t *testing.T) {
	ctx := context.Background()
	p := newScanPipeline(t, 5)

	// prod-002 has exhausted its cooldown before the scan starts
	require.NoError(t, p.gate.Record(ctx, ratelimit.CategoryAIScan, "prod-002"))
	require.NoError(t, p.gate.Record(ctx, ratelimit.CategoryAIScan, "prod-002"))

	parent := p.start(t, ScanPayload{TenantID: "t-1", EntityIDs: p.entityIDs(5)})

	got, err := p.ledger.GetJob(ctx, parent.JobID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.MetaInt(domain.MetaTotalItems))

	blocked, ok := got.Metadata[domain.MetaBlockedEntities].([]ratelimit.BlockedEntity)
	require.True(t, ok)
	require.Len(t, blocked, 1)
	assert.Equal(t, "prod-002", blocked[0].EntityID)
	assert.Equal(t, 2, blocked[0].ScanCount)

	assert.Empty(t, p.artifacts.SuggestionsFor("prod-002"))
}

func TestAIScan_AllBlockedCompletesImmediately(t *testing.T) {
	ctx := context.Background()
	p := newScanPipeline(t, 2)

	for _, id := range p.entityIDs(2) {
		require.NoError(t, p.gate.Record(ctx, ratelimit.CategoryAIScan, id))
		require.NoError(t, p.gate.Record(ctx, ratelimit.CategoryAIScan, id))
	}

	parent := p.start(t, ScanPayload{TenantID: "t-1", EntityIDs: p.entityIDs(2)})

	got, err := p.ledger.GetJob(ctx, parent.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, int64(0), got.MetaInt(domain.MetaTotalItems))

	children, err := p.ledger.FindChildren(ctx, parent.JobID)
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestAIScan_EveryAttemptConsumesAllowance(t *testing.T) {
	ctx := context.Background()
	p := newScanPipeline(t, 1)
	p.generator.FailEntities["prod-001"] = errors.New("model unavailable")

	parent := p.start(t, ScanPayload{TenantID: "t-1", EntityIDs: p.entityIDs(1)})

	got, err := p.ledger.GetJob(ctx, parent.JobID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.MetaInt(domain.MetaFailedItems))

	// The failed attempt still counted against the cooldown
	_, count, err := p.gate.Allow(ctx, ratelimit.CategoryAIScan, "prod-001")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAIScan_MissingEntitySkipped(t *testing.T) {
	ctx := context.Background()
	p := newScanPipeline(t, 2)

	parent := p.start(t, ScanPayload{TenantID: "t-1", EntityIDs: []string{"prod-001", "prod-gone"}})

	got, err := p.ledger.GetJob(ctx, parent.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	assert.Equal(t, int64(2), got.MetaInt(domain.MetaProcessedItems))

	history := p.store.HistoryFor("prod-gone")
	require.Len(t, history, 1)
	assert.Equal(t, products.OutcomeSkipped, history[0].Outcome)
}

func TestAIScan_ContentReplacedOnRescan(t *testing.T) {
	ctx := context.Background()
	p := newScanPipeline(t, 1)

	p.start(t, ScanPayload{TenantID: "t-1", EntityIDs: p.entityIDs(1)})
	first := p.artifacts.ContentFor("prod-001", ai.ContentKindDescription)
	require.NotNil(t, first)

	// Second scan within the window is still allowed (limit is 2)
	p.start(t, ScanPayload{TenantID: "t-1", EntityIDs: p.entityIDs(1)})
	second := p.artifacts.ContentFor("prod-001", ai.ContentKindDescription)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID, "regeneration replaces, never accumulates")

	// Suggestions accumulate across scans, content does not
	assert.Len(t, p.artifacts.SuggestionsFor("prod-001"), 4)

	_, count, err := p.gate.Allow(ctx, ratelimit.CategoryAIScan, "prod-001")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
