package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeloop/catalog-orchestrator/internal/api/handler"
	"github.com/storeloop/catalog-orchestrator/internal/api/router"
	"github.com/storeloop/catalog-orchestrator/internal/audit"
	"github.com/storeloop/catalog-orchestrator/internal/dispatch"
	"github.com/storeloop/catalog-orchestrator/internal/domain"
	"github.com/storeloop/catalog-orchestrator/internal/ledger"
	"github.com/storeloop/catalog-orchestrator/internal/products"
	"github.com/storeloop/catalog-orchestrator/internal/queue"
	"github.com/storeloop/catalog-orchestrator/internal/render"
)

type testEnv struct {
	router     *gin.Engine
	ledger     *ledger.Memory
	transport  *queue.MemoryTransport
	videos     *render.MemoryStore
	products   *products.MemoryStore
	auditStore *audit.MemoryStore
	recorder   *audit.Recorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.Default()
	env := &testEnv{
		ledger:     ledger.NewMemory(),
		videos:     render.NewMemoryStore(),
		products:   products.NewMemoryStore(),
		auditStore: audit.NewMemoryStore(),
	}
	env.transport = queue.NewMemoryTransport(env.ledger)
	env.recorder = audit.NewRecorder(env.auditStore, logger)

	env.products.Add(products.Product{ID: "p-1", TenantID: "t-1", ConnectionID: "c-1", ExternalID: "ext-1", Title: "Shirt"})

	env.router = router.SetupRouter(&handler.Dependencies{
		Logger:     logger,
		Ledger:     env.ledger,
		Dispatch:   dispatch.NewService(env.ledger, env.transport, logger),
		Render:     render.NewService(env.videos, env.products, &render.NoopSubmitter{}, logger),
		AuditStore: env.auditStore,
		Recorder:   env.recorder,
	})
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func (env *testEnv) createVideo(t *testing.T) string {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/v1/videos", gin.H{"product_id": "p-1"})
	require.Equal(t, http.StatusCreated, w.Code)

	var v render.Video
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v.ID
}

func TestStartSync(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/syncs", gin.H{
		"tenant_id":     "t-1",
		"connection_id": "c-1",
		"marketplace":   "sandbox",
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.JobID)
	assert.Equal(t, string(domain.JobStatusQueued), resp.Status)

	// Ledger row written before the message was published
	job, err := env.ledger.GetJob(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobTypeSyncOrchestrator, job.Type)

	records := env.transport.Records()
	require.Len(t, records, 1)
	assert.Equal(t, queue.QueueSyncOrchestrator, records[0].Queue)
	assert.Equal(t, resp.JobID, records[0].JobID)
}

func TestStartSync_InvalidBody(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/syncs", gin.H{"tenant_id": "t-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.transport.Records())
}

func TestStartAIScan(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/ai-scans", gin.H{
		"tenant_id":  "t-1",
		"entity_ids": []string{"p-1", "p-2"},
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	records := env.transport.Records()
	require.Len(t, records, 1)
	assert.Equal(t, queue.QueueAIScan, records[0].Queue)
}

func TestStartAIScan_EmptyEntities(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/ai-scans", gin.H{
		"tenant_id":  "t-1",
		"entity_ids": []string{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	parent, err := env.ledger.CreateJob(ctx, ledger.CreateJobParams{
		Type:     domain.JobTypeSyncOrchestrator,
		Metadata: map[string]any{domain.MetaTotalItems: 10},
	})
	require.NoError(t, err)
	_, err = env.ledger.CreateJob(ctx, ledger.CreateJobParams{ParentJobID: &parent.JobID, Type: domain.JobTypeSyncBatch})
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/api/v1/jobs/"+parent.JobID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		JobID    string           `json:"job_id"`
		Metadata map[string]any   `json:"metadata"`
		Children []map[string]any `json:"children"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, parent.JobID, resp.JobID)
	assert.EqualValues(t, 10, resp.Metadata[domain.MetaTotalItems])
	assert.Len(t, resp.Children, 1)
}

func TestGetJob_NotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/jobs/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateVideo_UnknownProduct(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/videos", gin.H{"product_id": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVideoSuccessWebhook(t *testing.T) {
	env := newTestEnv(t)
	videoID := env.createVideo(t)

	w := env.do(t, http.MethodPost, "/internal/videos/success", gin.H{
		"id":        videoID,
		"resultUrl": "https://cdn/video.mp4",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, render.StatusCompleted, resp.Data["status"])

	// Audit trail captured off the request path
	env.recorder.Flush()
	records, _, err := env.auditStore.List(context.Background(), audit.ListParams{Endpoint: handler.EndpointVideoSuccess})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, audit.OutcomeAccepted, records[0].Outcome)
	assert.Contains(t, records[0].RawBody, videoID)
}

func TestVideoSuccessWebhook_UnknownVideo(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/internal/videos/success", gin.H{
		"id":        "missing",
		"resultUrl": "https://cdn/video.mp4",
	})
	require.Equal(t, http.StatusNotFound, w.Code)

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Message)

	// Rejected calls are audited too
	env.recorder.Flush()
	records, _, err := env.auditStore.List(context.Background(), audit.ListParams{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, audit.OutcomeRejected, records[0].Outcome)
}

func TestVideoSuccessWebhook_MalformedBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/internal/videos/success", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	env.recorder.Flush()
	records, _, err := env.auditStore.List(context.Background(), audit.ListParams{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "{not json", records[0].RawBody, "raw body stored verbatim")
}

func TestVideoFailureWebhook_DefaultMessage(t *testing.T) {
	env := newTestEnv(t)
	videoID := env.createVideo(t)

	w := env.do(t, http.MethodPost, "/internal/videos/failure", gin.H{"id": videoID})
	require.Equal(t, http.StatusOK, w.Code)

	v, err := env.videos.Get(context.Background(), videoID)
	require.NoError(t, err)
	assert.Equal(t, render.StatusFailed, v.Status)
	assert.Equal(t, render.DefaultFailureMessage, v.ErrorMessage)
}

func TestWebhookAuditListing(t *testing.T) {
	env := newTestEnv(t)
	videoID := env.createVideo(t)

	for i := 0; i < 5; i++ {
		w := env.do(t, http.MethodPost, "/internal/videos/success", gin.H{
			"id":        videoID,
			"resultUrl": fmt.Sprintf("https://cdn/video-%d.mp4", i),
		})
		require.Equal(t, http.StatusOK, w.Code)
	}
	env.recorder.Flush()

	w := env.do(t, http.MethodGet, "/api/v1/webhook-audit?page_size=3", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page1 struct {
		Records    []map[string]any `json:"records"`
		NextCursor string           `json:"next_cursor"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page1))
	assert.Len(t, page1.Records, 3)
	require.NotEmpty(t, page1.NextCursor)

	w = env.do(t, http.MethodGet, "/api/v1/webhook-audit?page_size=3&cursor="+url.QueryEscape(page1.NextCursor), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page2 struct {
		Records    []map[string]any `json:"records"`
		NextCursor string           `json:"next_cursor"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page2))
	assert.Len(t, page2.Records, 2)
	assert.Empty(t, page2.NextCursor)

	// Single record lookup
	id, _ := page1.Records[0]["id"].(string)
	require.NotEmpty(t, id)
	w = env.do(t, http.MethodGet, "/api/v1/webhook-audit/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/webhook-audit/unknown-id", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookAudit_InvalidCursor(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/webhook-audit?cursor=not-a-cursor", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
