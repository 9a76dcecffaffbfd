package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeloop/catalog-orchestrator/internal/domain"
	"github.com/storeloop/catalog-orchestrator/internal/products"
)

func newRenderService(t *testing.T) (*Service, *MemoryStore, *products.MemoryStore, *NoopSubmitter) {
	t.Helper()

	videos := NewMemoryStore()
	prods := products.NewMemoryStore()
	prods.Add(products.Product{ID: "p-1", TenantID: "t-1", ConnectionID: "c-1", ExternalID: "ext-1", Title: "Shirt"})
	submitter := &NoopSubmitter{}

	return NewService(videos, prods, submitter, slog.Default()), videos, prods, submitter
}

func TestService_RequestRender(t *testing.T) {
	ctx := context.Background()
	svc, _, prods, submitter := newRenderService(t)

	v, err := svc.RequestRender(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, StatusGenerating, v.Status)
	assert.Equal(t, "p-1", v.ProductID)
	assert.Equal(t, "sandbox-"+v.ID, v.ExternalRef)
	assert.Equal(t, []string{v.ID}, submitter.SubmittedIDs())

	// Denormalized view follows
	p, err := prods.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, StatusGenerating, p.RenderStatus)
}

func TestNoopSubmitter_ConcurrentSubmits(t *testing.T) {
	ctx := context.Background()
	submitter := &NoopSubmitter{}

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := submitter.Submit(ctx, &Video{ID: fmt.Sprintf("v-%03d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, submitter.SubmittedIDs(), n)
}

func TestNewSubmitter(t *testing.T) {
	s, err := NewSubmitter(true)
	require.NoError(t, err)
	assert.IsType(t, &NoopSubmitter{}, s)

	_, err = NewSubmitter(false)
	assert.Error(t, err)
}

func TestService_RequestRender_UnknownProduct(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newRenderService(t)

	_, err := svc.RequestRender(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestService_RequestRender_SubmitFailure(t *testing.T) {
	ctx := context.Background()
	svc, videos, _, submitter := newRenderService(t)
	submitter.Err = errors.New("provider down")

	_, err := svc.RequestRender(ctx, "p-1")
	require.Error(t, err)

	// The created row records the failure
	var failed *Video
	for _, v := range videos.videos {
		failed = v
	}
	require.NotNil(t, failed)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Contains(t, failed.ErrorMessage, "provider down")
}

func TestService_HandleSuccess(t *testing.T) {
	ctx := context.Background()
	svc, _, prods, _ := newRenderService(t)

	v, err := svc.RequestRender(ctx, "p-1")
	require.NoError(t, err)

	got, err := svc.HandleSuccess(ctx, v.ID, ResultUpdate{
		ResultURL:    "https://cdn/video.mp4",
		ThumbnailURL: "https://cdn/thumb.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "https://cdn/video.mp4", got.ResultURL)

	p, err := prods.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, p.RenderStatus)
	assert.Equal(t, "https://cdn/video.mp4", p.RenderURL)
}

func TestService_HandleSuccess_OmittedFieldsKeepValues(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newRenderService(t)

	v, err := svc.RequestRender(ctx, "p-1")
	require.NoError(t, err)

	_, err = svc.HandleSuccess(ctx, v.ID, ResultUpdate{
		ResultURL:    "https://cdn/video.mp4",
		ThumbnailURL: "https://cdn/thumb.jpg",
	})
	require.NoError(t, err)

	// Second callback omits the thumbnail; the stored one survives
	got, err := svc.HandleSuccess(ctx, v.ID, ResultUpdate{ResultURL: "https://cdn/video-v2.mp4"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/video-v2.mp4", got.ResultURL)
	assert.Equal(t, "https://cdn/thumb.jpg", got.ThumbnailURL)
}

func TestService_HandleFailure_DefaultMessage(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newRenderService(t)

	v, err := svc.RequestRender(ctx, "p-1")
	require.NoError(t, err)

	got, err := svc.HandleFailure(ctx, v.ID, "")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, DefaultFailureMessage, got.ErrorMessage)

	got, err = svc.HandleFailure(ctx, v.ID, "encoder crashed")
	require.NoError(t, err)
	assert.Equal(t, "encoder crashed", got.ErrorMessage)
}

func TestService_LateCallbackOverwritesResult(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newRenderService(t)

	v, err := svc.RequestRender(ctx, "p-1")
	require.NoError(t, err)

	_, err = svc.HandleSuccess(ctx, v.ID, ResultUpdate{ResultURL: "https://cdn/video.mp4"})
	require.NoError(t, err)

	// A failure arriving after success still lands: last write wins
	got, err := svc.HandleFailure(ctx, v.ID, "provider retracted the render")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "provider retracted the render", got.ErrorMessage)
	assert.Equal(t, "https://cdn/video.mp4", got.ResultURL, "earlier result fields stay readable")

	// A success after the failure clears the stored error
	got, err = svc.HandleSuccess(ctx, v.ID, ResultUpdate{ResultURL: "https://cdn/video-final.mp4"})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Empty(t, got.ErrorMessage)
}

func TestService_UnknownVideo(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newRenderService(t)

	_, err := svc.HandleSuccess(ctx, "missing", ResultUpdate{ResultURL: "x"})
	assert.ErrorIs(t, err, domain.ErrVideoNotFound)

	_, err = svc.HandleFailure(ctx, "missing", "boom")
	assert.ErrorIs(t, err, domain.ErrVideoNotFound)
}

// mirrorFailStore drops every product write to prove the primary result is
// unaffected by the secondary view.
type mirrorFailStore struct {
	*products.MemoryStore
}

func (s *mirrorFailStore) UpdateRenderStatus(context.Context, string, string, string) error {
	return errors.New("products table unavailable")
}

func TestService_MirrorFailureDoesNotFailCallback(t *testing.T) {
	ctx := context.Background()

	videos := NewMemoryStore()
	prods := products.NewMemoryStore()
	prods.Add(products.Product{ID: "p-1"})
	svc := NewService(videos, &mirrorFailStore{prods}, &NoopSubmitter{}, slog.Default())

	v, err := svc.RequestRender(ctx, "p-1")
	require.NoError(t, err)

	got, err := svc.HandleSuccess(ctx, v.ID, ResultUpdate{ResultURL: "https://cdn/video.mp4"})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}
