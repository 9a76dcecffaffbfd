package render

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/storeloop/catalog-orchestrator/internal/products"
)

// Service ties render requests to the product catalog and applies provider
// callbacks.
type Service struct {
	store     Store
	products  products.Store
	submitter Submitter
	logger    *slog.Logger
}

func NewService(store Store, prods products.Store, submitter Submitter, logger *slog.Logger) *Service {
	return &Service{store: store, products: prods, submitter: submitter, logger: logger}
}

// RequestRender creates a render request for a product and hands it to the
// provider. Acceptance moves the row to generating with the provider's
// reference stored; the row then stays generating until a webhook arrives.
func (s *Service) RequestRender(ctx context.Context, productID string) (*Video, error) {
	if _, err := s.products.Get(ctx, productID); err != nil {
		return nil, err
	}

	v := &Video{ProductID: productID, Status: StatusPending}
	if err := s.store.Create(ctx, v); err != nil {
		return nil, err
	}

	ref, err := s.submitter.Submit(ctx, v)
	if err != nil {
		if _, aErr := s.store.ApplyResult(ctx, v.ID, ResultUpdate{Status: StatusFailed, ErrorMessage: err.Error()}); aErr != nil {
			s.logger.Error("mark submit failure", "video_id", v.ID, "error", aErr)
		}
		return nil, fmt.Errorf("submit render: %w", err)
	}

	v, err = s.store.ApplyResult(ctx, v.ID, ResultUpdate{Status: StatusGenerating, ExternalRef: ref})
	if err != nil {
		return nil, err
	}

	s.mirrorToProduct(ctx, v)
	return v, nil
}

// HandleSuccess applies a provider success callback. Absent optional
// fields keep their stored values; repeated or late callbacks overwrite
// the previous result.
func (s *Service) HandleSuccess(ctx context.Context, videoID string, u ResultUpdate) (*Video, error) {
	u.Status = StatusCompleted
	u.ErrorMessage = ""
	u.ClearError = true

	v, err := s.store.ApplyResult(ctx, videoID, u)
	if err != nil {
		return nil, err
	}

	s.mirrorToProduct(ctx, v)
	return v, nil
}

// HandleFailure applies a provider failure callback, substituting a
// default reason when the callback carries none.
func (s *Service) HandleFailure(ctx context.Context, videoID, errorMessage string) (*Video, error) {
	if errorMessage == "" {
		errorMessage = DefaultFailureMessage
	}

	v, err := s.store.ApplyResult(ctx, videoID, ResultUpdate{Status: StatusFailed, ErrorMessage: errorMessage})
	if err != nil {
		return nil, err
	}

	s.mirrorToProduct(ctx, v)
	return v, nil
}

// mirrorToProduct maintains the denormalized render view on the product
// row. The video row is the source of truth; a failed mirror write is
// logged and the primary result stands.
func (s *Service) mirrorToProduct(ctx context.Context, v *Video) {
	if err := s.products.UpdateRenderStatus(ctx, v.ProductID, v.Status, v.ResultURL); err != nil {
		s.logger.Warn("product render mirror failed",
			"video_id", v.ID, "product_id", v.ProductID, "error", err)
	}
}
