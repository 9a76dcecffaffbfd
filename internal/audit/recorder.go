package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Recorder appends audit records off the request path. A failed append is
// logged and dropped; the webhook response must never depend on it.
type Recorder struct {
	store   Store
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger, timeout: 5 * time.Second}
}

// Record schedules one append and returns immediately.
func (r *Recorder) Record(rec Record) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.store.Append(ctx, &rec); err != nil {
			r.logger.Error("audit append failed", "endpoint", rec.Endpoint, "error", err)
		}
	}()
}

// Flush blocks until all scheduled appends have finished. Used on shutdown
// and in tests.
func (r *Recorder) Flush() {
	r.wg.Wait()
}
