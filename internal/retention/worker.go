// Package retention purges verification records and submitted images once
// they age past the configured limits.
package retention

import (
	"context"
	"log/slog"
	"time"
)

// RecordReaper deletes aged verification records.
type RecordReaper interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// ImageReaper deletes aged submitted images.
type ImageReaper interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// Worker sweeps both stores on a fixed interval. Images typically expire
// sooner than records since the record keeps the extracted fields.
type Worker struct {
	records   RecordReaper
	images    ImageReaper
	recordAge time.Duration
	imageAge  time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

// NewWorker constructs a retention worker.
func NewWorker(records RecordReaper, images ImageReaper, recordAge, imageAge, interval time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		records:   records,
		images:    images,
		recordAge: recordAge,
		imageAge:  imageAge,
		interval:  interval,
		logger:    logger,
	}
}

// Run sweeps periodically until ctx is cancelled. Sweep errors are logged,
// not fatal; the next tick retries.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Sweep(ctx, time.Now())
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Sweep deletes records and images older than their retention limits as of
// the given time. Exported for testability; the background loop passes
// wall-clock time.
func (w *Worker) Sweep(ctx context.Context, now time.Time) {
	if removed, err := w.records.DeleteOlderThan(ctx, now.Add(-w.recordAge)); err != nil {
		w.logger.ErrorContext(ctx, "record retention sweep failed", "error", err)
	} else if removed > 0 {
		w.logger.InfoContext(ctx, "purged expired verification records", "count", removed)
	}

	if removed, err := w.images.DeleteOlderThan(ctx, now.Add(-w.imageAge)); err != nil {
		w.logger.ErrorContext(ctx, "image retention sweep failed", "error", err)
	} else if removed > 0 {
		w.logger.InfoContext(ctx, "purged expired images", "count", removed)
	}
}
