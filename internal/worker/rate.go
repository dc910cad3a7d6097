package worker

import (
	"context"
	"log/slog"
	"time"
)

// RateRefresher refreshes the spot-rate snapshot.
type RateRefresher interface {
	Refresh(ctx context.Context) error
}

// RateWorker periodically refreshes spot rates.
type RateWorker struct {
	refresher RateRefresher
	interval  time.Duration
}

// NewRateWorker creates a new RateWorker.
func NewRateWorker(refresher RateRefresher, interval time.Duration) *RateWorker {
	return &RateWorker{
		refresher: refresher,
		interval:  interval,
	}
}

// Run starts the rate worker loop. It blocks until the context is cancelled.
// A failed refresh is logged and retried on the next tick.
func (w *RateWorker) Run(ctx context.Context) {
	slog.Info("RateWorker: starting", "interval", w.interval)

	// Fetch immediately on startup
	w.refresh(ctx, "initial refresh")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("RateWorker: shutting down")
			return
		case <-ticker.C:
			w.refresh(ctx, "refresh")
		}
	}
}

func (w *RateWorker) refresh(ctx context.Context, what string) {
	if err := w.refresher.Refresh(ctx); err != nil {
		slog.Error("RateWorker: "+what+" failed", "error", err)
		return
	}
	slog.Info("RateWorker: " + what + " completed")
}
