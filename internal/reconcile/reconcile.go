// Package reconcile re-enqueues analyses whose scoring job was lost.
// Record creation and enqueue are not atomic: a crash between the two
// leaves a PENDING record no worker will ever see. The sweeper finds
// records that stayed PENDING past a grace period and sends a fresh job
// for each one; the worker-side idempotency gate makes the occasional
// duplicate harmless.
package reconcile

import (
	"context"
	"time"

	"pcos-backend/internal/analyses"
	"pcos-backend/internal/shared/metrics"
	"pcos-backend/internal/shared/telemetry"
)

// Sweeper periodically re-enqueues stale PENDING analyses.
type Sweeper struct {
	Analyses *analyses.Service
	Repo     analyses.Repo
	// Grace is how long a record may sit PENDING before it is considered
	// orphaned. Must comfortably exceed normal queue latency.
	Grace time.Duration
	// Interval between sweeps.
	Interval time.Duration
	// BatchSize caps how many records one sweep re-enqueues.
	BatchSize int
}

// Run sweeps on a ticker until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	grace := s.Grace
	if grace <= 0 {
		grace = 2 * time.Minute
	}
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx, grace); err != nil {
				telemetry.Error("reconcile.sweep_failed", map[string]any{"error": err.Error()})
			} else if n > 0 {
				telemetry.Info("reconcile.requeued", map[string]any{"count": n})
			}
		}
	}
}

// SweepOnce re-enqueues all PENDING analyses older than grace and
// returns how many it sent.
func (s *Sweeper) SweepOnce(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-grace)
	stale, err := s.Repo.ListStalePending(ctx, cutoff, s.BatchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, a := range stale {
		if err := s.Analyses.Requeue(ctx, a.ID); err != nil {
			telemetry.Error("reconcile.requeue_failed", map[string]any{
				"analysis_id": a.ID,
				"error":       err.Error(),
			})
			continue
		}
		metrics.IncRecordsRequeued()
		sent++
	}
	return sent, nil
}
