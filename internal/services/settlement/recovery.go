package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"farmer-payments-backend/internal/models"
	"farmer-payments-backend/internal/repository"
	"farmer-payments-backend/internal/services/audit"

	"github.com/google/uuid"
)

var systemActor = models.Actor{ID: uuid.Nil, Label: "system"}

// Sweeper detects batches stuck in processing beyond the timeout and resumes
// their settlement. Resuming is safe: settlement only touches still-pending
// items, so anything a previous run resolved keeps its outcome.
type Sweeper struct {
	batches  *repository.BatchRepository
	engine   *Engine
	audit    audit.Recorder
	timeout  time.Duration
	interval time.Duration
}

func NewSweeper(batches *repository.BatchRepository, engine *Engine, recorder audit.Recorder, timeout, interval time.Duration) *Sweeper {
	return &Sweeper{
		batches:  batches,
		engine:   engine,
		audit:    recorder,
		timeout:  timeout,
		interval: interval,
	}
}

// Run sweeps on a fixed interval until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.ResumeStuck(ctx); err != nil {
				slog.Error("stuck batch sweep failed", "error", err)
			}
		}
	}
}

// ResumeStuck re-runs settlement for every batch that entered processing
// before the timeout cutoff and never finalized.
func (s *Sweeper) ResumeStuck(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.timeout)
	stuck, err := s.batches.StuckProcessing(ctx, cutoff)
	if err != nil {
		return err
	}

	var firstErr error
	for _, batch := range stuck {
		slog.Warn("resuming stuck batch",
			"batch_id", batch.ID,
			"settle_started_at", batch.SettleStartedAt)

		s.audit.Record(ctx, systemActor, models.ActionRecovery,
			fmt.Sprintf("Resuming batch %s stuck in processing.", batch.ID),
			map[string]any{"batch_id": batch.ID})

		if _, err := s.engine.Settle(ctx, batch.ID, systemActor); err != nil {
			slog.Error("failed to resume stuck batch", "batch_id", batch.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
