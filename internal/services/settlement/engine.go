package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"farmer-payments-backend/internal/errs"
	"farmer-payments-backend/internal/models"
	"farmer-payments-backend/internal/repository"
	"farmer-payments-backend/internal/services/audit"
	"farmer-payments-backend/internal/services/notify"

	"github.com/google/uuid"
)

// Progress is the in-memory view of a running settlement. Fraction is
// monotonically non-decreasing in [0,1] and reaches 1 exactly when the
// terminal result is available.
type Progress struct {
	Resolved int                      `json:"resolved"`
	Total    int                      `json:"total"`
	Fraction float64                  `json:"fraction"`
	Done     bool                     `json:"done"`
	Result   *models.SettlementResult `json:"result,omitempty"`
}

// Engine converts every pending line item of a processing batch into a
// terminal status and finalizes the batch exactly once.
type Engine struct {
	batches  *repository.BatchRepository
	policy   Policy
	audit    audit.Recorder
	notifier notify.Notifier
	progress sync.Map // uuid.UUID -> Progress
}

func NewEngine(batches *repository.BatchRepository, policy Policy, recorder audit.Recorder, notifier notify.Notifier) *Engine {
	return &Engine{
		batches:  batches,
		policy:   policy,
		audit:    recorder,
		notifier: notifier,
	}
}

// Progress reports the current settlement progress for a batch without
// touching the store. ok is false when no settlement has run this process.
func (e *Engine) Progress(batchID uuid.UUID) (Progress, bool) {
	val, ok := e.progress.Load(batchID)
	if !ok {
		return Progress{}, false
	}
	return val.(Progress), true
}

func (e *Engine) setProgress(batchID uuid.UUID, resolved, total int, result *models.SettlementResult) {
	p := Progress{Resolved: resolved, Total: total}
	if total > 0 {
		p.Fraction = float64(resolved) / float64(total)
	}
	if result != nil {
		p.Fraction = 1
		p.Done = true
		p.Result = result
	}
	e.progress.Store(batchID, p)
}

// Settle runs the settlement policy over every pending item of the batch and
// commits all terminal statuses, the settlement record, and the processed
// flip in a single transaction. Calling it on an already processed batch is a
// no-op returning the previously computed aggregate.
func (e *Engine) Settle(ctx context.Context, batchID uuid.UUID, actor models.Actor) (*models.SettlementResult, error) {
	batch, err := e.batches.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	if batch.Status == models.BatchStatusProcessed {
		return e.replayResult(ctx, batch)
	}
	if batch.Status != models.BatchStatusProcessing {
		// Defensive: the lifecycle manager's transition is the real guard.
		return nil, errs.InvalidState(batchID.String(), batch.Status.String(), "settle requires a processing batch")
	}

	items, err := e.batches.PendingLineItems(ctx, batchID)
	if err != nil {
		return nil, err
	}

	// Items already terminal only exist when a previous run was interrupted;
	// they keep their outcome and count toward the aggregate.
	paidBefore, failedBefore, err := e.batches.ResolvedCounts(ctx, batchID)
	if err != nil {
		return nil, err
	}
	paid, failed := int(paidBefore), int(failedBefore)

	e.setProgress(batchID, paid+failed, batch.LineCount, nil)

	resolved := make([]models.LineItem, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, errs.Persistence("settlement interrupted", err)
		}

		outcome, err := e.policy.Decide(ctx, item)
		if err != nil {
			// The batch stays processing; the recovery sweeper resumes it.
			return nil, fmt.Errorf("settlement policy on item %s: %w", item.ID, err)
		}

		if outcome.Paid {
			item.Status = models.LineItemStatusPaid
			paid++
		} else {
			item.Status = models.LineItemStatusFailed
			item.FailureReason = string(outcome.Reason)
			failed++
		}
		item.SettlementDetail = settlementDetail(item.Status, outcome.Reason)

		resolved = append(resolved, item)
		e.setProgress(batchID, paid+failed, batch.LineCount, nil)
	}

	record := &models.SettlementRecord{
		ID:             uuid.New(),
		BatchID:        batch.ID,
		SubmitterLabel: batch.SubmitterLabel,
		SourceLabel:    batch.SourceLabel,
		LineCount:      batch.LineCount,
		TotalAmount:    batch.TotalAmount,
		PaidCount:      paid,
		FailedCount:    failed,
		ProcessedAt:    time.Now().UTC(),
	}

	if err := e.batches.FinalizeSettlement(ctx, batch.ID, resolved, record); err != nil {
		return nil, err
	}

	result := &models.SettlementResult{
		BatchID:        batch.ID,
		SubmitterLabel: batch.SubmitterLabel,
		PaidCount:      paid,
		FailedCount:    failed,
		TotalAmount:    batch.TotalAmount,
	}
	e.setProgress(batchID, paid+failed, batch.LineCount, result)

	slog.Info("batch settled",
		"batch_id", batch.ID,
		"paid", paid,
		"failed", failed,
		"total_amount", batch.TotalAmount)

	e.audit.Record(ctx, actor, models.ActionProcessed,
		fmt.Sprintf("Processed '%s' for %s. Success: %d, Failed: %d.",
			batch.SourceLabel, batch.SubmitterLabel, paid, failed),
		map[string]any{"batch_id": batch.ID})

	e.notifier.Notify(ctx, notify.FromResult(*result))

	return result, nil
}

// replayResult rebuilds the aggregate of an already processed batch from its
// settlement record. No line item changes status.
func (e *Engine) replayResult(ctx context.Context, batch *models.Batch) (*models.SettlementResult, error) {
	record, err := e.batches.GetSettlementRecord(ctx, batch.ID)
	if err != nil {
		return nil, err
	}
	result := &models.SettlementResult{
		BatchID:        batch.ID,
		SubmitterLabel: record.SubmitterLabel,
		PaidCount:      record.PaidCount,
		FailedCount:    record.FailedCount,
		TotalAmount:    record.TotalAmount,
	}
	e.setProgress(batch.ID, record.LineCount, record.LineCount, result)
	return result, nil
}

func settlementDetail(status models.LineItemStatus, reason FailureReason) []byte {
	detail := map[string]any{
		"outcome":    status.String(),
		"decided_at": time.Now().UTC().Format(time.RFC3339),
	}
	if reason != "" {
		detail["reason"] = string(reason)
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return nil
	}
	return raw
}
