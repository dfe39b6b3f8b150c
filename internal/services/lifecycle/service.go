// Package lifecycle validates batch submissions and enforces the legal status
// transitions: pending_approval -> processing -> processed.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"farmer-payments-backend/internal/errs"
	"farmer-payments-backend/internal/models"
	"farmer-payments-backend/internal/repository"
	"farmer-payments-backend/internal/services/audit"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItemInput is one validated payment instruction handed in by the caller.
type LineItemInput struct {
	PayeeName    string          `json:"payee_name"`
	PayeeBank    string          `json:"payee_bank"`
	PayeeAccount string          `json:"payee_account"`
	Amount       decimal.Decimal `json:"amount"`
}

type Service struct {
	batches *repository.BatchRepository
	audit   audit.Recorder
}

func NewService(batches *repository.BatchRepository, recorder audit.Recorder) *Service {
	return &Service{batches: batches, audit: recorder}
}

// Submit validates and persists a new batch in pending_approval with its line
// items in pending, and returns the created batch. Nothing is persisted when
// validation fails.
func (s *Service) Submit(ctx context.Context, actor models.Actor, sourceLabel string, items []LineItemInput, note string) (*models.Batch, error) {
	if len(items) == 0 {
		return nil, errs.Validationf("submission contains no line items")
	}

	total := decimal.Zero
	lineItems := make([]models.LineItem, 0, len(items))
	for i, in := range items {
		if strings.TrimSpace(in.PayeeName) == "" {
			return nil, errs.Validationf("line %d: payee_name is required", i+1)
		}
		if strings.TrimSpace(in.PayeeBank) == "" {
			return nil, errs.Validationf("line %d: payee_bank is required", i+1)
		}
		if strings.TrimSpace(in.PayeeAccount) == "" {
			return nil, errs.Validationf("line %d: payee_account is required", i+1)
		}
		if !in.Amount.IsPositive() {
			return nil, errs.Validationf("line %d: amount must be positive, got %s", i+1, in.Amount)
		}

		total = total.Add(in.Amount)
		lineItems = append(lineItems, models.LineItem{
			ID:           uuid.New(),
			Position:     i + 1,
			PayeeName:    in.PayeeName,
			PayeeBank:    in.PayeeBank,
			PayeeAccount: in.PayeeAccount,
			Amount:       in.Amount,
			Status:       models.LineItemStatusPending,
			CreatedAt:    time.Now().UTC(),
		})
	}

	batch := &models.Batch{
		ID:             uuid.New(),
		SubmitterID:    actor.ID,
		SubmitterLabel: actor.Label,
		SourceLabel:    sourceLabel,
		LineCount:      len(lineItems),
		TotalAmount:    total,
		Status:         models.BatchStatusPendingApproval,
		SubmitterNote:  note,
		CreatedAt:      time.Now().UTC(),
	}
	for i := range lineItems {
		lineItems[i].BatchID = batch.ID
	}

	if err := s.batches.CreateBatchWithItems(ctx, batch, lineItems); err != nil {
		return nil, err
	}

	slog.Info("batch submitted",
		"batch_id", batch.ID,
		"submitter", actor.Label,
		"line_count", batch.LineCount,
		"total_amount", batch.TotalAmount)

	s.audit.Record(ctx, actor, models.ActionSubmission,
		fmt.Sprintf("Submitted '%s' with %d records.", sourceLabel, batch.LineCount),
		map[string]any{"batch_id": batch.ID, "total_amount": batch.TotalAmount})

	return batch, nil
}

// SetReviewerNote overwrites the reviewer note on a batch. No status change.
func (s *Service) SetReviewerNote(ctx context.Context, batchID uuid.UUID, note string, actor models.Actor) error {
	if err := s.batches.UpdateReviewerNote(ctx, batchID, note); err != nil {
		return err
	}
	s.audit.Record(ctx, actor, models.ActionReview,
		fmt.Sprintf("Updated reviewer note on batch %s.", batchID),
		nil)
	return nil
}

// BeginSettlement moves a batch from pending_approval to processing. The
// transition is a single compare-and-set, so at most one concurrent caller
// wins; the rest observe InvalidStateError.
func (s *Service) BeginSettlement(ctx context.Context, batchID uuid.UUID, actor models.Actor) (*models.Batch, error) {
	batch, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	ok, err := s.batches.TransitionStatus(ctx, batchID, models.BatchStatusPendingApproval, models.BatchStatusProcessing)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race or the batch already moved on. Re-read for the
		// current status so the error names it.
		current, readErr := s.batches.GetBatch(ctx, batchID)
		status := batch.Status
		if readErr == nil {
			status = current.Status
		}
		return nil, errs.InvalidState(batchID.String(), status.String(), "settlement may only begin from pending_approval")
	}

	slog.Info("batch settlement started", "batch_id", batchID, "actor", actor.Label)
	return s.batches.GetBatch(ctx, batchID)
}
