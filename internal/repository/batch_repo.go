package repository

import (
	"context"
	"errors"
	"time"

	"farmer-payments-backend/internal/errs"
	"farmer-payments-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BatchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Expose DB if needed
func (r *BatchRepository) DB() *gorm.DB {
	return r.db
}

// CreateBatchWithItems persists a new batch and its line items atomically.
// This is the sole creation path for a batch.
func (r *BatchRepository) CreateBatchWithItems(ctx context.Context, batch *models.Batch, items []models.LineItem) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(batch).Error; err != nil {
			return err
		}
		return tx.Create(&items).Error
	})
	if err != nil {
		return errs.Persistence("create batch", err)
	}
	return nil
}

// GetBatch fetches a single batch by id.
func (r *BatchRepository) GetBatch(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	var batch models.Batch
	err := r.db.WithContext(ctx).First(&batch, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("batch", id.String())
		}
		return nil, errs.Persistence("get batch", err)
	}
	return &batch, nil
}

// ListBatches returns batches newest first with optional status and submitter filters.
func (r *BatchRepository) ListBatches(ctx context.Context, status models.BatchStatus, submitterID uuid.UUID, limit int) ([]models.Batch, error) {
	query := r.db.WithContext(ctx).Model(&models.Batch{}).Order("created_at DESC")

	if status != "" {
		query = query.Where("status = ?", status)
	}
	if submitterID != uuid.Nil {
		query = query.Where("submitter_id = ?", submitterID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var batches []models.Batch
	if err := query.Find(&batches).Error; err != nil {
		return nil, errs.Persistence("list batches", err)
	}
	return batches, nil
}

// ListLineItems returns a batch's line items in submission order, with
// position-based cursor pagination.
func (r *BatchRepository) ListLineItems(ctx context.Context, batchID uuid.UUID, status models.LineItemStatus, cursor int, limit int) ([]models.LineItem, int, bool, error) {
	query := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("position ASC").
		Limit(limit + 1)

	if status != "" {
		query = query.Where("status = ?", status)
	}
	if cursor > 0 {
		query = query.Where("position >= ?", cursor)
	}

	var items []models.LineItem
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, false, errs.Persistence("list line items", err)
	}

	hasMore := false
	nextCursor := 0
	if len(items) > limit {
		hasMore = true
		nextCursor = items[limit].Position
		items = items[:limit]
	}
	return items, nextCursor, hasMore, nil
}

// PendingLineItems returns every still-pending item of a batch in submission
// order, so settlement outcomes are reproducible for a given policy seed.
func (r *BatchRepository) PendingLineItems(ctx context.Context, batchID uuid.UUID) ([]models.LineItem, error) {
	var items []models.LineItem
	err := r.db.WithContext(ctx).
		Where("batch_id = ? AND status = ?", batchID, models.LineItemStatusPending).
		Order("position ASC").
		Find(&items).Error
	if err != nil {
		return nil, errs.Persistence("pending line items", err)
	}
	return items, nil
}

// ResolvedCounts returns how many of a batch's items already carry a terminal
// status. Nonzero only when a previous settlement run was interrupted.
func (r *BatchRepository) ResolvedCounts(ctx context.Context, batchID uuid.UUID) (paid int64, failed int64, err error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err = r.db.WithContext(ctx).Model(&models.LineItem{}).
		Where("batch_id = ?", batchID).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return 0, 0, errs.Persistence("resolved counts", err)
	}
	for _, row := range rows {
		switch models.LineItemStatus(row.Status) {
		case models.LineItemStatusPaid:
			paid = row.Count
		case models.LineItemStatusFailed:
			failed = row.Count
		}
	}
	return paid, failed, nil
}

// UpdateReviewerNote overwrites the reviewer note. Allowed in any state.
func (r *BatchRepository) UpdateReviewerNote(ctx context.Context, id uuid.UUID, note string) error {
	res := r.db.WithContext(ctx).Model(&models.Batch{}).
		Where("id = ?", id).
		Update("reviewer_note", note)
	if res.Error != nil {
		return errs.Persistence("update reviewer note", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("batch", id.String())
	}
	return nil
}

// TransitionStatus performs the atomic compare-and-set on batch status. It is
// the single admission-control point for settlement: when callers race, the
// row predicate lets exactly one succeed.
func (r *BatchRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.BatchStatus) (bool, error) {
	updates := map[string]any{"status": to}
	if to == models.BatchStatusProcessing {
		now := time.Now().UTC()
		updates["settle_started_at"] = &now
	}

	res := r.db.WithContext(ctx).Model(&models.Batch{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, errs.Persistence("transition status", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// FinalizeSettlement commits every terminal line-item status, the settlement
// record, and the processed flip in one transaction. A concurrent reader never
// observes a processed batch with unresolved items.
func (r *BatchRepository) FinalizeSettlement(ctx context.Context, batchID uuid.UUID, resolved []models.LineItem, record *models.SettlementRecord) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range resolved {
			item := &resolved[i]
			// The status predicate keeps already-terminal items immutable.
			res := tx.Model(&models.LineItem{}).
				Where("id = ? AND status = ?", item.ID, models.LineItemStatusPending).
				Updates(map[string]any{
					"status":            item.Status,
					"failure_reason":    item.FailureReason,
					"settlement_detail": item.SettlementDetail,
				})
			if res.Error != nil {
				return res.Error
			}
		}

		if err := tx.Create(record).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Batch{}).
			Where("id = ? AND status = ?", batchID, models.BatchStatusProcessing).
			Updates(map[string]any{
				"status":       models.BatchStatusProcessed,
				"processed_at": record.ProcessedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.New("batch left processing before finalize")
		}
		return nil
	})
	if err != nil {
		return errs.Persistence("finalize settlement", err)
	}
	return nil
}

// GetSettlementRecord fetches the archival record for a processed batch.
func (r *BatchRepository) GetSettlementRecord(ctx context.Context, batchID uuid.UUID) (*models.SettlementRecord, error) {
	var record models.SettlementRecord
	err := r.db.WithContext(ctx).First(&record, "batch_id = ?", batchID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("settlement record", batchID.String())
		}
		return nil, errs.Persistence("get settlement record", err)
	}
	return &record, nil
}

// ListSettlementRecords returns settlement history, newest first.
func (r *BatchRepository) ListSettlementRecords(ctx context.Context, limit int) ([]models.SettlementRecord, error) {
	query := r.db.WithContext(ctx).Order("processed_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var records []models.SettlementRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, errs.Persistence("list settlement records", err)
	}
	return records, nil
}

// StuckProcessing returns batches that entered processing before the cutoff
// and never finalized.
func (r *BatchRepository) StuckProcessing(ctx context.Context, before time.Time) ([]models.Batch, error) {
	var batches []models.Batch
	err := r.db.WithContext(ctx).
		Where("status = ? AND settle_started_at < ?", models.BatchStatusProcessing, before).
		Find(&batches).Error
	if err != nil {
		return nil, errs.Persistence("stuck processing", err)
	}
	return batches, nil
}
