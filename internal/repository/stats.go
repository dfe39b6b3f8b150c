package repository

import (
	"context"

	"farmer-payments-backend/internal/errs"
	"farmer-payments-backend/internal/models"

	"github.com/google/uuid"
)

type BatchStats struct {
	Total       int64   `json:"total"`
	TotalAmount float64 `json:"total_amount"`

	PendingCount int64   `json:"pending_count"`
	PendingSum   float64 `json:"pending_sum"`

	PaidCount int64   `json:"paid_count"`
	PaidSum   float64 `json:"paid_sum"`

	FailedCount int64   `json:"failed_count"`
	FailedSum   float64 `json:"failed_sum"`
}

type DashboardStats struct {
	TotalPaidAmount     float64 `json:"total_paid_amount"`
	PaidItemCount       int64   `json:"paid_item_count"`
	PendingBatchCount   int64   `json:"pending_batch_count"`
	ProcessedBatchCount int64   `json:"processed_batch_count"`
}

type statRow struct {
	Status string
	Count  int64
	Sum    float64
}

// GetBatchStats aggregates a batch's line items by status.
func (r *BatchRepository) GetBatchStats(ctx context.Context, batchID uuid.UUID) (BatchStats, error) {
	var stats BatchStats
	var rows []statRow

	err := r.db.WithContext(ctx).Model(&models.LineItem{}).
		Where("batch_id = ?", batchID).
		Select("status, COUNT(*) as count, COALESCE(SUM(amount),0) as sum").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return stats, errs.Persistence("batch stats", err)
	}

	for _, row := range rows {
		stats.Total += row.Count
		stats.TotalAmount += row.Sum

		switch models.LineItemStatus(row.Status) {
		case models.LineItemStatusPending:
			stats.PendingCount = row.Count
			stats.PendingSum = row.Sum
		case models.LineItemStatusPaid:
			stats.PaidCount = row.Count
			stats.PaidSum = row.Sum
		case models.LineItemStatusFailed:
			stats.FailedCount = row.Count
			stats.FailedSum = row.Sum
		}
	}
	return stats, nil
}

// GetDashboardStats computes the admin dashboard KPI figures.
func (r *BatchRepository) GetDashboardStats(ctx context.Context) (DashboardStats, error) {
	var stats DashboardStats

	err := r.db.WithContext(ctx).Model(&models.LineItem{}).
		Where("status = ?", models.LineItemStatusPaid).
		Select("COALESCE(SUM(amount),0) as total_paid_amount, COUNT(*) as paid_item_count").
		Scan(&stats).Error
	if err != nil {
		return stats, errs.Persistence("dashboard stats", err)
	}

	err = r.db.WithContext(ctx).Model(&models.Batch{}).
		Where("status = ?", models.BatchStatusPendingApproval).
		Count(&stats.PendingBatchCount).Error
	if err != nil {
		return stats, errs.Persistence("dashboard stats", err)
	}

	err = r.db.WithContext(ctx).Model(&models.Batch{}).
		Where("status = ?", models.BatchStatusProcessed).
		Count(&stats.ProcessedBatchCount).Error
	if err != nil {
		return stats, errs.Persistence("dashboard stats", err)
	}
	return stats, nil
}
