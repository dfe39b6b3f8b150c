package repository

import (
	"context"

	"farmer-payments-backend/internal/errs"
	"farmer-payments-backend/internal/models"

	"gorm.io/gorm"
)

type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Append writes one activity event. The log is append-only; there is no
// update or delete path.
func (r *ActivityRepository) Append(ctx context.Context, event *models.ActivityEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return errs.Persistence("append activity", err)
	}
	return nil
}

// List returns recent activity events, newest first.
func (r *ActivityRepository) List(ctx context.Context, limit int) ([]models.ActivityEvent, error) {
	query := r.db.WithContext(ctx).Order("timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var events []models.ActivityEvent
	if err := query.Find(&events).Error; err != nil {
		return nil, errs.Persistence("list activity", err)
	}
	return events, nil
}
