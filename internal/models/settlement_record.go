package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementRecord is the archival projection of a processed batch. Written
// exactly once when the batch transitions to processed, never updated.
type SettlementRecord struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	BatchID        uuid.UUID       `gorm:"type:uuid;uniqueIndex" json:"batch_id"`
	SubmitterLabel string          `json:"submitter_label"`
	SourceLabel    string          `json:"source_label"`
	LineCount      int             `json:"line_count"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(18,2)" json:"total_amount"`
	PaidCount      int             `json:"paid_count"`
	FailedCount    int             `json:"failed_count"`
	ProcessedAt    time.Time       `json:"processed_at"`
}

// SettlementResult is the aggregate handed back to the caller when a batch
// finishes settling.
type SettlementResult struct {
	BatchID        uuid.UUID       `json:"batch_id"`
	SubmitterLabel string          `json:"submitter_label"`
	PaidCount      int             `json:"paid_count"`
	FailedCount    int             `json:"failed_count"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}
