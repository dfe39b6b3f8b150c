package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchStatus is the closed set of states a submission batch moves through.
type BatchStatus string

const (
	BatchStatusPendingApproval BatchStatus = "pending_approval"
	BatchStatusProcessing      BatchStatus = "processing"
	BatchStatusProcessed       BatchStatus = "processed"
)

func (s BatchStatus) String() string { return string(s) }

func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusPendingApproval, BatchStatusProcessing, BatchStatusProcessed:
		return true
	}
	return false
}

// Batch is one bulk submission of payment instructions from one organization.
// TotalAmount and LineCount are fixed at submission time; settlement never
// recomputes them.
type Batch struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SubmitterID     uuid.UUID       `gorm:"type:uuid;index" json:"submitter_id"`
	SubmitterLabel  string          `json:"submitter_label"`
	SourceLabel     string          `json:"source_label"`
	LineCount       int             `json:"line_count"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric(18,2)" json:"total_amount"`
	Status          BatchStatus     `gorm:"type:varchar(20);index" json:"status"`
	SubmitterNote   string          `json:"submitter_note,omitempty"`
	ReviewerNote    string          `json:"reviewer_note,omitempty"`
	SettleStartedAt *time.Time      `json:"settle_started_at,omitempty"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
