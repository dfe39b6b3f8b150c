package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// LineItemStatus is the per-instruction settlement state. pending is the only
// non-terminal value; paid and failed are immutable once written.
type LineItemStatus string

const (
	LineItemStatusPending LineItemStatus = "pending"
	LineItemStatusPaid    LineItemStatus = "paid"
	LineItemStatusFailed  LineItemStatus = "failed"
)

func (s LineItemStatus) String() string { return string(s) }

func (s LineItemStatus) Terminal() bool {
	return s == LineItemStatusPaid || s == LineItemStatusFailed
}

// LineItem is one farmer payment instruction within a batch. Position records
// the order the item appeared in the submitted sequence.
type LineItem struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	BatchID          uuid.UUID       `gorm:"type:uuid;index" json:"batch_id"`
	Position         int             `gorm:"index" json:"position"`
	PayeeName        string          `json:"payee_name"`
	PayeeBank        string          `json:"payee_bank"`
	PayeeAccount     string          `json:"payee_account"`
	Amount           decimal.Decimal `gorm:"type:numeric(18,2)" json:"amount"`
	Status           LineItemStatus  `gorm:"type:varchar(10);index" json:"status"`
	FailureReason    string          `json:"failure_reason,omitempty"`
	SettlementDetail datatypes.JSON  `json:"settlement_detail,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}
