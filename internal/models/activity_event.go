package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ActivityAction enumerates the actions the audit trail records.
type ActivityAction string

const (
	ActionLogin      ActivityAction = "Login"
	ActionSubmission ActivityAction = "Submission"
	ActionReview     ActivityAction = "Review"
	ActionProcessed  ActivityAction = "Processed"
	ActionRecovery   ActivityAction = "Recovery"
)

// Actor is the opaque identity performing an operation. Authentication is
// out of scope; callers supply it and the core trusts it.
type Actor struct {
	ID    uuid.UUID `json:"id"`
	Label string    `json:"label"`
}

// ActivityEvent is one append-only audit trail entry.
type ActivityEvent struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Timestamp  time.Time      `gorm:"index" json:"timestamp"`
	ActorID    uuid.UUID      `gorm:"type:uuid;index" json:"actor_id"`
	ActorLabel string         `json:"actor_label"`
	Action     ActivityAction `gorm:"type:varchar(20);index" json:"action"`
	Details    string         `json:"details"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
}
