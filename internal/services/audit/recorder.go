// Package audit emits structured activity events to the append-only audit
// trail. It is a collaborator of the lifecycle and settlement services; a
// failed write is logged but never fails the operation that produced it.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"farmer-payments-backend/internal/models"
	"farmer-payments-backend/internal/repository"

	"github.com/google/uuid"
)

// Recorder receives activity events from every mutating core operation.
type Recorder interface {
	Record(ctx context.Context, actor models.Actor, action models.ActivityAction, details string, metadata map[string]any)
}

// StoreRecorder appends events to the activity relation.
type StoreRecorder struct {
	activity *repository.ActivityRepository
}

func NewStoreRecorder(activity *repository.ActivityRepository) *StoreRecorder {
	return &StoreRecorder{activity: activity}
}

func (r *StoreRecorder) Record(ctx context.Context, actor models.Actor, action models.ActivityAction, details string, metadata map[string]any) {
	event := &models.ActivityEvent{
		ID:         uuid.New(),
		Timestamp:  time.Now().UTC(),
		ActorID:    actor.ID,
		ActorLabel: actor.Label,
		Action:     action,
		Details:    details,
	}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err == nil {
			event.Metadata = raw
		}
	}

	if err := r.activity.Append(ctx, event); err != nil {
		slog.Error("failed to record activity", "action", action, "actor", actor.Label, "error", err)
	}
}
