// Package notify converts settlement results into delivery-agnostic
// notification events for the UI/alerting layer.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"farmer-payments-backend/internal/models"
)

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
)

// Event is the one-shot message describing a just-completed settlement.
type Event struct {
	Headline string   `json:"headline"`
	Body     string   `json:"body"`
	Severity Severity `json:"severity"`
}

// FromResult builds the notification for a settlement result. It is total:
// every result maps to exactly one event.
func FromResult(result models.SettlementResult) Event {
	severity := SeveritySuccess
	if result.FailedCount > 0 {
		severity = SeverityWarning
	}
	return Event{
		Headline: fmt.Sprintf("Payment processed for %s", result.SubmitterLabel),
		Body: fmt.Sprintf("%d paid, %d failed, total %s",
			result.PaidCount, result.FailedCount, result.TotalAmount.StringFixed(2)),
		Severity: severity,
	}
}

// Notifier receives one event per completed settlement.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// LogNotifier writes events to the structured log. It stands in for a real
// delivery channel.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, event Event) {
	slog.Info("settlement notification",
		"headline", event.Headline,
		"body", event.Body,
		"severity", event.Severity)
}
