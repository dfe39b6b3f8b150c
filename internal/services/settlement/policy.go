// Package settlement resolves every pending line item of a processing batch
// to a terminal status through a pluggable policy, then finalizes the batch
// exactly once.
package settlement

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"farmer-payments-backend/internal/models"
)

// FailureReason is the fixed set of reasons the simulated rail can report.
type FailureReason string

const (
	ReasonInvalidAccount FailureReason = "invalid_account"
	ReasonBankError      FailureReason = "bank_error"
	ReasonNameMismatch   FailureReason = "name_mismatch"
)

// FailureReasons lists every reason the default policy may pick.
var FailureReasons = []FailureReason{ReasonInvalidAccount, ReasonBankError, ReasonNameMismatch}

// Outcome is the terminal decision for a single line item.
type Outcome struct {
	Paid   bool
	Reason FailureReason
}

func Paid() Outcome { return Outcome{Paid: true} }

func Failed(reason FailureReason) Outcome { return Outcome{Reason: reason} }

// Policy decides the settlement outcome for one line item. Implementations
// may block (a real rail) or return immediately (the simulated one); the
// engine treats both uniformly.
type Policy interface {
	Decide(ctx context.Context, item models.LineItem) (Outcome, error)
}

// PolicyFunc adapts a plain function to the Policy interface.
type PolicyFunc func(ctx context.Context, item models.LineItem) (Outcome, error)

func (f PolicyFunc) Decide(ctx context.Context, item models.LineItem) (Outcome, error) {
	return f(ctx, item)
}

// RailPolicy models a realistic payment rail: each item succeeds with the
// configured probability, and failures draw a reason uniformly from
// FailureReasons.
type RailPolicy struct {
	successRate float64
	rng         *rand.Rand
	mu          sync.Mutex
}

// NewRailPolicy builds the production policy with a time-based seed.
func NewRailPolicy(successRate float64) *RailPolicy {
	return NewSeededRailPolicy(successRate, time.Now().UnixNano())
}

// NewSeededRailPolicy builds a rail policy with an explicit seed so outcomes
// are reproducible.
func NewSeededRailPolicy(successRate float64, seed int64) *RailPolicy {
	return &RailPolicy{
		successRate: successRate,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

func (p *RailPolicy) Decide(_ context.Context, _ models.LineItem) (Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rng.Float64() < p.successRate {
		return Paid(), nil
	}
	return Failed(FailureReasons[p.rng.Intn(len(FailureReasons))]), nil
}

// AlwaysPaid approves every item. Intended for tests.
func AlwaysPaid() Policy {
	return PolicyFunc(func(context.Context, models.LineItem) (Outcome, error) {
		return Paid(), nil
	})
}

// AlwaysFailed rejects every item with the given reason. Intended for tests.
func AlwaysFailed(reason FailureReason) Policy {
	return PolicyFunc(func(context.Context, models.LineItem) (Outcome, error) {
		return Failed(reason), nil
	})
}

// FailAtPosition rejects only the item at the given submission position.
// Intended for tests.
func FailAtPosition(position int, reason FailureReason) Policy {
	return PolicyFunc(func(_ context.Context, item models.LineItem) (Outcome, error) {
		if item.Position == position {
			return Failed(reason), nil
		}
		return Paid(), nil
	})
}
