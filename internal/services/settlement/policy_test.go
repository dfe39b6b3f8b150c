package settlement

import (
	"context"
	"testing"

	"farmer-payments-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRailPolicySeedReproducible(t *testing.T) {
	first := NewSeededRailPolicy(0.5, 42)
	second := NewSeededRailPolicy(0.5, 42)

	for i := 0; i < 50; i++ {
		a, err := first.Decide(context.Background(), models.LineItem{})
		require.NoError(t, err)
		b, err := second.Decide(context.Background(), models.LineItem{})
		require.NoError(t, err)
		assert.Equal(t, a, b, "decision %d diverged", i)
	}
}

func TestRailPolicyRateOneAlwaysPays(t *testing.T) {
	policy := NewSeededRailPolicy(1.0, 1)

	for i := 0; i < 100; i++ {
		outcome, err := policy.Decide(context.Background(), models.LineItem{})
		require.NoError(t, err)
		assert.True(t, outcome.Paid)
	}
}

func TestRailPolicyRateZeroAlwaysFails(t *testing.T) {
	policy := NewSeededRailPolicy(0, 1)

	for i := 0; i < 100; i++ {
		outcome, err := policy.Decide(context.Background(), models.LineItem{})
		require.NoError(t, err)
		assert.False(t, outcome.Paid)
		assert.Contains(t, FailureReasons, outcome.Reason)
	}
}

func TestDeterministicPolicies(t *testing.T) {
	outcome, err := AlwaysPaid().Decide(context.Background(), models.LineItem{Position: 7})
	require.NoError(t, err)
	assert.True(t, outcome.Paid)

	outcome, err = AlwaysFailed(ReasonBankError).Decide(context.Background(), models.LineItem{})
	require.NoError(t, err)
	assert.False(t, outcome.Paid)
	assert.Equal(t, ReasonBankError, outcome.Reason)

	policy := FailAtPosition(3, ReasonNameMismatch)
	outcome, err = policy.Decide(context.Background(), models.LineItem{Position: 2})
	require.NoError(t, err)
	assert.True(t, outcome.Paid)
	outcome, err = policy.Decide(context.Background(), models.LineItem{Position: 3})
	require.NoError(t, err)
	assert.Equal(t, ReasonNameMismatch, outcome.Reason)
}
