package settlement

import (
	"context"
	"sync"
	"testing"
	"time"

	"farmer-payments-backend/internal/errs"
	"farmer-payments-backend/internal/models"
	"farmer-payments-backend/internal/repository"
	"farmer-payments-backend/internal/services/audit"
	"farmer-payments-backend/internal/services/notify"
	"farmer-payments-backend/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type capturingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *capturingNotifier) Notify(_ context.Context, event notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *capturingNotifier) all() []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Event(nil), n.events...)
}

type engineFixture struct {
	db       *gorm.DB
	batches  *repository.BatchRepository
	activity *repository.ActivityRepository
	notifier *capturingNotifier
	actor    models.Actor
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	db := testutil.NewDB(t)
	return &engineFixture{
		db:       db,
		batches:  repository.NewBatchRepository(db),
		activity: repository.NewActivityRepository(db),
		notifier: &capturingNotifier{},
		actor:    models.Actor{ID: uuid.New(), Label: "Module Admin"},
	}
}

func (f *engineFixture) engine(t *testing.T, policy Policy) *Engine {
	t.Helper()
	return NewEngine(f.batches, policy, audit.NewStoreRecorder(f.activity), f.notifier)
}

// seedBatch persists a pending_approval batch with the given amounts.
func (f *engineFixture) seedBatch(t *testing.T, amounts ...int64) *models.Batch {
	t.Helper()

	total := decimal.Zero
	batchID := uuid.New()
	items := make([]models.LineItem, 0, len(amounts))
	for i, raw := range amounts {
		amount := decimal.NewFromInt(raw)
		total = total.Add(amount)
		items = append(items, models.LineItem{
			ID:           uuid.New(),
			BatchID:      batchID,
			Position:     i + 1,
			PayeeName:    "Juma Mushi",
			PayeeBank:    "CRDB",
			PayeeAccount: "0152000001",
			Amount:       amount,
			Status:       models.LineItemStatusPending,
			CreatedAt:    time.Now().UTC(),
		})
	}

	batch := &models.Batch{
		ID:             batchID,
		SubmitterID:    uuid.New(),
		SubmitterLabel: "Mbeya Coffee Union",
		SourceLabel:    "payments.csv",
		LineCount:      len(items),
		TotalAmount:    total,
		Status:         models.BatchStatusPendingApproval,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, f.batches.CreateBatchWithItems(context.Background(), batch, items))
	return batch
}

// seedProcessingBatch also performs the admission transition.
func (f *engineFixture) seedProcessingBatch(t *testing.T, amounts ...int64) *models.Batch {
	t.Helper()
	batch := f.seedBatch(t, amounts...)
	ok, err := f.batches.TransitionStatus(context.Background(), batch.ID, models.BatchStatusPendingApproval, models.BatchStatusProcessing)
	require.NoError(t, err)
	require.True(t, ok)
	return batch
}

func TestSettleAllPaid(t *testing.T) {
	f := newEngineFixture(t)
	engine := f.engine(t, AlwaysPaid())
	batch := f.seedProcessingBatch(t, 1000, 2500, 750)

	result, err := engine.Settle(context.Background(), batch.ID, f.actor)
	require.NoError(t, err)

	assert.Equal(t, batch.ID, result.BatchID)
	assert.Equal(t, 3, result.PaidCount)
	assert.Equal(t, 0, result.FailedCount)
	assert.True(t, result.TotalAmount.Equal(decimal.NewFromInt(4250)), "total %s", result.TotalAmount)

	got, err := f.batches.GetBatch(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusProcessed, got.Status)

	items, _, _, err := f.batches.ListLineItems(context.Background(), batch.ID, "", 0, 10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, item := range items {
		assert.Equal(t, models.LineItemStatusPaid, item.Status)
		assert.Empty(t, item.FailureReason)
	}

	record, err := f.batches.GetSettlementRecord(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, record.LineCount)
	assert.True(t, record.TotalAmount.Equal(decimal.NewFromInt(4250)))

	events := f.notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, notify.SeveritySuccess, events[0].Severity)
}

func TestSettleFailAtPosition(t *testing.T) {
	f := newEngineFixture(t)
	engine := f.engine(t, FailAtPosition(2, ReasonNameMismatch))
	batch := f.seedProcessingBatch(t, 1000, 2500, 750)

	result, err := engine.Settle(context.Background(), batch.ID, f.actor)
	require.NoError(t, err)
	assert.Equal(t, 2, result.PaidCount)
	assert.Equal(t, 1, result.FailedCount)

	items, _, _, err := f.batches.ListLineItems(context.Background(), batch.ID, "", 0, 10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, item := range items {
		if item.Position == 2 {
			assert.Equal(t, models.LineItemStatusFailed, item.Status)
			assert.Contains(t, []string{
				string(ReasonInvalidAccount),
				string(ReasonBankError),
				string(ReasonNameMismatch),
			}, item.FailureReason)
		} else {
			assert.Equal(t, models.LineItemStatusPaid, item.Status)
		}
	}

	events := f.notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, notify.SeverityWarning, events[0].Severity)
}

func TestSettleIdempotent(t *testing.T) {
	f := newEngineFixture(t)
	engine := f.engine(t, FailAtPosition(1, ReasonBankError))
	batch := f.seedProcessingBatch(t, 1000, 2500)

	first, err := engine.Settle(context.Background(), batch.ID, f.actor)
	require.NoError(t, err)

	// Re-settling with the opposite policy must change nothing.
	flipped := f.engine(t, AlwaysPaid())
	second, err := flipped.Settle(context.Background(), batch.ID, f.actor)
	require.NoError(t, err)

	assert.Equal(t, first.BatchID, second.BatchID)
	assert.Equal(t, first.PaidCount, second.PaidCount)
	assert.Equal(t, first.FailedCount, second.FailedCount)
	assert.True(t, first.TotalAmount.Equal(second.TotalAmount))

	items, _, _, err := f.batches.ListLineItems(context.Background(), batch.ID, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, models.LineItemStatusFailed, items[0].Status)
	assert.Equal(t, models.LineItemStatusPaid, items[1].Status)

	var records int64
	require.NoError(t, f.db.Model(&models.SettlementRecord{}).Count(&records).Error)
	assert.EqualValues(t, 1, records)
}

func TestSettleRequiresProcessing(t *testing.T) {
	f := newEngineFixture(t)
	engine := f.engine(t, AlwaysPaid())
	batch := f.seedBatch(t, 1000)

	_, err := engine.Settle(context.Background(), batch.ID, f.actor)
	var invalidState *errs.InvalidStateError
	require.ErrorAs(t, err, &invalidState)
}

func TestSettleUnknownBatch(t *testing.T) {
	f := newEngineFixture(t)
	engine := f.engine(t, AlwaysPaid())

	_, err := engine.Settle(context.Background(), uuid.New(), f.actor)
	var notFound *errs.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestSettleProgressMonotonic(t *testing.T) {
	f := newEngineFixture(t)
	batch := f.seedProcessingBatch(t, 100, 200, 300, 400)

	var engine *Engine
	var fractions []float64
	policy := PolicyFunc(func(_ context.Context, _ models.LineItem) (Outcome, error) {
		if progress, ok := engine.Progress(batch.ID); ok {
			fractions = append(fractions, progress.Fraction)
		}
		return Paid(), nil
	})
	engine = f.engine(t, policy)

	result, err := engine.Settle(context.Background(), batch.ID, f.actor)
	require.NoError(t, err)

	require.Len(t, fractions, 4)
	last := -1.0
	for _, fraction := range fractions {
		assert.GreaterOrEqual(t, fraction, last)
		assert.LessOrEqual(t, fraction, 1.0)
		last = fraction
	}

	final, ok := engine.Progress(batch.ID)
	require.True(t, ok)
	assert.True(t, final.Done)
	assert.Equal(t, 1.0, final.Fraction)
	require.NotNil(t, final.Result)
	assert.Equal(t, result, final.Result)
}

func TestSettleFailedItemsKeepSubmittedTotal(t *testing.T) {
	f := newEngineFixture(t)
	engine := f.engine(t, AlwaysFailed(ReasonInvalidAccount))
	batch := f.seedProcessingBatch(t, 1000, 2500, 750)

	result, err := engine.Settle(context.Background(), batch.ID, f.actor)
	require.NoError(t, err)
	assert.Equal(t, 0, result.PaidCount)
	assert.Equal(t, 3, result.FailedCount)
	// Failures are reported separately, never netted out of the total.
	assert.True(t, result.TotalAmount.Equal(decimal.NewFromInt(4250)))
}

func TestResumeStuckBatch(t *testing.T) {
	f := newEngineFixture(t)
	engine := f.engine(t, AlwaysPaid())
	batch := f.seedProcessingBatch(t, 1000, 2500, 750)

	// Simulate a run that resolved one item and then died before finalize.
	require.NoError(t, f.db.Model(&models.LineItem{}).
		Where("batch_id = ? AND position = ?", batch.ID, 1).
		Updates(map[string]any{
			"status":         models.LineItemStatusFailed,
			"failure_reason": string(ReasonBankError),
		}).Error)
	old := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, f.db.Model(&models.Batch{}).
		Where("id = ?", batch.ID).
		Update("settle_started_at", &old).Error)

	sweeper := NewSweeper(f.batches, engine, audit.NewStoreRecorder(f.activity), 10*time.Minute, time.Minute)
	require.NoError(t, sweeper.ResumeStuck(context.Background()))

	got, err := f.batches.GetBatch(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusProcessed, got.Status)

	record, err := f.batches.GetSettlementRecord(context.Background(), batch.ID)
	require.NoError(t, err)
	// The pre-resolved failure keeps its outcome and counts in the aggregate.
	assert.Equal(t, 2, record.PaidCount)
	assert.Equal(t, 1, record.FailedCount)

	items, _, _, err := f.batches.ListLineItems(context.Background(), batch.ID, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, models.LineItemStatusFailed, items[0].Status)
}
