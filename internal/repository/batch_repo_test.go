package repository

import (
	"context"
	"testing"
	"time"

	"farmer-payments-backend/internal/errs"
	"farmer-payments-backend/internal/models"
	"farmer-payments-backend/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedBatch(t *testing.T, repo *BatchRepository, amounts ...int64) *models.Batch {
	t.Helper()

	total := decimal.Zero
	items := make([]models.LineItem, 0, len(amounts))
	batchID := uuid.New()
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
		SubmitterLabel: "Kilimanjaro Cooperative Union",
		SourceLabel:    "payments.csv",
		LineCount:      len(items),
		TotalAmount:    total,
		Status:         models.BatchStatusPendingApproval,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, repo.CreateBatchWithItems(context.Background(), batch, items))
	return batch
}

func TestCreateAndGetBatch(t *testing.T) {
	repo := NewBatchRepository(testutil.NewDB(t))
	batch := seedBatch(t, repo, 1000, 2500, 750)

	got, err := repo.GetBatch(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusPendingApproval, got.Status)
	assert.Equal(t, 3, got.LineCount)
	assert.True(t, got.TotalAmount.Equal(decimal.NewFromInt(4250)))
}

func TestGetBatchNotFound(t *testing.T) {
	repo := NewBatchRepository(testutil.NewDB(t))

	_, err := repo.GetBatch(context.Background(), uuid.New())
	var notFound *errs.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestTransitionStatusCompareAndSet(t *testing.T) {
	repo := NewBatchRepository(testutil.NewDB(t))
	batch := seedBatch(t, repo, 500)

	ok, err := repo.TransitionStatus(context.Background(), batch.ID, models.BatchStatusPendingApproval, models.BatchStatusProcessing)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second attempt loses: the predicate no longer matches.
	ok, err = repo.TransitionStatus(context.Background(), batch.ID, models.BatchStatusPendingApproval, models.BatchStatusProcessing)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetBatch(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusProcessing, got.Status)
	require.NotNil(t, got.SettleStartedAt)
}

func TestUpdateReviewerNote(t *testing.T) {
	repo := NewBatchRepository(testutil.NewDB(t))
	batch := seedBatch(t, repo, 500)

	require.NoError(t, repo.UpdateReviewerNote(context.Background(), batch.ID, "looks good"))

	got, err := repo.GetBatch(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.Equal(t, "looks good", got.ReviewerNote)

	err = repo.UpdateReviewerNote(context.Background(), uuid.New(), "nope")
	var notFound *errs.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestListLineItemsCursor(t *testing.T) {
	repo := NewBatchRepository(testutil.NewDB(t))
	batch := seedBatch(t, repo, 100, 200, 300, 400, 500)

	items, nextCursor, hasMore, err := repo.ListLineItems(context.Background(), batch.ID, "", 0, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, hasMore)
	assert.Equal(t, 1, items[0].Position)
	assert.Equal(t, 2, items[1].Position)

	items, _, hasMore, err = repo.ListLineItems(context.Background(), batch.ID, "", nextCursor, 10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.False(t, hasMore)
	assert.Equal(t, 3, items[0].Position)
}

func TestFinalizeSettlementCommitsEverything(t *testing.T) {
	repo := NewBatchRepository(testutil.NewDB(t))
	batch := seedBatch(t, repo, 1000, 2000)

	ok, err := repo.TransitionStatus(context.Background(), batch.ID, models.BatchStatusPendingApproval, models.BatchStatusProcessing)
	require.NoError(t, err)
	require.True(t, ok)

	items, err := repo.PendingLineItems(context.Background(), batch.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)

	items[0].Status = models.LineItemStatusPaid
	items[1].Status = models.LineItemStatusFailed
	items[1].FailureReason = "bank_error"

	record := &models.SettlementRecord{
		ID:             uuid.New(),
		BatchID:        batch.ID,
		SubmitterLabel: batch.SubmitterLabel,
		SourceLabel:    batch.SourceLabel,
		LineCount:      batch.LineCount,
		TotalAmount:    batch.TotalAmount,
		PaidCount:      1,
		FailedCount:    1,
		ProcessedAt:    time.Now().UTC(),
	}
	require.NoError(t, repo.FinalizeSettlement(context.Background(), batch.ID, items, record))

	got, err := repo.GetBatch(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusProcessed, got.Status)
	require.NotNil(t, got.ProcessedAt)

	stored, err := repo.GetSettlementRecord(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.PaidCount)
	assert.Equal(t, 1, stored.FailedCount)

	paid, failed, err := repo.ResolvedCounts(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, paid)
	assert.EqualValues(t, 1, failed)
}

func TestGetBatchStats(t *testing.T) {
	repo := NewBatchRepository(testutil.NewDB(t))
	batch := seedBatch(t, repo, 1000, 2500, 750)

	stats, err := repo.GetBatchStats(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 3, stats.PendingCount)
	assert.InDelta(t, 4250, stats.TotalAmount, 0.001)
}

func TestStuckProcessing(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewBatchRepository(db)
	batch := seedBatch(t, repo, 500)

	ok, err := repo.TransitionStatus(context.Background(), batch.ID, models.BatchStatusPendingApproval, models.BatchStatusProcessing)
	require.NoError(t, err)
	require.True(t, ok)

	// A freshly started settlement is not stuck.
	stuck, err := repo.StuckProcessing(context.Background(), time.Now().UTC().Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, stuck)

	old := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, db.Model(&models.Batch{}).
		Where("id = ?", batch.ID).
		Update("settle_started_at", &old).Error)

	stuck, err = repo.StuckProcessing(context.Background(), time.Now().UTC().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, batch.ID, stuck[0].ID)
}
