package handler

import (
	"errors"
	"net/http"
	"strconv"

	"farmer-payments-backend/internal/errs"
	"farmer-payments-backend/internal/models"
	"farmer-payments-backend/internal/repository"
	"farmer-payments-backend/internal/services/lifecycle"
	"farmer-payments-backend/internal/services/notify"
	"farmer-payments-backend/internal/services/settlement"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// Metrics
var (
	batchesSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_batches_submitted_total",
		Help: "Total submitted batches",
	})

	settlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_settlements_total",
		Help: "Total settlements by outcome",
	}, []string{"outcome"})

	lineItemOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_line_items_settled_total",
		Help: "Line items settled by terminal status",
	}, []string{"status"})

	settleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payments_settlement_duration_seconds",
		Help:    "Settlement latency",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	})
)

type BatchHandler struct {
	lifecycle *lifecycle.Service
	engine    *settlement.Engine
	batches   *repository.BatchRepository
	activity  *repository.ActivityRepository
}

func NewBatchHandler(lc *lifecycle.Service, engine *settlement.Engine, batches *repository.BatchRepository, activity *repository.ActivityRepository) *BatchHandler {
	return &BatchHandler{lifecycle: lc, engine: engine, batches: batches, activity: activity}
}

type actorPayload struct {
	ActorID    string `json:"actor_id"`
	ActorLabel string `json:"actor_label"`
}

func (p actorPayload) actor() (models.Actor, error) {
	id, err := uuid.Parse(p.ActorID)
	if err != nil {
		return models.Actor{}, errs.Validationf("invalid actor_id %q", p.ActorID)
	}
	label := p.ActorLabel
	if label == "" {
		label = "unknown"
	}
	return models.Actor{ID: id, Label: label}, nil
}

// Submit accepts a JSON batch submission.
func (h *BatchHandler) Submit(c *gin.Context) {
	var payload struct {
		actorPayload
		SourceLabel string                   `json:"source_label"`
		Note        string                   `json:"note"`
		LineItems   []lifecycle.LineItemInput `json:"line_items"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	actor, err := payload.actor()
	if err != nil {
		respondError(c, err)
		return
	}

	batch, err := h.lifecycle.Submit(c.Request.Context(), actor, payload.SourceLabel, payload.LineItems, payload.Note)
	if err != nil {
		respondError(c, err)
		return
	}

	batchesSubmitted.Inc()
	c.JSON(http.StatusCreated, gin.H{
		"batch_id":     batch.ID.String(),
		"status":       batch.Status,
		"line_count":   batch.LineCount,
		"total_amount": batch.TotalAmount,
	})
}

// GetBatch returns a single batch.
func (h *BatchHandler) GetBatch(c *gin.Context) {
	id, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch ID"})
		return
	}

	batch, err := h.batches.GetBatch(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// ListBatches returns batches filtered by status and submitter.
func (h *BatchHandler) ListBatches(c *gin.Context) {
	status := models.BatchStatus(c.Query("status"))
	if status != "" && !status.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
		return
	}

	submitterID := uuid.Nil
	if raw := c.Query("submitter_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submitter ID"})
			return
		}
		submitterID = parsed
	}

	batches, err := h.batches.ListBatches(c.Request.Context(), status, submitterID, queryInt(c, "limit", 50))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": batches})
}

// ListLineItems returns a batch's line items in submission order with cursor
// pagination, plus per-batch stats.
func (h *BatchHandler) ListLineItems(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch ID"})
		return
	}

	if _, err := h.batches.GetBatch(c.Request.Context(), batchID); err != nil {
		respondError(c, err)
		return
	}

	status := models.LineItemStatus(c.Query("status"))
	items, nextCursor, hasMore, err := h.batches.ListLineItems(
		c.Request.Context(), batchID, status, queryInt(c, "cursor", 0), queryInt(c, "limit", 50))
	if err != nil {
		respondError(c, err)
		return
	}

	stats, err := h.batches.GetBatchStats(c.Request.Context(), batchID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":       items,
		"next_cursor": nextCursor,
		"has_more":    hasMore,
		"stats":       stats,
	})
}

// GetProgress reports settlement progress without hitting the line-item
// relation: the engine's in-memory view when available, else the batch status.
func (h *BatchHandler) GetProgress(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch ID"})
		return
	}

	if progress, ok := h.engine.Progress(batchID); ok {
		c.JSON(http.StatusOK, progress)
		return
	}

	batch, err := h.batches.GetBatch(c.Request.Context(), batchID)
	if err != nil {
		respondError(c, err)
		return
	}

	progress := settlement.Progress{Total: batch.LineCount}
	if batch.Status == models.BatchStatusProcessed {
		progress.Resolved = batch.LineCount
		progress.Fraction = 1
		progress.Done = true
	}
	c.JSON(http.StatusOK, progress)
}

// GetBatchStats aggregates one batch's line items by status.
func (h *BatchHandler) GetBatchStats(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch ID"})
		return
	}

	if _, err := h.batches.GetBatch(c.Request.Context(), batchID); err != nil {
		respondError(c, err)
		return
	}

	stats, err := h.batches.GetBatchStats(c.Request.Context(), batchID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// SetReviewerNote overwrites the reviewer note on a batch.
func (h *BatchHandler) SetReviewerNote(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch ID"})
		return
	}

	var payload struct {
		actorPayload
		Note string `json:"note"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	actor, err := payload.actor()
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.lifecycle.SetReviewerNote(c.Request.Context(), batchID, payload.Note, actor); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "reviewer note saved"})
}

// ApproveAndSettle moves a pending_approval batch to processing and settles
// it to completion, returning the aggregate and its notification event.
func (h *BatchHandler) ApproveAndSettle(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch ID"})
		return
	}

	var payload actorPayload
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	actor, err := payload.actor()
	if err != nil {
		respondError(c, err)
		return
	}

	timer := prometheus.NewTimer(settleDuration)
	defer timer.ObserveDuration()

	if _, err := h.lifecycle.BeginSettlement(c.Request.Context(), batchID, actor); err != nil {
		respondError(c, err)
		return
	}

	result, err := h.engine.Settle(c.Request.Context(), batchID, actor)
	if err != nil {
		settlementsTotal.WithLabelValues("error").Inc()
		respondError(c, err)
		return
	}

	outcome := "success"
	if result.FailedCount > 0 {
		outcome = "partial"
	}
	settlementsTotal.WithLabelValues(outcome).Inc()
	lineItemOutcomes.WithLabelValues(models.LineItemStatusPaid.String()).Add(float64(result.PaidCount))
	lineItemOutcomes.WithLabelValues(models.LineItemStatusFailed.String()).Add(float64(result.FailedCount))

	c.JSON(http.StatusOK, gin.H{
		"result":       result,
		"notification": notify.FromResult(*result),
	})
}

// ListHistory returns settlement records, newest first.
func (h *BatchHandler) ListHistory(c *gin.Context) {
	records, err := h.batches.ListSettlementRecords(c.Request.Context(), queryInt(c, "limit", 100))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": records})
}

// ListActivity returns recent activity events, newest first.
func (h *BatchHandler) ListActivity(c *gin.Context) {
	events, err := h.activity.List(c.Request.Context(), queryInt(c, "limit", 100))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": events})
}

// GetDashboardStats returns the admin KPI figures.
func (h *BatchHandler) GetDashboardStats(c *gin.Context) {
	stats, err := h.batches.GetDashboardStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func respondError(c *gin.Context, err error) {
	var validationErr *errs.ValidationError
	var notFoundErr *errs.NotFoundError
	var invalidStateErr *errs.InvalidStateError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Msg})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundErr.Error()})
	case errors.As(err, &invalidStateErr):
		c.JSON(http.StatusConflict, gin.H{"error": invalidStateErr.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// parseAmount is shared by the CSV upload path.
func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errs.Validationf("invalid amount %q", raw)
	}
	return amount, nil
}
