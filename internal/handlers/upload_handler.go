package handler

import (
	"encoding/csv"
	"io"
	"net/http"
	"strings"

	"farmer-payments-backend/internal/errs"
	"farmer-payments-backend/internal/services/lifecycle"

	"github.com/gin-gonic/gin"
)

var requiredColumns = []string{"farmer_name", "bank_name", "account_number", "amount"}

// Upload accepts a CSV file of payment instructions and submits it as a
// batch. Columns: farmer_name, bank_name, account_number, amount.
func (h *BatchHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	defer file.Close()

	actor, err := actorPayload{
		ActorID:    c.PostForm("actor_id"),
		ActorLabel: c.PostForm("actor_label"),
	}.actor()
	if err != nil {
		respondError(c, err)
		return
	}

	items, err := parseInstructionCSV(file)
	if err != nil {
		respondError(c, err)
		return
	}

	batch, err := h.lifecycle.Submit(c.Request.Context(), actor, header.Filename, items, c.PostForm("note"))
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

func parseInstructionCSV(reader io.Reader) ([]lifecycle.LineItemInput, error) {
	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1

	headerRow, err := csvReader.Read()
	if err != nil {
		return nil, errs.Validationf("cannot read CSV header")
	}

	columns := make(map[string]int, len(headerRow))
	for i, name := range headerRow {
		columns[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, errs.Validationf("file is missing column %q", name)
		}
	}

	var items []lifecycle.LineItemInput
	rowNum := 1
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			return nil, errs.Validationf("row %d: malformed CSV record", rowNum)
		}

		// Skip completely blank rows
		if strings.Join(record, "") == "" {
			continue
		}

		field := func(name string) string {
			idx := columns[name]
			if idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		amount, err := parseAmount(field("amount"))
		if err != nil {
			return nil, errs.Validationf("row %d: invalid amount %q", rowNum, field("amount"))
		}

		items = append(items, lifecycle.LineItemInput{
			PayeeName:    field("farmer_name"),
			PayeeBank:    field("bank_name"),
			PayeeAccount: field("account_number"),
			Amount:       amount,
		})
	}
	return items, nil
}
