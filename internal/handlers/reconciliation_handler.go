package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"agentic-reconciliation-backend/internal/models"
	"agentic-reconciliation-backend/internal/services/reconciliation"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// RecordReader is the read side of the record store used by the batch and
// log endpoints.
type RecordReader interface {
	GetBatch(ctx context.Context, id uuid.UUID) (*models.UploadBatch, error)
	ListTransactions(ctx context.Context, batchID uuid.UUID, status, cursor string, limit int) ([]models.Transaction, string, bool, error)
	RecentLogs(ctx context.Context, limit int) ([]models.ReconciliationLog, error)
}

type ReconciliationHandler struct {
	service *reconciliation.Service
	records RecordReader
}

func NewReconciliationHandler(s *reconciliation.Service, records RecordReader) *ReconciliationHandler {
	return &ReconciliationHandler{service: s, records: records}
}

// ExtractTransactions parses an uploaded CSV or JSON file into stored
// transactions.
func (h *ReconciliationHandler) ExtractTransactions(c *gin.Context) {
	name, content, ok := readUpload(c)
	if !ok {
		return
	}
	res, err := h.service.Extract(c.Request.Context(), name, content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ReconciliationHandler) MatchInvoices(c *gin.Context) {
	txs, ok := bindTransactions(c)
	if !ok {
		return
	}
	results, err := h.service.MatchInvoices(c.Request.Context(), txs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matched_results": results})
}

func (h *ReconciliationHandler) Categorize(c *gin.Context) {
	txs, ok := bindTransactions(c)
	if !ok {
		return
	}
	results, err := h.service.Categorize(c.Request.Context(), txs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categorized_results": results})
}

func (h *ReconciliationHandler) DetectDiscrepancies(c *gin.Context) {
	txs, ok := bindTransactions(c)
	if !ok {
		return
	}
	results, err := h.service.DetectDiscrepancies(c.Request.Context(), txs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"discrepancy_results": results})
}

// Reconcile runs the approver over already processed transactions.
func (h *ReconciliationHandler) Reconcile(c *gin.Context) {
	txs, ok := bindTransactions(c)
	if !ok {
		return
	}
	report, err := h.service.Approve(c.Request.Context(), txs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}

// FullReconciliation runs every stage over an uploaded file and returns the
// final pipeline state.
func (h *ReconciliationHandler) FullReconciliation(c *gin.Context) {
	name, content, ok := readUpload(c)
	if !ok {
		return
	}
	state, err := h.service.Reconcile(c.Request.Context(), name, content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *ReconciliationHandler) GetBatch(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		badRequest(c, "invalid batch ID")
		return
	}
	batch, err := h.records.GetBatch(c.Request.Context(), batchID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func (h *ReconciliationHandler) ListTransactions(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		badRequest(c, "invalid batch ID")
		return
	}
	limit, ok := queryLimit(c, defaultPageSize)
	if !ok {
		return
	}

	items, nextCursor, hasMore, err := h.records.ListTransactions(
		c.Request.Context(), batchID, c.Query("status"), c.Query("cursor"), limit,
	)
	if err != nil {
		respondError(c, err)
		return
	}
	if items == nil {
		items = []models.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{
		"items":       items,
		"next_cursor": nextCursor,
		"has_more":    hasMore,
	})
}

func (h *ReconciliationHandler) ListLogs(c *gin.Context) {
	limit, ok := queryLimit(c, defaultPageSize)
	if !ok {
		return
	}
	logs, err := h.records.RecentLogs(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if logs == nil {
		logs = []models.ReconciliationLog{}
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// readUpload reads the multipart "file" field.
func readUpload(c *gin.Context) (string, []byte, bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "file required")
		return "", nil, false
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		respondError(c, fmt.Errorf("reading upload: %w", err))
		return "", nil, false
	}
	logger.Info("received file", "file", header.Filename, "size", header.Size)
	return header.Filename, content, true
}

// bindTransactions reads {"transactions": [...]}. A missing or null list
// is an empty batch.
func bindTransactions(c *gin.Context) ([]*models.Transaction, bool) {
	var body struct {
		Transactions json.RawMessage `json:"transactions"`
	}
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid payload: "+err.Error())
		return nil, false
	}

	raw := bytes.TrimSpace(body.Transactions)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []*models.Transaction{}, true
	}
	if raw[0] != '[' {
		badRequest(c, "Invalid format: 'transactions' must be a list")
		return nil, false
	}

	txs, err := reconciliation.ParseTransactions(reconciliation.FileTypeJSON, raw)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return txs, true
}

func queryLimit(c *gin.Context, fallback int) (int, bool) {
	v := c.Query("limit")
	if v == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		badRequest(c, "limit must be a positive integer")
		return 0, false
	}
	return min(n, maxPageSize), true
}
