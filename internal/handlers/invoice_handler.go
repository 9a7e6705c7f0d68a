package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"agentic-reconciliation-backend/internal/models"
	"agentic-reconciliation-backend/internal/repository"
	"agentic-reconciliation-backend/internal/services/invoices"
)

// InvoiceSearcher looks invoices up for the listing endpoint.
type InvoiceSearcher interface {
	SearchInvoices(ctx context.Context, filter repository.InvoiceFilter) ([]models.Invoice, error)
}

type InvoiceHandler struct {
	service  *invoices.Service
	searcher InvoiceSearcher
}

func NewInvoiceHandler(s *invoices.Service, searcher InvoiceSearcher) *InvoiceHandler {
	return &InvoiceHandler{service: s, searcher: searcher}
}

func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var payload invoices.Input
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid payload")
		return
	}

	invoice, created, err := h.service.Create(c.Request.Context(), payload)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	message := "invoice created"
	if !created {
		status = http.StatusOK
		message = "invoice already exists"
	}
	c.JSON(status, gin.H{"message": message, "invoice": invoice})
}

// UploadInvoices imports a CSV of invoices with a header row.
func (h *InvoiceHandler) UploadInvoices(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "file required")
		return
	}
	defer file.Close()

	logger.Info("received invoice file", "file", header.Filename, "size", header.Size)

	inserted, err := h.service.ImportCSV(c.Request.Context(), file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"file":          header.Filename,
		"invoicesAdded": inserted,
	})
}

// SearchInvoices filters by customer name (q), exact amount and status.
// status may be repeated or comma separated.
func (h *InvoiceHandler) SearchInvoices(c *gin.Context) {
	filter := repository.InvoiceFilter{Query: strings.TrimSpace(c.Query("q"))}

	if v := c.Query("amount"); v != "" {
		amount, err := decimal.NewFromString(v)
		if err != nil {
			badRequest(c, "invalid amount")
			return
		}
		filter.Amount = &amount
	}
	for _, v := range c.QueryArray("status") {
		for _, s := range strings.Split(v, ",") {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				filter.Statuses = append(filter.Statuses, s)
			}
		}
	}
	limit, ok := queryLimit(c, defaultPageSize)
	if !ok {
		return
	}
	filter.Limit = limit

	found, err := h.searcher.SearchInvoices(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if found == nil {
		found = []models.Invoice{}
	}
	c.JSON(http.StatusOK, gin.H{"invoices": found})
}
