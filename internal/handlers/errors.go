package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"agentic-reconciliation-backend/internal/repository"
	"agentic-reconciliation-backend/internal/services/invoices"
	"agentic-reconciliation-backend/internal/services/reconciliation"
)

var logger = slog.Default().With("component", "http")

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, reconciliation.ErrUnsupportedFileType),
		errors.Is(err, reconciliation.ErrMalformedInput),
		errors.Is(err, invoices.ErrInvalidInvoice):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the {"detail": ...} error envelope.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"detail": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"detail": msg})
}
