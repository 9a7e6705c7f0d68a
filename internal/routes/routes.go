package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"agentic-reconciliation-backend/internal/app"
	handler "agentic-reconciliation-backend/internal/handlers"
)

// RegisterRoutes mounts the stage endpoints at the root and everything
// else under /api.
func RegisterRoutes(r *gin.Engine, a *app.App) {
	reconHandler := handler.NewReconciliationHandler(a.Reconciliation, a.Store)
	invoiceHandler := handler.NewInvoiceHandler(a.Invoices, a.Store)
	complianceHandler := handler.NewComplianceHandler(
		a.Compliance,
		a.Checker,
		a.Regulations,
		a.Deadlines,
		a.Config.Compliance.DeadlineDays,
	)

	// Pipeline stages
	r.POST("/extract-transactions", reconHandler.ExtractTransactions)
	r.POST("/match-invoices", reconHandler.MatchInvoices)
	r.POST("/categorize", reconHandler.Categorize)
	r.POST("/detect-discrepancies", reconHandler.DetectDiscrepancies)
	r.POST("/reconcile", reconHandler.Reconcile)
	r.POST("/full-reconciliation", reconHandler.FullReconciliation)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	recon := api.Group("/reconciliation")
	recon.GET("/logs", reconHandler.ListLogs)
	recon.GET("/batches/:batchId", reconHandler.GetBatch)
	recon.GET("/batches/:batchId/transactions", reconHandler.ListTransactions)

	invoices := api.Group("/invoices")
	{
		invoices.GET("", invoiceHandler.SearchInvoices)
		invoices.POST("", invoiceHandler.CreateInvoice)
		invoices.POST("/upload", invoiceHandler.UploadInvoices)
	}

	compliance := api.Group("/compliance")
	compliance.POST("/run", complianceHandler.Run)
	compliance.POST("/check", complianceHandler.Check)
	compliance.GET("/deadlines", complianceHandler.Deadlines)

	api.POST("/regulations/query", complianceHandler.QueryRegulations)
}
