package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"agentic-reconciliation-backend/internal/services/compliance"
)

type ComplianceHandler struct {
	flow        *compliance.Flow
	checker     *compliance.Checker
	regulations compliance.Retriever
	deadlines   *compliance.DeadlineTracker
	days        int
}

// NewComplianceHandler builds the compliance endpoints. days is the default
// deadline window.
func NewComplianceHandler(
	flow *compliance.Flow,
	checker *compliance.Checker,
	regulations compliance.Retriever,
	deadlines *compliance.DeadlineTracker,
	days int,
) *ComplianceHandler {
	if days <= 0 {
		days = compliance.DefaultDeadlineDays
	}
	return &ComplianceHandler{
		flow:        flow,
		checker:     checker,
		regulations: regulations,
		deadlines:   deadlines,
		days:        days,
	}
}

// Run executes the compliance flow. The body is optional.
func (h *ComplianceHandler) Run(c *gin.Context) {
	var payload struct {
		RegulationQuery string `json:"regulation_query"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid payload")
		return
	}

	state, err := h.flow.Run(c.Request.Context(), payload.RegulationQuery)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// Check asks the model to review transactions for tax violations.
func (h *ComplianceHandler) Check(c *gin.Context) {
	var payload struct {
		Transactions any `json:"transactions"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid payload")
		return
	}
	if payload.Transactions == nil {
		payload.Transactions = []any{}
	}

	result, err := h.checker.Check(c.Request.Context(), payload.Transactions)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (h *ComplianceHandler) QueryRegulations(c *gin.Context) {
	var payload struct {
		Query string `json:"query"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil || strings.TrimSpace(payload.Query) == "" {
		badRequest(c, "query required")
		return
	}

	result, err := h.regulations.Retrieve(c.Request.Context(), payload.Query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (h *ComplianceHandler) Deadlines(c *gin.Context) {
	days := h.days
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(c, "days must be a positive integer")
			return
		}
		days = n
	}

	events, err := h.deadlines.Upcoming(days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "deadlines": events})
}
