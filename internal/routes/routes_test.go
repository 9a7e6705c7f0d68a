package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentic-reconciliation-backend/internal/ai/mock"
	"agentic-reconciliation-backend/internal/app"
	"agentic-reconciliation-backend/internal/config"
	"agentic-reconciliation-backend/internal/repository"
)

func TestRegisterRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Knowledge.Path = ""
	cfg.Compliance.WatchDirs = nil
	cfg.Compliance.CalendarPath = ""

	a, err := app.New(context.Background(), cfg, repository.NewMemoryStore(), mock.NewProvider(mock.NewGenerator("{}"), nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	r := gin.New()
	RegisterRoutes(r, a)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/health", http.StatusOK},
		{http.MethodGet, "/api/reconciliation/logs", http.StatusOK},
		{http.MethodGet, "/api/invoices", http.StatusOK},
		{http.MethodGet, "/api/compliance/deadlines", http.StatusOK},
		{http.MethodPost, "/match-invoices", http.StatusOK},
		{http.MethodPost, "/extract-transactions", http.StatusBadRequest},
		{http.MethodGet, "/api/reconciliation/batches/not-a-uuid", http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, tt.want, w.Code, "%s %s", tt.method, tt.path)
	}

	var paths []string
	for _, route := range r.Routes() {
		paths = append(paths, route.Method+" "+route.Path)
	}
	assert.Contains(t, paths, "POST /api/regulations/query")
	assert.Contains(t, paths, "POST /full-reconciliation")
}
