package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pharmacy/internal/observability"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/stock"
	"github.com/odyssey-erp/odyssey-pharmacy/jobs"
)

type emptyRepo struct{}

func (emptyRepo) ProductSnapshot(context.Context, string) (stock.Snapshot, error) {
	return stock.Snapshot{}, stock.ErrProductNotFound
}

func (emptyRepo) ListProducts(context.Context) ([]*stock.Product, error) { return nil, nil }

func newTestRouter(t *testing.T) (http.Handler, *observability.Metrics) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetrics()
	svc := stock.NewService(emptyRepo{}, nil, logger, metrics, stock.ServiceConfig{})
	return NewRouter(RouterParams{
		Logger:       logger,
		Config:       &Config{AppRequestTimeout: 5 * time.Second, RateLimitPerMinute: 1000},
		StockHandler: stock.NewHandler(logger, svc, time.UTC),
		JobHandler:   jobs.NewHandler(nil, logger),
		Metrics:      metrics,
	}), metrics
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRouterHealthAndSecurityHeaders(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := get(router, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRouterMountsStockAndJobs(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := get(router, "/stock/products/P404/cardex")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(router, "/stock/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"rows":[]}`, rec.Body.String())

	rec = get(router, "/jobs/health")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterExposesMetrics(t *testing.T) {
	router, _ := newTestRouter(t)
	get(router, "/stock/summary")

	rec := get(router, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, `odyssey_http_requests_total{code="200",route="/stock/summary"} 1`), body)
}
