package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cardexBuild     prometheus.Histogram
	skippedRecords  *prometheus.CounterVec
	valuationTotal  prometheus.Gauge
}

// NewMetrics menginisialisasi registry, metrik HTTP, dan metrik buku stok.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	cardex := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "odyssey_stock_cardex_build_seconds",
		Help:    "Durasi penyusunan kartu stok dari dokumen transaksi.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_stock_skipped_records_total",
		Help: "Dokumen yang dilewati karena tanggal tidak valid, per jenis mutasi.",
	}, []string{"kind"})
	valuation := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "odyssey_stock_valuation_total",
		Help: "Nilai persediaan terakhir berdasarkan harga beli per unit.",
	})
	registry.MustRegister(requests, duration, cardex, skipped, valuation)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		cardexBuild:     cardex,
		skippedRecords:  skipped,
		valuationTotal:  valuation,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveCardexBuild mencatat durasi satu penyusunan kartu stok.
func (m *Metrics) ObserveCardexBuild(d time.Duration) {
	if m == nil {
		return
	}
	m.cardexBuild.Observe(d.Seconds())
}

// AddSkippedRecords menambah hitungan dokumen yang dilewati.
func (m *Metrics) AddSkippedRecords(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.skippedRecords.WithLabelValues(kind).Add(float64(n))
}

// SetValuationTotal memperbarui gauge nilai persediaan.
func (m *Metrics) SetValuationTotal(v float64) {
	if m == nil {
		return
	}
	m.valuationTotal.Set(v)
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
