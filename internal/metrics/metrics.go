package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medshop_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "medshop_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	SalesCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medshop_sales_committed_total",
		Help: "Sales stored, single medicine sells included.",
	})

	UnitsAllocated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medshop_units_allocated_total",
		Help: "Units deducted from batches.",
	})

	InsufficientStock = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medshop_insufficient_stock_total",
		Help: "Sales rejected because stock ran short.",
	})

	StockConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medshop_stock_conflicts_total",
		Help: "Allocations that lost a race and were retried or rejected.",
	})

	DashboardCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medshop_dashboard_cache_total",
		Help: "Dashboard cache lookups by result.",
	}, []string{"result"})
)

// Middleware records request counts and latency. route should be the mux
// pattern, not the raw path, to keep label cardinality bounded.
func Middleware(route func(*http.Request) string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &StatusRecorder{ResponseWriter: w, Status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		label := route(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, label, strconv.Itoa(wrapped.Status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, label).Observe(time.Since(start).Seconds())
	})
}

type StatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *StatusRecorder) WriteHeader(status int) {
	r.Status = status
	r.ResponseWriter.WriteHeader(status)
}
