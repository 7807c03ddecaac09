package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/BRO3886/restaurant-search/internal/types"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "restaurants"

// Metrics holds the collectors for one process. A nil *Metrics records
// nothing.
type Metrics struct {
	indexSyncDegraded *prometheus.CounterVec
	indexStaleWrites  *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	httpRequests      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		indexSyncDegraded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "index_sync_degraded_total",
				Help:      "Index writes that failed after the primary store committed",
			},
			[]string{"op"},
		),
		indexStaleWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "index_stale_writes_total",
				Help:      "Index writes rejected because the index held a newer version",
			},
			[]string{"op"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path", "status"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}

	reg.MustRegister(m.indexSyncDegraded, m.indexStaleWrites, m.httpDuration, m.httpRequests)
	return m
}

// Report counts a degraded index sync.
func (m *Metrics) Report(_ context.Context, ev types.DriftEvent) {
	if m == nil {
		return
	}
	m.indexSyncDegraded.WithLabelValues(string(ev.Op)).Inc()
}

// IndexStale counts an index write skipped for carrying an old version.
func (m *Metrics) IndexStale(op types.SyncOp) {
	if m == nil {
		return
	}
	m.indexStaleWrites.WithLabelValues(string(op)).Inc()
}

// Middleware records request duration and count, labelled by route template.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()

		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		path := "unknown"
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		status := strconv.Itoa(ww.status)

		m.httpDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		m.httpRequests.WithLabelValues(r.Method, path, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}
