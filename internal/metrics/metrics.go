// Package metrics exposes ingestion and HTTP counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sensor"

// Point results.
const (
	ResultInserted = "inserted"
	ResultSkipped  = "skipped"
	ResultFailed   = "failed"
	ResultOK       = "ok"
)

// Recorder holds the application's collectors. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	reg prometheus.Gatherer

	syncPoints   *prometheus.CounterVec
	syncChunks   *prometheus.CounterVec
	syncDuration *prometheus.HistogramVec
	lastValue    *prometheus.GaugeVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewRecorder registers collectors on reg. Pass prometheus.NewRegistry() in
// tests to avoid clashing with the default registry.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		syncPoints: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_points_total",
			Help:      "Points handled by ingestion, by series and result.",
		}, []string{"series", "result"}),
		syncChunks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_chunks_total",
			Help:      "History chunk requests, by series and result.",
		}, []string{"series", "result"}),
		syncDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of ingestion runs.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"operation"}),
		lastValue: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_value",
			Help:      "Most recently polled value per series.",
		}, []string{"series"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route template and status.",
		}, []string{"route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by route template.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func (r *Recorder) Points(series, result string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.syncPoints.WithLabelValues(series, result).Add(float64(n))
}

func (r *Recorder) Chunks(series, result string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.syncChunks.WithLabelValues(series, result).Add(float64(n))
}

func (r *Recorder) SyncDuration(operation string, d time.Duration) {
	if r == nil {
		return
	}
	r.syncDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (r *Recorder) LastValue(series string, v float64) {
	if r == nil {
		return
	}
	r.lastValue.WithLabelValues(series).Set(v)
}

// HTTPRequest records one request. route must be a template ("/api/v1/current/:series"),
// never a raw path.
func (r *Recorder) HTTPRequest(route string, status int, d time.Duration) {
	if r == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	r.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Handler serves the exposition format for this recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil || r.reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
