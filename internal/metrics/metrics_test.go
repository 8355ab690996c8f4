package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func scrape(t *testing.T, r *Recorder) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read exposition: %v", err)
	}
	return string(body)
}

func TestRecorder_Counts(t *testing.T) {
	t.Parallel()

	r := NewRecorder(prometheus.NewRegistry())

	r.Points("temperature", ResultInserted, 3)
	r.Points("temperature", ResultInserted, 2)
	r.Points("temperature", ResultSkipped, 0)
	r.Chunks("humidity", ResultFailed, 1)
	r.LastValue("humidity", 44.5)

	body := scrape(t, r)
	for _, want := range []string{
		`sensor_sync_points_total{result="inserted",series="temperature"} 5`,
		`sensor_sync_chunks_total{result="failed",series="humidity"} 1`,
		`sensor_last_value{series="humidity"} 44.5`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
	if strings.Contains(body, `result="skipped"`) {
		t.Error("zero increments must not create series")
	}
}

func TestRecorder_NilIsNoop(t *testing.T) {
	t.Parallel()

	var r *Recorder
	r.Points("x", ResultInserted, 1)
	r.Chunks("x", ResultOK, 1)
	r.SyncDuration("poll", time.Second)
	r.LastValue("x", 1)
	r.HTTPRequest("/health", 200, time.Millisecond)
	if r.Handler() == nil {
		t.Fatal("nil recorder should still provide a handler")
	}
}

func TestRecorder_HandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	r := NewRecorder(prometheus.NewRegistry())
	r.HTTPRequest("/api/v1/current/:series", 200, 5*time.Millisecond)
	r.SyncDuration("backfill", 2*time.Second)

	body := scrape(t, r)
	for _, want := range []string{
		`sensor_http_requests_total{route="/api/v1/current/:series",status="200"} 1`,
		`sensor_sync_duration_seconds_count{operation="backfill"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
