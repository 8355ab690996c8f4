package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sensor_dashboard/internal/metrics"
	"sensor_dashboard/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsMiddleware_RecordsRouteTemplates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := metrics.NewRecorder(prometheus.NewRegistry())
	s := &service.Service{Query: &mockQuery{series: defaultSeries()}}
	r := NewHandler(s, nil, rec).InitRoutes()

	for _, path := range []string{"/api/v1/current/temperature", "/api/v1/current/humidity", "/api/v1/current/pressure", "/nope"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	srv := httptest.NewServer(r)
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	out := string(body)

	for _, want := range []string{
		`sensor_http_requests_total{route="/api/v1/current/:series",status="200"} 2`,
		`sensor_http_requests_total{route="/api/v1/current/:series",status="404"} 1`,
		`sensor_http_requests_total{route="unmatched",status="404"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in exposition:\n%s", want, out)
		}
	}
	if strings.Contains(out, "/api/v1/current/temperature") {
		t.Error("raw paths must not be used as labels")
	}
}
