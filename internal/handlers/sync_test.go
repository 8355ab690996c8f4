package handlers

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"sensor_dashboard/internal/models"
	"sensor_dashboard/internal/service"
)

func TestStatusHandler(t *testing.T) {
	last := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	ing := &mockIngestion{status: models.FetcherStatus{
		Running:           true,
		LastFetchTime:     &last,
		UpdateIntervalSec: 300,
		Series:            []models.SeriesStats{{Series: models.SeriesTemperature, Count: 42}},
	}}
	s := &service.Service{Ingestion: ing}

	w := get(t, s, "/api/v1/status")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var out struct {
		Running bool                 `json:"is_running"`
		Every   int64                `json:"update_interval"`
		Stats   []models.SeriesStats `json:"database_stats"`
	}
	decode(t, w, &out)
	if !out.Running || out.Every != 300 || len(out.Stats) != 1 || out.Stats[0].Count != 42 {
		t.Fatalf("unexpected status: %+v", out)
	}

	ing.err = errors.New("boom")
	if w := get(t, s, "/api/v1/status"); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestSyncRunsHandler_ListAndValidation(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	logs := &mockSyncLog{resp: []models.SyncReport{
		{RunID: "r2", Kind: "poll", Started: now},
		{RunID: "r1", Kind: "backfill", Started: now.Add(-time.Hour)},
	}}
	s := &service.Service{SyncLog: logs}

	if w := get(t, s, "/api/v1/sync/runs?from=notatime"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 invalid 'from', got %d", w.Code)
	}
	if w := get(t, s, "/api/v1/sync/runs?limit=-1"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 invalid limit, got %d", w.Code)
	}

	w := get(t, s, "/api/v1/sync/runs?from=2024-01-01&to=2024-01-31&kind=POLL&limit=10")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Count int                 `json:"count"`
		Runs  []models.SyncReport `json:"runs"`
	}
	decode(t, w, &out)
	if out.Count != 2 || out.Runs[0].RunID != "r2" {
		t.Fatalf("unexpected response: %+v", out)
	}
	wantTo := time.Date(2024, 1, 31, 23, 59, 59, 999999999, time.UTC)
	if !logs.filter.To.Equal(wantTo) || logs.filter.Limit != 10 || logs.filter.Kind != "POLL" {
		t.Fatalf("filter passed: %+v", logs.filter)
	}
}

func TestSyncRunsHandler_InvalidFilterIs400(t *testing.T) {
	s := &service.Service{SyncLog: service.NewSyncLogService(nil)}

	if w := get(t, s, "/api/v1/sync/runs?kind=weekly"); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid kind: expected 400, got %d", w.Code)
	}
	if w := get(t, s, "/api/v1/sync/runs?from=2024-02-01&to=2024-01-01"); w.Code != http.StatusBadRequest {
		t.Fatalf("inverted range: expected 400, got %d", w.Code)
	}
}

func TestSyncRunsHandler_RepoError(t *testing.T) {
	s := &service.Service{SyncLog: &mockSyncLog{err: errors.New("db down")}}
	if w := get(t, s, "/api/v1/sync/runs"); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}
