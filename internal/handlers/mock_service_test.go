package handlers

import (
	"context"
	"sync"
	"time"

	"sensor_dashboard/internal/models"
	"sensor_dashboard/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockQuery struct {
	mu sync.Mutex

	series   []models.Series
	loc      *time.Location
	current  map[models.Series]*models.CurrentReading
	history  map[models.Series]models.TimeSeriesResult
	stats    map[models.Series]*models.Stats
	chart    models.ChartData
	chartErr error
	forecast *models.Forecast
	err      error

	lastPeriod models.PeriodSelector
	lastChart  string
}

func (m *mockQuery) Current(ctx context.Context, s models.Series) (*models.CurrentReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current[s], m.err
}

func (m *mockQuery) History(ctx context.Context, s models.Series, p models.PeriodSelector) (models.TimeSeriesResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPeriod = p
	return m.history[s], m.err
}

func (m *mockQuery) Stats(ctx context.Context, s models.Series, p models.PeriodSelector) (*models.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPeriod = p
	return m.stats[s], m.err
}

func (m *mockQuery) ChartSeries(ctx context.Context, seriesOrCombined string, p models.PeriodSelector) (models.ChartData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastChart = seriesOrCombined
	m.lastPeriod = p
	return m.chart, m.chartErr
}

func (m *mockQuery) Forecast(ctx context.Context) (*models.Forecast, error) {
	return m.forecast, m.err
}

func (m *mockQuery) Series() []models.Series { return m.series }

func (m *mockQuery) Location() *time.Location {
	if m.loc == nil {
		return time.UTC
	}
	return m.loc
}

type mockIngestion struct {
	status models.FetcherStatus
	err    error
}

func (m *mockIngestion) InitialSync(ctx context.Context) bool { return false }
func (m *mockIngestion) PollCurrent(ctx context.Context) models.SyncReport {
	return models.SyncReport{}
}
func (m *mockIngestion) Backfill(ctx context.Context, lookback time.Duration) models.SyncReport {
	return models.SyncReport{}
}
func (m *mockIngestion) RefreshHistory(ctx context.Context) models.SyncReport {
	return models.SyncReport{}
}
func (m *mockIngestion) Status(ctx context.Context) (models.FetcherStatus, error) {
	return m.status, m.err
}
func (m *mockIngestion) SetRunning(bool) {}

type mockSyncLog struct {
	resp   []models.SyncReport
	err    error
	filter service.RunFilter
}

func (m *mockSyncLog) Runs(ctx context.Context, f service.RunFilter) ([]models.SyncReport, error) {
	m.filter = f
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func defaultSeries() []models.Series {
	return []models.Series{models.SeriesTemperature, models.SeriesHumidity}
}
