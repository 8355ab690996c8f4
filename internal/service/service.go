package service

import (
	"context"
	"encoding/json"
	"time"

	"sensor_dashboard/internal/homeassistant"
	"sensor_dashboard/internal/logger"
	"sensor_dashboard/internal/metrics"
	"sensor_dashboard/internal/models"
	"sensor_dashboard/internal/repository"
)

// Ingestion pulls readings from the remote API into the store. Its runs are
// serialized against each other; it never blocks store readers.
type Ingestion interface {
	// InitialSync backfills unless every series already has recent data, then polls.
	// It reports whether a backfill ran.
	InitialSync(ctx context.Context) bool
	PollCurrent(ctx context.Context) models.SyncReport
	Backfill(ctx context.Context, lookback time.Duration) models.SyncReport
	// RefreshHistory backfills the configured lookback window.
	RefreshHistory(ctx context.Context) models.SyncReport
	Status(ctx context.Context) (models.FetcherStatus, error)
	SetRunning(running bool)
}

// Query answers read-only questions about stored series.
type Query interface {
	Current(ctx context.Context, s models.Series) (*models.CurrentReading, error)
	History(ctx context.Context, s models.Series, p models.PeriodSelector) (models.TimeSeriesResult, error)
	// Stats is nil when the period holds no data.
	Stats(ctx context.Context, s models.Series, p models.PeriodSelector) (*models.Stats, error)
	ChartSeries(ctx context.Context, seriesOrCombined string, p models.PeriodSelector) (models.ChartData, error)
	Forecast(ctx context.Context) (*models.Forecast, error)
	Series() []models.Series
	Location() *time.Location
}

// SyncLog exposes the history of ingestion runs.
type SyncLog interface {
	Runs(ctx context.Context, f RunFilter) ([]models.SyncReport, error)
}

// RemoteClient is the subset of the Home Assistant client ingestion needs.
type RemoteClient interface {
	FetchCurrent(ctx context.Context, entityID string) (*models.SeriesPoint, error)
	FetchHistory(ctx context.Context, entityID string, w models.FetchWindow) homeassistant.HistoryResult
	FetchForecast(ctx context.Context, entityID string) (json.RawMessage, error)
}

type Service struct {
	Ingestion
	Query
	SyncLog
}

func NewService(repos *repository.Repository, client RemoteClient, opts Options, log *logger.Logger, rec *metrics.Recorder) *Service {
	return &Service{
		Ingestion: NewIngestionService(repos, client, opts, log, rec),
		Query:     NewQueryService(repos.Series, repos.Metadata, opts.Location),
		SyncLog:   NewSyncLogService(repos.SyncRuns),
	}
}
