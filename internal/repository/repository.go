package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"sensor_dashboard/internal/models"
)

// ErrUnknownSeries is returned for a series the store was not configured with.
var ErrUnknownSeries = errors.New("unknown series")

// SeriesRepo is the append-only time-series store. Every call is one implicit
// transaction.
type SeriesRepo interface {
	// Insert writes p unless its timestamp already exists; it reports whether a row was added.
	Insert(ctx context.Context, series models.Series, p models.SeriesPoint) (bool, error)
	Latest(ctx context.Context, series models.Series) (*models.SeriesPoint, error)
	// Range returns points with start <= timestamp <= end, ascending.
	Range(ctx context.Context, series models.Series, start, end time.Time) ([]models.SeriesPoint, error)
	Count(ctx context.Context, series models.Series) (int64, error)
	Bounds(ctx context.Context, series models.Series) (earliest, latest *time.Time, err error)
	Series() []models.Series
}

type MetadataRepo interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Entry(ctx context.Context, key string) (*models.MetadataEntry, error)
}

// SyncRunRepo records finished ingestion runs.
type SyncRunRepo interface {
	Append(ctx context.Context, r models.SyncReport) error
	List(ctx context.Context, from, to time.Time, kind string, limit int) ([]models.SyncReport, error)
}

type Repository struct {
	Series   SeriesRepo
	Metadata MetadataRepo
	SyncRuns SyncRunRepo
}

func NewRepository(db *sql.DB, series []models.Series) *Repository {
	return &Repository{
		Series:   NewSeriesSQLite(db, series),
		Metadata: NewMetadataSQLite(db),
		SyncRuns: NewSyncRunSQLite(db),
	}
}
