package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sensor_dashboard/internal/models"
	"sensor_dashboard/internal/timeutil"
)

// SeriesSQLite keeps one table per series. Timestamps are stored as TEXT and
// always compared through datetime() so rows written in older formats
// ("YYYY-MM-DD HH:MM:SS", "+00:00" offsets) still sort and filter correctly.
// A unique index on datetime(timestamp) serves those reads and rejects a
// second row for the same instant.
type SeriesSQLite struct {
	db      *sql.DB
	series  []models.Series
	queries map[models.Series]seriesQueries
}

// Ensure implementation of SeriesRepo interface at compile time.
var _ SeriesRepo = (*SeriesSQLite)(nil)

// Table names cannot be bound as parameters; they come from validated series names.
const (
	insertPointSQL = `INSERT INTO %s (timestamp, value) VALUES (?, ?) ON CONFLICT DO NOTHING`

	selectLatestSQL = `
		SELECT timestamp, value FROM %s
		ORDER BY datetime(timestamp) DESC, id DESC
		LIMIT 1`

	selectRangeSQL = `
		SELECT timestamp, value FROM %s
		WHERE datetime(timestamp) >= datetime(?) AND datetime(timestamp) <= datetime(?)
		ORDER BY datetime(timestamp) ASC, id ASC`

	countPointsSQL = `SELECT COUNT(*) FROM %s`

	selectBoundsSQL = `SELECT MIN(datetime(timestamp)), MAX(datetime(timestamp)) FROM %s`
)

type seriesQueries struct {
	insert, latest, rng, count, bounds string
}

func NewSeriesSQLite(db *sql.DB, series []models.Series) *SeriesSQLite {
	r := &SeriesSQLite{db: db, queries: make(map[models.Series]seriesQueries, len(series))}
	for _, s := range series {
		if !s.Valid() {
			continue
		}
		if _, dup := r.queries[s]; dup {
			continue
		}
		t := s.TableName()
		r.queries[s] = seriesQueries{
			insert: fmt.Sprintf(insertPointSQL, t),
			latest: fmt.Sprintf(selectLatestSQL, t),
			rng:    fmt.Sprintf(selectRangeSQL, t),
			count:  fmt.Sprintf(countPointsSQL, t),
			bounds: fmt.Sprintf(selectBoundsSQL, t),
		}
		r.series = append(r.series, s)
	}
	return r
}

// Series lists configured series in configuration order.
func (r *SeriesSQLite) Series() []models.Series {
	return append([]models.Series(nil), r.series...)
}

func (r *SeriesSQLite) queriesFor(s models.Series) (seriesQueries, error) {
	q, ok := r.queries[s]
	if !ok {
		return seriesQueries{}, fmt.Errorf("%w: %q", ErrUnknownSeries, s)
	}
	return q, nil
}

// Insert adds p; a duplicate timestamp is not an error and returns false.
func (r *SeriesSQLite) Insert(ctx context.Context, s models.Series, p models.SeriesPoint) (bool, error) {
	q, err := r.queriesFor(s)
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, q.insert, timeutil.FormatStorage(p.Timestamp), p.Value)
	if err != nil {
		return false, fmt.Errorf("insert %s point: %w", s, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert %s point: rows affected: %w", s, err)
	}
	return n > 0, nil
}

// Latest returns the newest point, or nil if the series is empty.
func (r *SeriesSQLite) Latest(ctx context.Context, s models.Series) (*models.SeriesPoint, error) {
	q, err := r.queriesFor(s)
	if err != nil {
		return nil, err
	}
	var (
		ts    string
		value float64
	)
	if err := r.db.QueryRowContext(ctx, q.latest).Scan(&ts, &value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select latest %s: %w", s, err)
	}
	t, err := timeutil.ParseISO(ts)
	if err != nil {
		return nil, fmt.Errorf("select latest %s: %w", s, err)
	}
	p := models.NewSeriesPoint(t, value)
	return &p, nil
}

// Range returns points within [start, end], inclusive, ascending.
func (r *SeriesSQLite) Range(ctx context.Context, s models.Series, start, end time.Time) ([]models.SeriesPoint, error) {
	q, err := r.queriesFor(s)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, q.rng, timeutil.FormatStorage(start), timeutil.FormatStorage(end))
	if err != nil {
		return nil, fmt.Errorf("select %s range: %w", s, err)
	}
	defer rows.Close()

	out := make([]models.SeriesPoint, 0, 256)
	for rows.Next() {
		var (
			ts    string
			value float64
		)
		if err := rows.Scan(&ts, &value); err != nil {
			return nil, fmt.Errorf("scan %s point: %w", s, err)
		}
		t, err := timeutil.ParseISO(ts)
		if err != nil {
			// unreadable legacy row; datetime() accepted it, we do not
			continue
		}
		out = append(out, models.NewSeriesPoint(t, value))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s range: %w", s, err)
	}
	return out, nil
}

func (r *SeriesSQLite) Count(ctx context.Context, s models.Series) (int64, error) {
	q, err := r.queriesFor(s)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := r.db.QueryRowContext(ctx, q.count).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", s, err)
	}
	return n, nil
}

// Bounds returns the earliest and latest timestamps, both nil for an empty series.
func (r *SeriesSQLite) Bounds(ctx context.Context, s models.Series) (*time.Time, *time.Time, error) {
	q, err := r.queriesFor(s)
	if err != nil {
		return nil, nil, err
	}
	var lo, hi sql.NullString
	if err := r.db.QueryRowContext(ctx, q.bounds).Scan(&lo, &hi); err != nil {
		return nil, nil, fmt.Errorf("select %s bounds: %w", s, err)
	}
	earliest, err := parseNullTime(lo)
	if err != nil {
		return nil, nil, fmt.Errorf("select %s bounds: %w", s, err)
	}
	latest, err := parseNullTime(hi)
	if err != nil {
		return nil, nil, fmt.Errorf("select %s bounds: %w", s, err)
	}
	return earliest, latest, nil
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := timeutil.ParseISO(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
