package models

import (
	"regexp"
	"time"

	"sensor_dashboard/internal/timeutil"
)

// Series names a stream of timestamped sensor readings.
type Series string

const (
	SeriesTemperature Series = "temperature"
	SeriesHumidity    Series = "humidity"
)

// SeriesCombined is accepted by chart queries to request every configured series.
const SeriesCombined = "combined"

var seriesNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,47}$`)

// Valid reports whether the name is safe to use as part of a table name.
func (s Series) Valid() bool {
	return seriesNamePattern.MatchString(string(s))
}

// TableName is the SQLite table holding this series' points.
func (s Series) TableName() string {
	return string(s) + "_data"
}

func (s Series) String() string { return string(s) }

// SensorBinding maps a stored series to the remote entity feeding it.
type SensorBinding struct {
	Series   Series
	EntityID string
}

// SeriesPoint is a single reading. Timestamp is UTC with second precision.
type SeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// NewSeriesPoint normalizes ts to UTC seconds.
func NewSeriesPoint(ts time.Time, value float64) SeriesPoint {
	return SeriesPoint{Timestamp: timeutil.Normalize(ts), Value: value}
}

// MetadataEntry is a bookkeeping key/value pair.
type MetadataEntry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Well-known metadata keys.
const (
	MetaLastFetchTime       = "last_fetch_time"
	MetaLastHistoricalFetch = "last_historical_fetch"
	MetaLastBackfillRun     = "last_backfill_run"
	MetaLatestForecast      = "latest_forecast"
)
