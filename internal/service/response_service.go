package service

import (
	"time"

	"sensor_dashboard/internal/models"
)

type Options struct {
	Sensors          []models.SensorBinding
	WeatherEntity    string // optional; forecast is cached when set
	UpdateInterval   time.Duration
	BackfillLookback time.Duration
	Location         *time.Location // display timezone
}

// RunFilter selects sync runs by start time range and kind.
type RunFilter struct {
	From  time.Time // inclusive; zero means no lower bound
	To    time.Time // inclusive; zero means no upper bound
	Kind  string    // "", "poll", "backfill"
	Limit int
}

const (
	RunKindPoll     = "poll"
	RunKindBackfill = "backfill"
)
