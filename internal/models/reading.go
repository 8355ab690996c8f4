package models

import (
	"encoding/json"
	"time"
)

// CurrentReading is the latest stored value of a series as shown to users.
type CurrentReading struct {
	Series     Series    `json:"series"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`   // display timezone
	AgeSeconds int64     `json:"age_seconds"` // since Timestamp
	Age        string    `json:"age"`         // e.g. "5 min ago"
}

// TimeSeriesResult is one series over a window, timestamps in display timezone.
// Extended is set when the last point was synthesized at Window.End.
type TimeSeriesResult struct {
	Series   Series        `json:"series"`
	Window   FetchWindow   `json:"window"`
	Points   []SeriesPoint `json:"points"`
	Extended bool          `json:"extended"`
}

// Empty reports whether the window held no stored points.
func (r TimeSeriesResult) Empty() bool {
	return len(r.Points) == 0
}

// Observed returns the stored points, without the synthetic trailing point.
func (r TimeSeriesResult) Observed() []SeriesPoint {
	if r.Extended && len(r.Points) > 0 {
		return r.Points[:len(r.Points)-1]
	}
	return r.Points
}

// Stats summarizes values of a non-empty point set.
type Stats struct {
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// SummaryStats computes mean, min and max. Callers must check for an empty
// set first; an empty input yields the zero Stats.
func SummaryStats(points []SeriesPoint) Stats {
	if len(points) == 0 {
		return Stats{}
	}
	st := Stats{Min: points[0].Value, Max: points[0].Value, Count: len(points)}
	sum := 0.0
	for _, p := range points {
		sum += p.Value
		if p.Value < st.Min {
			st.Min = p.Value
		}
		if p.Value > st.Max {
			st.Max = p.Value
		}
	}
	st.Mean = sum / float64(len(points))
	return st
}

// ChartData is what chart renderers consume: one or more series over a window.
type ChartData struct {
	Period string             `json:"period"`
	Window FetchWindow        `json:"window"`
	Ticks  TickPolicy         `json:"ticks"`
	Series []TimeSeriesResult `json:"series"`
}

// Forecast is the cached forecast payload as stored in metadata.
type Forecast struct {
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}
