package models

import (
	"strings"
	"time"
)

// FetchWindow is a closed time range [Start, End].
type FetchWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Span returns End - Start.
func (w FetchWindow) Span() time.Duration {
	return w.End.Sub(w.Start)
}

// UTC returns the window with both bounds in UTC.
func (w FetchWindow) UTC() FetchWindow {
	return FetchWindow{Start: w.Start.UTC(), End: w.End.UTC()}
}

// Split cuts the window into consecutive sub-windows no longer than maxSpan.
// Neighbours share their boundary instant. An empty or inverted window yields nil.
func (w FetchWindow) Split(maxSpan time.Duration) []FetchWindow {
	if !w.End.After(w.Start) {
		return nil
	}
	if maxSpan <= 0 || w.Span() <= maxSpan {
		return []FetchWindow{w}
	}

	out := make([]FetchWindow, 0, int(w.Span()/maxSpan)+1)
	for start := w.Start; start.Before(w.End); {
		end := start.Add(maxSpan)
		if end.After(w.End) {
			end = w.End
		}
		out = append(out, FetchWindow{Start: start, End: end})
		start = end
	}
	return out
}

// PeriodSelector is a coarse named window ending at "now".
type PeriodSelector int

const (
	Last24h PeriodSelector = iota
	LastWeek
	LastMonth
)

// Duration is the look-back of the selector. Unknown values behave as Last24h.
func (p PeriodSelector) Duration() time.Duration {
	switch p {
	case LastWeek:
		return 7 * 24 * time.Hour
	case LastMonth:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

func (p PeriodSelector) String() string {
	switch p {
	case LastWeek:
		return "week"
	case LastMonth:
		return "month"
	default:
		return "24h"
	}
}

// ParsePeriod maps query values to a selector. Anything unrecognised is Last24h.
func ParsePeriod(s string) PeriodSelector {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "week", "7d", "1w", "last_week":
		return LastWeek
	case "month", "30d", "1m", "last_month":
		return LastMonth
	default:
		return Last24h
	}
}

// TickPolicy tells chart renderers how to label the time axis.
type TickPolicy string

const (
	TicksHourly  TickPolicy = "hour"     // span <= 1 day
	TicksDayHour TickPolicy = "day_hour" // span <= 1 week
	TicksDaily   TickPolicy = "day"
)

// TickPolicyFor picks the axis labelling for a window span.
func TickPolicyFor(span time.Duration) TickPolicy {
	switch {
	case span <= 24*time.Hour:
		return TicksHourly
	case span <= 7*24*time.Hour:
		return TicksDayHour
	default:
		return TicksDaily
	}
}
