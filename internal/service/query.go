package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sensor_dashboard/internal/models"
	"sensor_dashboard/internal/repository"
	"sensor_dashboard/internal/timeutil"
)

// QueryService reads the store and converts results to the display timezone.
// It performs no network I/O.
type QueryService struct {
	series repository.SeriesRepo
	meta   repository.MetadataRepo
	loc    *time.Location
	now    func() time.Time
}

func NewQueryService(series repository.SeriesRepo, meta repository.MetadataRepo, loc *time.Location) *QueryService {
	if loc == nil {
		loc = time.UTC
	}
	return &QueryService{series: series, meta: meta, loc: loc, now: time.Now}
}

func (q *QueryService) Location() *time.Location { return q.loc }

func (q *QueryService) Series() []models.Series { return q.series.Series() }

// ResolveWindow maps a selector to [now-span, now] in UTC. Unknown selector
// values resolve like Last24h.
func ResolveWindow(sel models.PeriodSelector, now time.Time) models.FetchWindow {
	end := now.UTC()
	return models.FetchWindow{Start: end.Add(-sel.Duration()), End: end}
}

// Current returns the latest reading, or nil when the series is empty.
func (q *QueryService) Current(ctx context.Context, s models.Series) (*models.CurrentReading, error) {
	p, err := q.series.Latest(ctx, s)
	if err != nil || p == nil {
		return nil, err
	}
	age := q.now().Sub(p.Timestamp)
	if age < 0 {
		age = 0
	}
	return &models.CurrentReading{
		Series:     s,
		Value:      p.Value,
		Timestamp:  timeutil.ToDisplay(p.Timestamp, q.loc),
		AgeSeconds: int64(age / time.Second),
		Age:        timeutil.HumanizeAge(age),
	}, nil
}

func (q *QueryService) History(ctx context.Context, s models.Series, p models.PeriodSelector) (models.TimeSeriesResult, error) {
	return q.SeriesForPeriod(ctx, s, ResolveWindow(p, q.now()))
}

// SeriesForPeriod returns the stored points of s within w in the display
// timezone. When the last point precedes w.End, a synthetic point carrying
// the last value is appended at w.End. No points means no data, not an error,
// and Points is then empty but never nil.
func (q *QueryService) SeriesForPeriod(ctx context.Context, s models.Series, w models.FetchWindow) (models.TimeSeriesResult, error) {
	w = w.UTC()
	res := models.TimeSeriesResult{
		Series: s,
		Window: models.FetchWindow{Start: timeutil.ToDisplay(w.Start, q.loc), End: timeutil.ToDisplay(w.End, q.loc)},
		Points: []models.SeriesPoint{},
	}

	stored, err := q.series.Range(ctx, s, w.Start, w.End)
	if err != nil {
		return res, err
	}
	if len(stored) == 0 {
		return res, nil
	}

	points := make([]models.SeriesPoint, 0, len(stored)+1)
	for _, p := range stored {
		points = append(points, models.SeriesPoint{Timestamp: timeutil.ToDisplay(p.Timestamp, q.loc), Value: p.Value})
	}
	last := stored[len(stored)-1]
	if last.Timestamp.Before(w.End) {
		points = append(points, models.SeriesPoint{Timestamp: res.Window.End, Value: last.Value})
		res.Extended = true
	}
	res.Points = points
	return res, nil
}

func (q *QueryService) Stats(ctx context.Context, s models.Series, p models.PeriodSelector) (*models.Stats, error) {
	res, err := q.History(ctx, s, p)
	if err != nil || res.Empty() {
		return nil, err
	}
	st := models.SummaryStats(res.Observed())
	return &st, nil
}

// ChartSeries returns chart input for one series, or for every configured
// series when seriesOrCombined is "combined".
func (q *QueryService) ChartSeries(ctx context.Context, seriesOrCombined string, p models.PeriodSelector) (models.ChartData, error) {
	var names []models.Series
	if seriesOrCombined == models.SeriesCombined {
		names = q.Series()
	} else {
		s := models.Series(seriesOrCombined)
		if !q.known(s) {
			return models.ChartData{}, fmt.Errorf("%w: %q", repository.ErrUnknownSeries, seriesOrCombined)
		}
		names = []models.Series{s}
	}

	w := ResolveWindow(p, q.now())
	out := models.ChartData{
		Period: p.String(),
		Window: models.FetchWindow{Start: timeutil.ToDisplay(w.Start, q.loc), End: timeutil.ToDisplay(w.End, q.loc)},
		Ticks:  models.TickPolicyFor(w.Span()),
		Series: make([]models.TimeSeriesResult, 0, len(names)),
	}
	for _, s := range names {
		res, err := q.SeriesForPeriod(ctx, s, w)
		if err != nil {
			return models.ChartData{}, err
		}
		out.Series = append(out.Series, res)
	}
	return out, nil
}

func (q *QueryService) known(s models.Series) bool {
	for _, have := range q.Series() {
		if have == s {
			return true
		}
	}
	return false
}

// Forecast returns the cached forecast, or nil if none was stored or it is not valid JSON.
func (q *QueryService) Forecast(ctx context.Context) (*models.Forecast, error) {
	e, err := q.meta.Entry(ctx, models.MetaLatestForecast)
	if err != nil || e == nil {
		return nil, err
	}
	if !json.Valid([]byte(e.Value)) {
		return nil, nil
	}
	return &models.Forecast{
		Data:      json.RawMessage(e.Value),
		UpdatedAt: timeutil.ToDisplay(e.UpdatedAt, q.loc),
	}, nil
}
