package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"sensor_dashboard/internal/homeassistant"
	"sensor_dashboard/internal/models"
	"sensor_dashboard/internal/repository"
)

// memSeriesRepo is an in-memory repository.SeriesRepo keyed by unix second.
type memSeriesRepo struct {
	mu        sync.Mutex
	names     []models.Series
	points    map[models.Series]map[int64]models.SeriesPoint
	insertErr error
}

func newMemSeriesRepo(names ...models.Series) *memSeriesRepo {
	r := &memSeriesRepo{names: names, points: map[models.Series]map[int64]models.SeriesPoint{}}
	for _, n := range names {
		r.points[n] = map[int64]models.SeriesPoint{}
	}
	return r
}

func (r *memSeriesRepo) table(s models.Series) (map[int64]models.SeriesPoint, error) {
	t, ok := r.points[s]
	if !ok {
		return nil, repository.ErrUnknownSeries
	}
	return t, nil
}

func (r *memSeriesRepo) Insert(ctx context.Context, s models.Series, p models.SeriesPoint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return false, r.insertErr
	}
	t, err := r.table(s)
	if err != nil {
		return false, err
	}
	p = models.NewSeriesPoint(p.Timestamp, p.Value)
	key := p.Timestamp.Unix()
	if _, dup := t[key]; dup {
		return false, nil
	}
	t[key] = p
	return true, nil
}

func (r *memSeriesRepo) sorted(s models.Series) ([]models.SeriesPoint, error) {
	t, err := r.table(s)
	if err != nil {
		return nil, err
	}
	out := make([]models.SeriesPoint, 0, len(t))
	for _, p := range t {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (r *memSeriesRepo) Latest(ctx context.Context, s models.Series) (*models.SeriesPoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all, err := r.sorted(s)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	p := all[len(all)-1]
	return &p, nil
}

func (r *memSeriesRepo) Range(ctx context.Context, s models.Series, start, end time.Time) ([]models.SeriesPoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all, err := r.sorted(s)
	if err != nil {
		return nil, err
	}
	var out []models.SeriesPoint
	for _, p := range all {
		if !p.Timestamp.Before(start) && !p.Timestamp.After(end) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memSeriesRepo) Count(ctx context.Context, s models.Series) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, err := r.table(s)
	return int64(len(t)), err
}

func (r *memSeriesRepo) Bounds(ctx context.Context, s models.Series) (*time.Time, *time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all, err := r.sorted(s)
	if err != nil || len(all) == 0 {
		return nil, nil, err
	}
	lo, hi := all[0].Timestamp, all[len(all)-1].Timestamp
	return &lo, &hi, nil
}

func (r *memSeriesRepo) Series() []models.Series { return r.names }

// memMetaRepo is an in-memory repository.MetadataRepo.
type memMetaRepo struct {
	mu   sync.Mutex
	data map[string]models.MetadataEntry
	now  func() time.Time
}

func newMemMetaRepo() *memMetaRepo {
	return &memMetaRepo{data: map[string]models.MetadataEntry{}, now: time.Now}
}

func (m *memMetaRepo) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = models.MetadataEntry{Key: key, Value: value, UpdatedAt: m.now().UTC()}
	return nil
}

func (m *memMetaRepo) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	return e.Value, ok, nil
}

func (m *memMetaRepo) Entry(ctx context.Context, key string) (*models.MetadataEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// stubClient is a scripted RemoteClient. It flags overlapping calls.
type stubClient struct {
	mu       sync.Mutex
	current  map[string]*models.SeriesPoint
	history  map[string]homeassistant.HistoryResult
	forecast json.RawMessage

	historyCalls int
	currentCalls int

	inFlight   atomic.Int32
	overlapped atomic.Bool
	delay      time.Duration
}

func (c *stubClient) enter() func() {
	if c.inFlight.Add(1) > 1 {
		c.overlapped.Store(true)
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return func() { c.inFlight.Add(-1) }
}

func (c *stubClient) FetchCurrent(ctx context.Context, entityID string) (*models.SeriesPoint, error) {
	defer c.enter()()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentCalls++
	p, ok := c.current[entityID]
	if !ok || p == nil {
		return nil, &homeassistant.FetchError{Op: "current", EntityID: entityID, Err: homeassistant.ErrNoValue}
	}
	cp := *p
	return &cp, nil
}

func (c *stubClient) FetchHistory(ctx context.Context, entityID string, w models.FetchWindow) homeassistant.HistoryResult {
	defer c.enter()()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.historyCalls++
	return c.history[entityID]
}

func (c *stubClient) FetchForecast(ctx context.Context, entityID string) (json.RawMessage, error) {
	if c.forecast == nil {
		return nil, errors.New("no forecast")
	}
	return c.forecast, nil
}
