package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"sensor_dashboard/internal/logger"
	"sensor_dashboard/internal/metrics"
	"sensor_dashboard/internal/models"
	"sensor_dashboard/internal/repository"
	"sensor_dashboard/internal/timeutil"

	"github.com/google/uuid"
)

const (
	defaultUpdateInterval   = 5 * time.Minute
	defaultBackfillLookback = 30 * 24 * time.Hour

	// data newer than this many update intervals makes the startup backfill redundant
	freshnessIntervals = 2

	backfillInsertedKeyPrefix = "backfill_inserted_"
)

// IngestionService drives polling and chunked history backfill.
type IngestionService struct {
	// mu serializes poll and backfill runs; store reads never take it.
	mu sync.Mutex

	series  repository.SeriesRepo
	meta    repository.MetadataRepo
	runs    repository.SyncRunRepo
	client  RemoteClient
	sensors []models.SensorBinding
	weather string

	interval time.Duration
	lookback time.Duration

	running atomic.Bool
	now     func() time.Time
	log     *logger.Logger
	metrics *metrics.Recorder
}

func NewIngestionService(repos *repository.Repository, client RemoteClient, opts Options, log *logger.Logger, rec *metrics.Recorder) *IngestionService {
	if log == nil {
		log = logger.Nop()
	}
	if opts.UpdateInterval <= 0 {
		opts.UpdateInterval = defaultUpdateInterval
	}
	if opts.BackfillLookback <= 0 {
		opts.BackfillLookback = defaultBackfillLookback
	}
	return &IngestionService{
		series:   repos.Series,
		meta:     repos.Metadata,
		runs:     repos.SyncRuns,
		client:   client,
		sensors:  append([]models.SensorBinding(nil), opts.Sensors...),
		weather:  opts.WeatherEntity,
		interval: opts.UpdateInterval,
		lookback: opts.BackfillLookback,
		now:      time.Now,
		log:      log,
		metrics:  rec,
	}
}

func (s *IngestionService) SetRunning(running bool) { s.running.Store(running) }

// InitialSync runs once at startup.
func (s *IngestionService) InitialSync(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	backfilled := false
	if s.hasRecentData(ctx) {
		s.log.Infow("initial_backfill_skipped", "reason", "recent data present")
	} else {
		s.backfillLocked(ctx, s.lookback)
		backfilled = true
	}
	s.pollLocked(ctx)
	return backfilled
}

// hasRecentData reports whether every series has a point newer than
// freshnessIntervals update intervals. Any store error counts as stale.
func (s *IngestionService) hasRecentData(ctx context.Context) bool {
	if len(s.sensors) == 0 {
		return true
	}
	cutoff := s.now().Add(-freshnessIntervals * s.interval)
	for _, b := range s.sensors {
		p, err := s.series.Latest(ctx, b.Series)
		if err != nil {
			s.log.Warnw("latest_lookup_failed", "series", b.Series, "err", err)
			return false
		}
		if p == nil || p.Timestamp.Before(cutoff) {
			return false
		}
	}
	return true
}

// PollCurrent fetches and stores the current reading of every series.
func (s *IngestionService) PollCurrent(ctx context.Context) models.SyncReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollLocked(ctx)
}

func (s *IngestionService) pollLocked(ctx context.Context) models.SyncReport {
	rep := models.SyncReport{RunID: uuid.NewString(), Kind: RunKindPoll, Started: s.now().UTC()}

	fetched := false
	for _, b := range s.sensors {
		c := models.SyncCounters{Series: b.Series}

		p, err := s.client.FetchCurrent(ctx, b.EntityID)
		if err != nil {
			c.FetchFailed = true
			s.log.Warnw("poll_fetch_failed", "series", b.Series, "entity_id", b.EntityID, "err", err)
			rep.Series = append(rep.Series, c)
			continue
		}
		fetched = true
		c.Fetched = 1
		s.storePoints(ctx, b.Series, []models.SeriesPoint{*p}, &c)
		s.metrics.LastValue(b.Series.String(), p.Value)
		rep.Series = append(rep.Series, c)
	}

	if fetched {
		s.setMeta(ctx, models.MetaLastFetchTime, timeutil.FormatStorage(s.now()))
	}
	s.refreshForecast(ctx)

	rep.Finished = s.now().UTC()
	s.finishRun(ctx, rep)
	return rep
}

func (s *IngestionService) refreshForecast(ctx context.Context) {
	if s.weather == "" {
		return
	}
	raw, err := s.client.FetchForecast(ctx, s.weather)
	if err != nil {
		s.log.Warnw("forecast_fetch_failed", "entity_id", s.weather, "err", err)
		return
	}
	s.setMeta(ctx, models.MetaLatestForecast, string(raw))
}

// RefreshHistory re-syncs the whole configured lookback window.
func (s *IngestionService) RefreshHistory(ctx context.Context) models.SyncReport {
	return s.Backfill(ctx, s.lookback)
}

// Backfill imports history for [now-lookback, now] for every series. Failed
// chunks are left for the next scheduled run.
func (s *IngestionService) Backfill(ctx context.Context, lookback time.Duration) models.SyncReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backfillLocked(ctx, lookback)
}

func (s *IngestionService) backfillLocked(ctx context.Context, lookback time.Duration) models.SyncReport {
	if lookback <= 0 {
		lookback = s.lookback
	}
	now := s.now().UTC()
	rep := models.SyncReport{RunID: uuid.NewString(), Kind: RunKindBackfill, Started: now}
	window := models.FetchWindow{Start: now.Add(-lookback), End: now}

	s.setMeta(ctx, models.MetaLastBackfillRun, rep.RunID)
	s.log.Infow("backfill_started",
		"run_id", rep.RunID,
		"start", timeutil.FormatStorage(window.Start),
		"end", timeutil.FormatStorage(window.End),
		"series", len(s.sensors),
	)

	anyChunkOK := false
	for _, b := range s.sensors {
		if ctx.Err() != nil {
			break
		}
		res := s.client.FetchHistory(ctx, b.EntityID, window)

		c := models.SyncCounters{
			Series:       b.Series,
			Fetched:      len(res.Points),
			ChunksTotal:  res.Chunks,
			ChunksFailed: len(res.Failed),
		}
		if res.Succeeded() > 0 {
			anyChunkOK = true
		}
		s.metrics.Chunks(b.Series.String(), metrics.ResultOK, res.Succeeded())
		s.metrics.Chunks(b.Series.String(), metrics.ResultFailed, len(res.Failed))

		s.storePoints(ctx, b.Series, res.Points, &c)
		rep.Series = append(rep.Series, c)

		s.log.Infow("backfill_series_done",
			"run_id", rep.RunID,
			"series", b.Series,
			"fetched", c.Fetched,
			"inserted", c.Inserted,
			"skipped", c.Skipped,
			"failed", c.Failed,
			"chunks", c.ChunksTotal,
			"chunks_failed", c.ChunksFailed,
			"records_unusable", res.Skipped,
		)
		if err := res.Err(); err != nil {
			s.log.Warnw("backfill_series_partial", "run_id", rep.RunID, "series", b.Series, "err", err)
		}
		s.setMeta(ctx, backfillInsertedKeyPrefix+b.Series.String(), strconv.Itoa(c.Inserted))
	}

	if anyChunkOK {
		s.setMeta(ctx, models.MetaLastHistoricalFetch, timeutil.FormatStorage(s.now()))
	} else if len(s.sensors) > 0 {
		s.log.Errorw("backfill_all_chunks_failed", "run_id", rep.RunID)
	}

	rep.Finished = s.now().UTC()
	s.finishRun(ctx, rep)
	return rep
}

// storePoints inserts points one by one. Store errors count as failed and do
// not stop the batch; a cancelled context does.
func (s *IngestionService) storePoints(ctx context.Context, series models.Series, points []models.SeriesPoint, c *models.SyncCounters) {
	for _, p := range points {
		if ctx.Err() != nil {
			return
		}
		added, err := s.series.Insert(ctx, series, p)
		switch {
		case err != nil:
			c.Failed++
			if !errors.Is(err, context.Canceled) {
				s.log.Errorw("store_insert_failed", "series", series, "timestamp", timeutil.FormatStorage(p.Timestamp), "err", err)
			}
		case added:
			c.Inserted++
		default:
			c.Skipped++
		}
	}
	s.metrics.Points(series.String(), metrics.ResultInserted, c.Inserted)
	s.metrics.Points(series.String(), metrics.ResultSkipped, c.Skipped)
	s.metrics.Points(series.String(), metrics.ResultFailed, c.Failed)
}

func (s *IngestionService) finishRun(ctx context.Context, rep models.SyncReport) {
	s.metrics.SyncDuration(rep.Kind, rep.Finished.Sub(rep.Started))
	if s.runs == nil {
		return
	}
	// record the run even if ctx was cancelled mid-way
	if err := s.runs.Append(context.WithoutCancel(ctx), rep); err != nil {
		s.log.Warnw("sync_run_record_failed", "run_id", rep.RunID, "err", err)
	}
}

func (s *IngestionService) setMeta(ctx context.Context, key, value string) {
	if err := s.meta.Set(ctx, key, value); err != nil {
		s.log.Warnw("metadata_write_failed", "key", key, "err", err)
	}
}

// Status reports fetch bookkeeping and what the store holds per series.
func (s *IngestionService) Status(ctx context.Context) (models.FetcherStatus, error) {
	st := models.FetcherStatus{
		Running:           s.running.Load(),
		UpdateInterval:    s.interval,
		UpdateIntervalSec: int64(s.interval / time.Second),
	}

	var err error
	if st.LastFetchTime, err = s.metaTime(ctx, models.MetaLastFetchTime); err != nil {
		return models.FetcherStatus{}, err
	}
	if st.LastHistoricalFetch, err = s.metaTime(ctx, models.MetaLastHistoricalFetch); err != nil {
		return models.FetcherStatus{}, err
	}
	if v, ok, err := s.meta.Get(ctx, models.MetaLastBackfillRun); err != nil {
		return models.FetcherStatus{}, err
	} else if ok {
		st.LastBackfillRun = v
	}

	for _, series := range s.series.Series() {
		n, err := s.series.Count(ctx, series)
		if err != nil {
			return models.FetcherStatus{}, err
		}
		lo, hi, err := s.series.Bounds(ctx, series)
		if err != nil {
			return models.FetcherStatus{}, err
		}
		st.Series = append(st.Series, models.SeriesStats{Series: series, Count: n, Earliest: lo, Latest: hi})
	}
	return st, nil
}

func (s *IngestionService) metaTime(ctx context.Context, key string) (*time.Time, error) {
	v, ok, err := s.meta.Get(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	t, err := timeutil.ParseISO(v)
	if err != nil {
		// stale or hand-edited value; report as unknown
		return nil, nil
	}
	return &t, nil
}
