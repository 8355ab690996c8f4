// Package scheduler drives the ingestion jobs: a recurring poll, a recurring
// history refresh and a delayed one-shot initial sync.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"sensor_dashboard/internal/logger"
	"sensor_dashboard/internal/service"

	"github.com/go-co-op/gocron"
)

const (
	defaultPollInterval    = 5 * time.Minute
	defaultHistoryInterval = 12 * time.Hour
	defaultInitialDelay    = 5 * time.Second
)

type Config struct {
	PollInterval    time.Duration
	HistoryInterval time.Duration
	InitialDelay    time.Duration
}

// Scheduler periodically runs ingestion against the configured series.
type Scheduler struct {
	cron   *gocron.Scheduler
	ingest service.Ingestion
	cfg    Config
	log    *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a Scheduler. Zero durations in cfg fall back to defaults.
func New(ingest service.Ingestion, cfg Config, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.HistoryInterval <= 0 {
		cfg.HistoryInterval = defaultHistoryInterval
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = defaultInitialDelay
	}
	return &Scheduler{
		cron:   gocron.NewScheduler(time.UTC),
		ingest: ingest,
		cfg:    cfg,
		log:    log,
	}
}

// Start registers the jobs and starts the scheduler. Jobs run with a context
// derived from parent that Stop cancels.
func (s *Scheduler) Start(parent context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("scheduler already started")
	}
	ctx, cancel := context.WithCancel(parent)

	_, err := s.cron.Every(s.cfg.InitialDelay).LimitRunsTo(1).WaitForSchedule().Tag("initial_sync").Do(func() {
		s.log.Infow("initial_sync_started")
		backfilled := s.ingest.InitialSync(ctx)
		s.log.Infow("initial_sync_done", "backfilled", backfilled)
	})
	if err != nil {
		cancel()
		return err
	}

	_, err = s.cron.Every(s.cfg.PollInterval).SingletonMode().WaitForSchedule().Tag("poll").Do(func() {
		rep := s.ingest.PollCurrent(ctx)
		s.log.Infow("poll_done", "run_id", rep.RunID, "inserted", rep.Inserted())
	})
	if err != nil {
		cancel()
		s.cron.Clear()
		return err
	}

	_, err = s.cron.Every(s.cfg.HistoryInterval).SingletonMode().WaitForSchedule().Tag("history_refresh").Do(func() {
		rep := s.ingest.RefreshHistory(ctx)
		s.log.Infow("history_refresh_done", "run_id", rep.RunID, "inserted", rep.Inserted())
	})
	if err != nil {
		cancel()
		s.cron.Clear()
		return err
	}

	s.cancel = cancel
	s.cron.StartAsync()
	s.ingest.SetRunning(true)
	s.log.Infow("scheduler_started",
		"poll_interval", s.cfg.PollInterval.String(),
		"history_interval", s.cfg.HistoryInterval.String(),
		"initial_delay", s.cfg.InitialDelay.String(),
	)
	return nil
}

// Stop cancels in-flight jobs and stops scheduling new ones. It is safe to
// call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.cron.Stop()
	s.ingest.SetRunning(false)
	s.log.Infow("scheduler_stopped")
}
