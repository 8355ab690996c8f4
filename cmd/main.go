package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sensor_dashboard/internal/config"
	"sensor_dashboard/internal/handlers"
	"sensor_dashboard/internal/homeassistant"
	"sensor_dashboard/internal/logger"
	"sensor_dashboard/internal/metrics"
	"sensor_dashboard/internal/repository"
	"sensor_dashboard/internal/repository/db"
	"sensor_dashboard/internal/scheduler"
	"sensor_dashboard/internal/server"
	"sensor_dashboard/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const pingTimeout = 10 * time.Second

func main() {
	// load .env, configs/config.yml and environment
	cfg, err := config.Load()
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("invalid configuration", "err", err)
	}

	log := logger.Get(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	// open DB
	store, err := openDB(cfg, log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewRecorder(reg)

	repos := repository.NewRepository(store, cfg.SeriesNames())
	client := homeassistant.NewClient(homeassistant.Config{
		BaseURL:        cfg.HomeAssistant.URL,
		Token:          cfg.HomeAssistant.Token,
		CurrentTimeout: cfg.HomeAssistant.CurrentTimeout,
		HistoryTimeout: cfg.HomeAssistant.HistoryTimeout,
		ChunkSpan:      cfg.HomeAssistant.ChunkSpan,
		RequestDelay:   cfg.HomeAssistant.RequestDelay,
	}, log.With("component", "homeassistant"))
	services := service.NewService(repos, client, service.Options{
		Sensors:          cfg.Sensors(),
		WeatherEntity:    cfg.HomeAssistant.WeatherEntity,
		UpdateInterval:   cfg.Sync.UpdateInterval,
		BackfillLookback: cfg.Sync.Lookback,
		Location:         cfg.Location(),
	}, log.With("component", "ingestion"), rec)
	apiHandler := handlers.NewHandler(services, log, rec)

	// context for background jobs
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	probeRemote(ctx, client, log)

	// start ingestion jobs
	sched := scheduler.New(services.Ingestion, scheduler.Config{
		PollInterval:    cfg.Sync.UpdateInterval,
		HistoryInterval: cfg.Sync.HistoryInterval,
		InitialDelay:    cfg.Sync.InitialDelay,
	}, log.With("component", "scheduler"))
	if err := sched.Start(ctx); err != nil {
		log.Fatalw("failed to start scheduler", "err", err)
	}

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, server.Options{
		Host:         cfg.HTTP.Host,
		Port:         cfg.HTTP.Port,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}, apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, sched, srv, cfg.HTTP.ShutdownTimeout, log)
}

// openDB initializes the SQLite database with one table per configured series.
func openDB(cfg *config.Config, log *logger.Logger) (*sql.DB, error) {
	log.Infow("opening sqlite", "path", cfg.DatabasePath, "series", cfg.SeriesNames())
	return db.InitDB(cfg.DatabasePath, cfg.SeriesNames())
}

// probeRemote checks connectivity once. Failure is logged; jobs retry on schedule.
func probeRemote(ctx context.Context, client *homeassistant.Client, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		log.Warnw("home_assistant_unreachable", "err", err)
		return
	}
	log.Infow("home_assistant_reachable")
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, opts server.Options, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		log.Infow("http server listening", "host", opts.Host, "port", opts.Port)
		if err := srv.Run(opts, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, sched *scheduler.Scheduler, srv *server.Server, timeout time.Duration, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop scheduling and abort in-flight remote calls
	sched.Stop()
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
