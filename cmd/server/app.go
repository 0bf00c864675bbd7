package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kmatteson/domainintel/internal/config"
	"github.com/kmatteson/domainintel/internal/fetch"
	"github.com/kmatteson/domainintel/internal/platform/gemini"
	"github.com/kmatteson/domainintel/internal/platform/postgres"
	"github.com/kmatteson/domainintel/internal/platform/redisq"
	"github.com/kmatteson/domainintel/internal/service"
	"github.com/kmatteson/domainintel/internal/store"
	"github.com/kmatteson/domainintel/internal/store/memstore"
	"github.com/kmatteson/domainintel/internal/worker"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// Connections; nil when the selected backend does not need them.
	db  *sql.DB
	rdb *redis.Client

	// Stores (interfaces, so the queue backend is swappable)
	taskStore     store.TaskStore
	jobStore      store.JobStore
	approvalStore store.ApprovalStore
	profileStore  store.ProfileStore

	// Services
	jobService      service.JobService
	approvalService service.ApprovalService

	// Processing
	pool       *worker.Pool
	supervisor *worker.Supervisor

	// stopCh is closed when the supervisor raises the stop signal.
	stopCh chan struct{}
}

// newApplication creates the application with all dependencies
// initialized for the configured queue backend.
func newApplication(cfg *config.Config, appLogger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: appLogger,
		stopCh: make(chan struct{}),
	}

	if err := app.setupStores(); err != nil {
		return nil, err
	}

	app.jobService = service.NewJobService(app.jobStore, app.taskStore, app.approvalStore, appLogger)
	app.approvalService = service.NewApprovalService(app.approvalStore, app.profileStore, appLogger)

	fetcher := fetch.NewHTTPFetcher(fetch.Config{
		Timeout:       time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
		MaxTextLength: cfg.Fetch.MaxTextLength,
		UserAgent:     cfg.Fetch.UserAgent,
	})

	extractor, err := gemini.NewGeminiExtractor(context.Background(), appLogger, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create extractor: %w", err)
	}

	app.pool = worker.NewPool(
		app.taskStore,
		app.jobStore,
		fetcher,
		extractor,
		app.profileStore,
		app.approvalService,
		worker.NewProgress(),
		worker.PoolConfig{
			WorkerCount:     cfg.Worker.Count,
			ClaimBatchSize:  cfg.Worker.ClaimBatchSize,
			PollInterval:    time.Duration(cfg.Worker.PollIntervalSeconds) * time.Second,
			FetchTimeout:    time.Duration(cfg.Worker.FetchTimeoutSeconds) * time.Second,
			ExtractTimeout:  time.Duration(cfg.Worker.ExtractTimeoutSeconds) * time.Second,
			ApprovalEnabled: cfg.Approval.Enabled,
		},
		appLogger,
	)

	app.supervisor = worker.NewSupervisor(
		app.taskStore,
		worker.SupervisorConfig{
			SweepInterval:    time.Duration(cfg.Supervisor.SweepIntervalSeconds) * time.Second,
			LeaseTimeout:     time.Duration(cfg.Supervisor.LeaseTimeoutSeconds) * time.Second,
			StopFile:         cfg.Supervisor.StopFile,
			ShutdownWhenIdle: cfg.Supervisor.ShutdownWhenIdle,
		},
		func(reason string) {
			appLogger.Info("stop signal received", "reason", reason)
			close(app.stopCh)
		},
		appLogger,
	)

	return app, nil
}

// setupStores wires the store implementations for the configured queue
// backend. The task queue follows worker.queue_backend; jobs, approval
// entries, and profiles live in Postgres when a database URL is
// configured and in memory otherwise.
func (app *application) setupStores() error {
	cfg := app.config

	switch cfg.Worker.QueueBackend {
	case "memory":
		mem := memstore.New()
		app.taskStore = mem
		app.jobStore = mem
		app.approvalStore = mem
		app.profileStore = mem
		return nil

	case "postgres":
		db, err := setupDatabase(cfg, app.logger)
		if err != nil {
			return err
		}
		app.db = db
		app.taskStore = postgres.NewPostgresTaskStore(db)
		app.jobStore = postgres.NewPostgresJobStore(db)
		app.approvalStore = postgres.NewPostgresApprovalStore(db)
		app.profileStore = postgres.NewPostgresProfileStore(db)
		return nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to ping redis: %w", err)
		}
		app.logger.Info("redis connection established", "addr", cfg.Redis.Addr)

		app.rdb = rdb
		app.taskStore = redisq.NewRedisTaskStore(rdb)

		// Redis carries only the task queue; the record stores go to
		// Postgres when configured, memory otherwise.
		if cfg.Database.URL != "" {
			db, err := setupDatabase(cfg, app.logger)
			if err != nil {
				return err
			}
			app.db = db
			app.jobStore = postgres.NewPostgresJobStore(db)
			app.approvalStore = postgres.NewPostgresApprovalStore(db)
			app.profileStore = postgres.NewPostgresProfileStore(db)
		} else {
			mem := memstore.New()
			app.jobStore = mem
			app.approvalStore = mem
			app.profileStore = mem
		}
		return nil

	default:
		return fmt.Errorf("unknown queue backend %q", cfg.Worker.QueueBackend)
	}
}

// close releases the application's connections.
func (app *application) close() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database connection", "error", err)
		}
	}
	if app.rdb != nil {
		if err := app.rdb.Close(); err != nil {
			app.logger.Error("failed to close redis connection", "error", err)
		}
	}
}
