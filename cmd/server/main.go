// Package main implements the entry point for the domainintel server:
// the task coordination layer plus worker pool for batch company
// profile extraction from website domains.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/kmatteson/domainintel/internal/config"
	"github.com/kmatteson/domainintel/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String("migrate", "",
		"run database migrations instead of serving (up, down, status)")
	flag.Parse()

	cfg, appLogger, err := initialize()
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if *migrateCmd != "" {
		if err := executeMigration(cfg, *migrateCmd); err != nil {
			appLogger.Error("migration failed", "command", *migrateCmd, "error", err)
			os.Exit(1)
		}
		return
	}

	app, err := newApplication(cfg, appLogger)
	if err != nil {
		appLogger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer app.close()

	if err := app.run(); err != nil {
		appLogger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// initialize loads configuration and sets up structured logging.
func initialize() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(logger.LoggerConfig{Level: cfg.Server.LogLevel})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"queue_backend", cfg.Worker.QueueBackend,
		"worker_count", cfg.Worker.Count,
		"approval_enabled", cfg.Approval.Enabled)

	return cfg, appLogger, nil
}
