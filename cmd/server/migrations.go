package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"

	"github.com/kmatteson/domainintel/internal/config"
)

// migrationsDir is the path to the goose SQL migrations, relative to
// the working directory.
const migrationsDir = "migrations"

// executeMigration executes database migrations using goose.
// Supported commands: up, down, status.
func executeMigration(cfg *config.Config, command string) error {
	// Correlate all migration logs so the whole operation is traceable.
	correlationID := uuid.New().String()
	migrationLogger := slog.Default().With(
		"correlation_id", correlationID,
		"component", "migrations",
		"command", command,
	)

	if cfg.Database.URL == "" {
		return fmt.Errorf("database URL is empty: check your configuration")
	}

	startTime := time.Now()
	migrationLogger.Info("starting migration operation")

	goose.SetLogger(&slogGooseLogger{logger: migrationLogger})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	db, err := setupDatabase(cfg, migrationLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			migrationLogger.Error("failed to close database connection", "error", err)
		}
	}()

	switch command {
	case "up":
		err = goose.Up(db, migrationsDir)
	case "down":
		err = goose.Down(db, migrationsDir)
	case "status":
		err = goose.Status(db, migrationsDir)
	default:
		return fmt.Errorf("unknown migration command %q (want up, down, or status)", command)
	}
	if err != nil {
		return fmt.Errorf("goose %s failed: %w", command, err)
	}

	migrationLogger.Info("migration operation completed",
		"duration_ms", time.Since(startTime).Milliseconds())
	return nil
}

// slogGooseLogger adapts goose's logger interface to slog.
type slogGooseLogger struct {
	logger *slog.Logger
}

func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...))
}
