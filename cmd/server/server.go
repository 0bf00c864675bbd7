package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// shutdownTimeout bounds how long in-flight HTTP requests may take
// during graceful shutdown. Workers are stopped separately and always
// finish their current task.
const shutdownTimeout = 10 * time.Second

// run starts the worker pool, the supervisor, and the HTTP server, then
// blocks until an OS signal or the supervisor's stop signal triggers
// graceful shutdown.
func (app *application) run() error {
	app.pool.Start()
	app.supervisor.Start()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		app.logger.Info("shutdown signal received", "signal", sig.String())
	case <-app.stopCh:
		app.logger.Info("supervisor requested shutdown")
	case err := <-serverErr:
		app.stopWorkers()
		return fmt.Errorf("http server failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		app.logger.Error("http server shutdown failed", "error", err)
	}

	app.stopWorkers()

	app.logger.Info("shutdown complete")
	return nil
}

// stopWorkers halts the supervisor and the pool. Pool.Stop waits for
// in-flight tasks, so this can take up to one fetch+extract cycle.
func (app *application) stopWorkers() {
	app.supervisor.Stop()
	app.pool.Stop()
}
