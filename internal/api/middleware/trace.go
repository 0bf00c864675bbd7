// Package middleware contains the HTTP middleware applied to every
// route.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/kmatteson/domainintel/internal/api/shared"
	"github.com/kmatteson/domainintel/internal/platform/logger"
)

// TraceMiddleware adds a trace ID to the request context and stores a
// logger scoped to that trace ID alongside it, so everything downstream
// that logs via logger.FromContext tags its lines with the trace ID.
// This middleware should be applied early in the middleware chain to
// ensure that all subsequent handlers have access to the trace ID.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())

		traceID := shared.GetTraceID(ctx)

		log := slog.With(slog.String("trace_id", traceID))
		ctx = logger.WithLogger(ctx, log)

		log.Debug("request started",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
