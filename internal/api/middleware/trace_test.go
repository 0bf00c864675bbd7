package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmatteson/domainintel/internal/api/shared"
	"github.com/kmatteson/domainintel/internal/platform/logger"
)

func TestTraceMiddlewareScopesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	var seenTraceID string
	handler := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenTraceID = shared.GetTraceID(r.Context())
		logger.FromContext(r.Context()).Info("handling request")
		w.WriteHeader(http.StatusNoContent)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))

	require.Equal(t, http.StatusNoContent, w.Code)
	require.NotEmpty(t, seenTraceID)

	// The handler's log line must carry the trace ID assigned by the
	// middleware, proving the scoped logger travelled via the context.
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "handling request", line["msg"])
	assert.Equal(t, seenTraceID, line["trace_id"])
}
