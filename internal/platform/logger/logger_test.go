package logger

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithLoggerRoundTrip(t *testing.T) {
	scoped := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := WithLogger(context.Background(), scoped)
	assert.Same(t, scoped, FromContext(ctx))
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}
