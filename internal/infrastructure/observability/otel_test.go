package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestInitLoggerDisabledWritesJSONAtLevel(t *testing.T) {
	var buf bytes.Buffer
	lp, logger, err := InitLogger(context.Background(), Config{LogLevel: "warn"}, &buf)
	require.NoError(t, err)
	defer func() { _ = lp.Shutdown(context.Background()) }()

	logger.Info("hidden")
	logger.Warn("list diverged", "collection", "todos")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "list diverged", rec["msg"])
	assert.Equal(t, "todos", rec["collection"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestLevelHandlerFilters(t *testing.T) {
	var buf bytes.Buffer
	h := &levelHandler{level: slog.LevelError, Handler: slog.NewJSONHandler(&buf, nil)}
	logger := slog.New(h).With("scope", "Mon").WithGroup("sync")

	logger.Warn("dropped")
	logger.Error("kept", "failures", 2)

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"scope":"Mon"`)
	assert.Contains(t, buf.String(), `"sync":{"failures":2}`)
}

func TestProvidersDisabled(t *testing.T) {
	tp, err := InitTracerProvider(context.Background(), Config{})
	require.NoError(t, err)
	mp, err := InitMeterProvider(context.Background(), Config{})
	require.NoError(t, err)

	assert.NoError(t, tp.Shutdown(context.Background()))
	assert.NoError(t, mp.Shutdown(context.Background()))
}
