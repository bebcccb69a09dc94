package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/dakino/household-service/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalHandlerJSON(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"

	var buf bytes.Buffer
	log := slog.New(newLocalHandler(&cfg, &buf)).With(serviceAttrs(&cfg)...)

	log.Info("dropped")
	log.Warn("kept", "household_id", "h1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "h1", entry["household_id"])
	assert.Equal(t, cfg.ServerName, entry["service"])
	assert.Equal(t, "local", entry["environment"])
}

func TestLocalHandlerText(t *testing.T) {
	cfg := config.DefaultConfig()

	var buf bytes.Buffer
	log := slog.New(newLocalHandler(&cfg, &buf))
	log.Info("hello", "items", 3)

	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "items=3")
}

type recordingHandler struct {
	records []slog.Record
	level   slog.Level
}

func (h *recordingHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }
func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.records = append(h.records, r)
	return nil
}
func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func TestMultiHandlerFansOut(t *testing.T) {
	debug := &recordingHandler{level: slog.LevelDebug}
	errorsOnly := &recordingHandler{level: slog.LevelError}
	log := slog.New(&MultiHandler{handlers: []slog.Handler{debug, errorsOnly}})

	log.Debug("d")
	log.Error("e")

	assert.Len(t, debug.records, 2)
	assert.Len(t, errorsOnly.records, 1)
	assert.False(t, (&MultiHandler{handlers: []slog.Handler{errorsOnly}}).Enabled(context.Background(), slog.LevelInfo))
}
