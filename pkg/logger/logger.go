package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dakino/household-service/config"
)

// Version is stamped at build time with -ldflags "-X .../pkg/logger.Version=..."
var Version = "dev"

// NewLogger creates the local stdout logger in the configured format and level
func NewLogger(cfg *config.Config) *slog.Logger {
	return slog.New(newLocalHandler(cfg, os.Stdout)).With(serviceAttrs(cfg)...)
}

func newLocalHandler(cfg *config.Config, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     cfg.GetSlogLevel(),
		AddSource: cfg.GetSlogLevel() == slog.LevelDebug,
	}

	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func serviceAttrs(cfg *config.Config) []any {
	return []any{
		"service", cfg.ServerName,
		"version", Version,
		"environment", cfg.Environment,
	}
}
