package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dakino/household-service/config"
	"github.com/dakino/household-service/internal/infra/postgres"
	"github.com/dakino/household-service/internal/infra/redis"
	"github.com/dakino/household-service/internal/infra/server"
	"github.com/dakino/household-service/pkg/logger"
	goredis "github.com/go-redis/redis/v8"
)

func main() {
	mainContext := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	appLogger := logger.NewLogger(&cfg)
	var loggerProvider interface{ Shutdown(context.Context) error }
	if cfg.LogExportOTLP {
		observable, provider, err := logger.NewObservableLogger(mainContext, &cfg)
		if err != nil {
			appLogger.Error("failed to initialize otlp logger, using local output only", slog.String("error", err.Error()))
		} else {
			appLogger = observable
			loggerProvider = provider
		}
	}
	slog.SetDefault(appLogger)

	conn, err := postgres.Init(mainContext, cfg)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.DbAutoMigrate {
		if err := postgres.Migrate(mainContext, conn, appLogger); err != nil {
			slog.Error("failed to apply migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	var redisClient *goredis.Client
	if cfg.RedisEnabled {
		redisClient, err = redis.Init(mainContext, cfg)
		if err != nil {
			// the catalog cache is optional, reads fall back to postgres
			slog.Warn("redis unavailable, catalog cache disabled", slog.String("error", err.Error()))
			redisClient = nil
		}
	}

	srv, err := server.New(mainContext, &cfg, conn, redisClient, appLogger, loggerProvider)
	if err != nil {
		slog.Error("failed to initialize server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	sig := <-quit
	slog.Info("Received shutdown signal", slog.String("signal", sig.String()))

	srv.Shutdown()
}
