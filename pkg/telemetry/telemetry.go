package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// InitTelemetry starts Go runtime instrumentation, registers connection pool
// gauges and binds the business metrics to the given provider.
func InitTelemetry(provider *metric.MeterProvider, pool *pgxpool.Pool) error {
	err := runtime.Start(
		runtime.WithMeterProvider(provider),
		runtime.WithMinimumReadMemStatsInterval(15*time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to start runtime instrumentation: %w", err)
	}

	if pool != nil {
		if err := registerPoolMetrics(provider, pool); err != nil {
			return fmt.Errorf("failed to register pool metrics: %w", err)
		}
	}

	return InitBusinessMetrics(provider)
}

func registerPoolMetrics(provider *metric.MeterProvider, pool *pgxpool.Pool) error {
	meter := provider.Meter("db_pool")

	acquired, err := meter.Int64ObservableGauge("db.pool.acquired_conns",
		api.WithDescription("Connections currently in use"))
	if err != nil {
		return err
	}

	idle, err := meter.Int64ObservableGauge("db.pool.idle_conns",
		api.WithDescription("Idle connections in the pool"))
	if err != nil {
		return err
	}

	total, err := meter.Int64ObservableGauge("db.pool.total_conns",
		api.WithDescription("Total connections in the pool"))
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o api.Observer) error {
		stat := pool.Stat()
		o.ObserveInt64(acquired, int64(stat.AcquiredConns()))
		o.ObserveInt64(idle, int64(stat.IdleConns()))
		o.ObserveInt64(total, int64(stat.TotalConns()))
		return nil
	}, acquired, idle, total)

	return err
}
