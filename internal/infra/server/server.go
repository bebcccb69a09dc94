package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dakino/household-service/config"
	"github.com/dakino/household-service/internal/core/ai"
	"github.com/dakino/household-service/internal/core/cloud"
	"github.com/dakino/household-service/internal/core/households"
	"github.com/dakino/household-service/internal/core/inventory"
	"github.com/dakino/household-service/internal/core/products"
	"github.com/dakino/household-service/internal/core/purchases"
	"github.com/dakino/household-service/internal/core/tickets"
	"github.com/dakino/household-service/internal/infra/postgres"
	rediscache "github.com/dakino/household-service/internal/infra/redis"
	"github.com/dakino/household-service/pkg/telemetry"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
	"google.golang.org/grpc"
)

type Server struct {
	cfg            *config.Config
	app            *fiber.App
	db             postgres.DB
	redis          *redis.Client
	logger         *slog.Logger
	traceProvider  *sdktrace.TracerProvider
	metricProvider *metric.MeterProvider
	loggerProvider interface{ Shutdown(context.Context) error } // log.LoggerProvider interface
	wg             sync.WaitGroup
}

// New sets up telemetry, wires the domain services and builds the HTTP app.
// redisClient and loggerProvider may be nil.
func New(ctx context.Context, cfg *config.Config, dbConn *pgxpool.Pool, redisClient *redis.Client,
	logger *slog.Logger, loggerProvider interface{ Shutdown(context.Context) error }) (*Server, error) {
	traceExporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jaeger exporter: %w", err)
	}

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OtlpEndpoint),
		otlpmetricgrpc.WithInsecure(),
		otlpmetricgrpc.WithDialOption(grpc.WithUserAgent(cfg.ServerName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize otlp exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(cfg.ServerName),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	provider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(metricExporter, metric.WithInterval(15*time.Second))),
	)
	otel.SetMeterProvider(provider)

	if err = telemetry.InitTelemetry(provider, dbConn); err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	instrumentedConn, err := telemetry.NewInstrumentedPool(provider, dbConn)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumented pool: %w", err)
	}

	svc, err := buildServices(cfg, instrumentedConn, redisClient, logger)
	if err != nil {
		return nil, err
	}

	app, err := newApp(cfg, svc, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build http app: %w", err)
	}

	return &Server{
		cfg:            cfg,
		app:            app,
		db:             instrumentedConn,
		redis:          redisClient,
		logger:         logger,
		traceProvider:  tp,
		metricProvider: provider,
		loggerProvider: loggerProvider,
	}, nil
}

func buildServices(cfg *config.Config, db postgres.DB, redisClient *redis.Client, logger *slog.Logger) (Services, error) {
	var catalogCache products.CatalogCache
	if redisClient != nil {
		catalogCache = rediscache.NewJSONCache(redisClient, cfg.ServerName)
	}

	productService := products.NewService(db, catalogCache, cfg.CatalogCacheTTL(), logger)
	householdService := households.NewService(db, logger)
	inventoryService := inventory.NewService(db, logger)
	purchaseService := purchases.NewService(db, productService, logger)

	archive, err := cloud.NewService(cfg.GetCloudConfig(), logger)
	if err != nil {
		return Services{}, fmt.Errorf("failed to initialize ticket archive: %w", err)
	}
	if !archive.Enabled() {
		logger.Info("Ticket photo archive disabled", "provider", cfg.CloudProvider)
	}

	vision := ai.NewOpenAIVisionClient(cfg.GetVisionConfig(), logger)
	ticketService := tickets.NewService(vision, archive, productService,
		tickets.NewPostgresScanStore(db), cfg, logger)

	return Services{
		Households: householdService,
		Products:   productService,
		Tickets:    ticketService,
		Purchases:  purchaseService,
		Inventory:  inventoryService,
		Archive:    archive,
		Health:     db,
	}, nil
}

func (s *Server) Start() {
	s.logger.Info("Starting HTTP server", slog.String("address", s.cfg.ServerAddress))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.app.Listen(s.cfg.ServerAddress); err != nil {
			s.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()
}

func (s *Server) Shutdown() {
	s.logger.Info("Shutting down server")

	if err := s.app.ShutdownWithTimeout(10 * time.Second); err != nil {
		s.logger.Error("Error shutting down HTTP server", slog.String("error", err.Error()))
	}

	// Wait for all goroutines to finish
	s.wg.Wait()

	// Shutdown telemetry providers
	if err := s.traceProvider.Shutdown(context.Background()); err != nil {
		s.logger.Error("Error shutting down trace provider", slog.String("error", err.Error()))
	}

	if err := s.metricProvider.Shutdown(context.Background()); err != nil {
		s.logger.Error("Error shutting down metric provider", slog.String("error", err.Error()))
	}

	if s.loggerProvider != nil {
		if err := s.loggerProvider.Shutdown(context.Background()); err != nil {
			s.logger.Error("Error shutting down log provider", slog.String("error", err.Error()))
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Error closing redis client", slog.String("error", err.Error()))
		}
	}

	s.db.Close()

	s.logger.Info("Server shut down successfully")
}
