package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/dakino/household-service/config"
	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogfiber "github.com/samber/slog-fiber"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"
)

type httpMetrics struct {
	requests api.Int64Counter
	duration api.Float64Histogram
}

func newHTTPMetrics(meter api.Meter) (*httpMetrics, error) {
	requests, err := meter.Int64Counter("http.server.requests.total",
		api.WithDescription("Total HTTP requests by route and status"))
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("http.server.request.duration",
		api.WithDescription("HTTP request duration in milliseconds"),
		api.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &httpMetrics{requests: requests, duration: duration}, nil
}

// withMetrics records request count and latency keyed by the matched route
func withMetrics(m *httpMetrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = errorStatus(err)
		}
		attrs := api.WithAttributes(
			attribute.String("method", c.Method()),
			attribute.String("path", c.Route().Path),
			attribute.Int("status_code", status),
		)

		m.requests.Add(c.UserContext(), 1, attrs)
		m.duration.Record(c.UserContext(), float64(time.Since(start).Milliseconds()), attrs)

		return err
	}
}

// newApp builds the fiber app with every middleware and route registered
func newApp(cfg *config.Config, svc Services, logger *slog.Logger) (*fiber.App, error) {
	fiberCfg := cfg.Fiber()
	fiberCfg.ErrorHandler = newErrorHandler(logger)
	app := fiber.New(fiberCfg)

	metrics, err := newHTTPMetrics(otel.Meter("http"))
	if err != nil {
		return nil, err
	}

	initGlobalMiddlewares(app, cfg, logger, metrics)
	registerHttpRoutes(app, cfg, svc, logger)
	return app, nil
}

func initGlobalMiddlewares(app *fiber.App, cfg *config.Config, logger *slog.Logger, metrics *httpMetrics) {
	app.Use(
		compress.New(compress.Config{
			Level: compress.LevelDefault,
		}),

		slogfiber.NewWithFilters(logger, slogfiber.IgnorePath("/health")),

		cors.New(cors.Config{
			AllowOrigins: cfg.GetAllowedOrigins(),
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
			AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		}),

		favicon.New(),
		limiter.New(limiter.Config{
			Max:               cfg.RateLimitMax,
			Expiration:        time.Duration(cfg.RateLimitWindow) * time.Second,
			LimiterMiddleware: limiter.SlidingWindow{},
			Next: func(c *fiber.Ctx) bool {
				return c.Path() == "/health"
			},
		}),
	)

	app.Use(otelfiber.Middleware())
	app.Use(withMetrics(metrics))
}

func registerHttpRoutes(app *fiber.App, cfg *config.Config, svc Services, logger *slog.Logger) {
	h := &handlers{Services: svc, logger: logger}

	app.Get("/health", func(c *fiber.Ctx) error {
		if svc.Health != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := svc.Health.Ping(ctx); err != nil {
				logger.Warn("Health check failed", "error", err)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"status":    "unavailable",
					"database":  "down",
					"timestamp": time.Now().Unix(),
				})
			}
		}
		return c.JSON(fiber.Map{"status": "ok", "timestamp": time.Now().Unix()})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/v1", requireAuth(cfg.AuthJWTSecret, cfg.AuthAudience, logger))

	v1.Post("/tickets/analyze", h.analyzeTicket)

	v1.Post("/households", h.createHousehold)
	v1.Get("/households", h.listHouseholds)
	v1.Post("/households/join", h.joinHousehold)

	// Registered per route so /households/join never reaches the membership check
	member := requireMembership(svc.Households)
	hh := v1.Group("/households/:householdID")

	hh.Get("/", member, h.getHousehold)
	hh.Post("/invite-code", member, h.regenerateInviteCode)
	hh.Delete("/members/:userID", member, h.removeMember)

	hh.Get("/products", member, h.listProducts)
	hh.Post("/products", member, h.createProduct)
	hh.Get("/products/:productID", member, h.getProduct)
	hh.Put("/products/:productID", member, h.updateProduct)
	hh.Delete("/products/:productID", member, h.deleteProduct)

	hh.Post("/tickets/scan", member, h.scanTicket)
	hh.Post("/tickets/match", member, h.matchTicket)
	hh.Post("/tickets/commit", member, h.commitTicket)
	hh.Get("/tickets/images", member, h.listTicketImages)
	hh.Delete("/tickets/images/:imageName", member, h.deleteTicketImage)

	hh.Get("/purchases", member, h.listPurchases)
	hh.Post("/purchases", member, h.createPurchase)
	hh.Get("/purchases/export", member, h.exportPurchases)
	hh.Get("/purchases/stats", member, h.purchaseStats)
	hh.Delete("/purchases/:purchaseID", member, h.deletePurchase)

	hh.Get("/inventory", member, h.listInventory)
	hh.Patch("/inventory/:productID", member, h.patchInventory)
}
