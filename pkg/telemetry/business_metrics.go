package telemetry

import (
	"log/slog"

	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Business metrics for application-level monitoring
var (
	// Ticket scan metrics
	TicketScansTotal      api.Int64Counter
	TicketScanDuration    api.Float64Histogram
	MatchOutcomesTotal    api.Int64Counter
	TicketImageBytes      api.Int64Histogram
	TicketArchiveFailures api.Int64Counter

	// Catalog & stock metrics
	ProductOperationsTotal    api.Int64Counter
	CatalogCacheLookups       api.Int64Counter
	PurchasesCommittedTotal   api.Int64Counter
	InventoryAdjustmentsTotal api.Int64Counter

	// Household metrics
	HouseholdOperationsTotal api.Int64Counter

	// Error tracking
	ApplicationErrorsTotal api.Int64Counter
	DatabaseErrorsTotal    api.Int64Counter
)

func init() {
	// Instruments are usable before InitBusinessMetrics is called, e.g. in tests
	_ = bindInstruments(noop.NewMeterProvider().Meter("business"))
}

// InitBusinessMetrics initializes all business-level metrics
func InitBusinessMetrics(provider *metric.MeterProvider) error {
	if err := bindInstruments(provider.Meter("business")); err != nil {
		return err
	}

	slog.Info("Business metrics initialized successfully")
	return nil
}

func bindInstruments(meter api.Meter) error {
	var err error

	// Ticket scan metrics
	TicketScansTotal, err = meter.Int64Counter("tickets.scans.total",
		api.WithDescription("Total ticket scans by outcome"))
	if err != nil {
		return err
	}

	TicketScanDuration, err = meter.Float64Histogram("tickets.scan.duration",
		api.WithDescription("End to end ticket scan duration in seconds"),
		api.WithUnit("s"))
	if err != nil {
		return err
	}

	MatchOutcomesTotal, err = meter.Int64Counter("tickets.match.outcomes.total",
		api.WithDescription("Ticket lines matched against the catalog by confidence (exact, partial, none)"))
	if err != nil {
		return err
	}

	TicketImageBytes, err = meter.Int64Histogram("tickets.image.bytes",
		api.WithDescription("Ticket photo size in bytes before and after compression"),
		api.WithUnit("By"))
	if err != nil {
		return err
	}

	TicketArchiveFailures, err = meter.Int64Counter("tickets.archive.failures.total",
		api.WithDescription("Ticket photos that could not be archived to blob storage"))
	if err != nil {
		return err
	}

	// Catalog & stock metrics
	ProductOperationsTotal, err = meter.Int64Counter("products.operations.total",
		api.WithDescription("Total product catalog operations by type (create, update, delete)"))
	if err != nil {
		return err
	}

	CatalogCacheLookups, err = meter.Int64Counter("products.catalog.cache.lookups.total",
		api.WithDescription("Catalog cache lookups by result (hit, miss, error)"))
	if err != nil {
		return err
	}

	PurchasesCommittedTotal, err = meter.Int64Counter("purchases.committed.total",
		api.WithDescription("Total purchases recorded by source (manual, ticket)"))
	if err != nil {
		return err
	}

	InventoryAdjustmentsTotal, err = meter.Int64Counter("inventory.adjustments.total",
		api.WithDescription("Total inventory adjustments by type (adjust, set, purchase)"))
	if err != nil {
		return err
	}

	// Household metrics
	HouseholdOperationsTotal, err = meter.Int64Counter("household.operations.total",
		api.WithDescription("Total household operations by type"))
	if err != nil {
		return err
	}

	// Error Metrics
	ApplicationErrorsTotal, err = meter.Int64Counter("application.errors.total",
		api.WithDescription("Total application errors by component and type"))
	if err != nil {
		return err
	}

	DatabaseErrorsTotal, err = meter.Int64Counter("database.errors.total",
		api.WithDescription("Total database errors by operation and type"))
	if err != nil {
		return err
	}

	return nil
}
