package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dakino/household-service/internal/infra/postgres"
	"github.com/dakino/household-service/pkg/telemetry"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("inventory-service")

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrNegativeQuantity = errors.New("quantity must not be negative")
)

type InventoryItem struct {
	HouseholdID uuid.UUID       `json:"household_id" db:"household_id"`
	ProductID   uuid.UUID       `json:"product_id" db:"product_id"`
	ProductName string          `json:"product_name" db:"product_name"`
	Quantity    decimal.Decimal `json:"quantity" db:"quantity"`
	UnitType    string          `json:"unit_type" db:"unit_type"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

type execer interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type Service struct {
	db     postgres.DB
	logger *slog.Logger
}

func NewService(db postgres.DB, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger,
	}
}

// ListInventory returns the stock of every product that has an inventory row, by product name
func (s *Service) ListInventory(ctx context.Context, householdID uuid.UUID) ([]*InventoryItem, error) {
	ctx, span := tracer.Start(ctx, "inventory.ListInventory")
	defer span.End()

	query := `
		SELECT i.household_id, i.product_id, p.name, i.quantity, p.unit_type, i.updated_at
		FROM inventory_items i
		INNER JOIN products p ON p.id = i.product_id
		WHERE i.household_id = $1
		ORDER BY p.name
	`

	rows, err := s.db.Query(ctx, query, householdID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	defer rows.Close()

	items := make([]*InventoryItem, 0)
	for rows.Next() {
		var item InventoryItem
		err := rows.Scan(
			&item.HouseholdID,
			&item.ProductID,
			&item.ProductName,
			&item.Quantity,
			&item.UnitType,
			&item.UpdatedAt,
		)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan inventory item: %w", err)
		}
		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating over inventory: %w", err)
	}

	return items, nil
}

// Adjust adds delta to the stock of a product. Stock never drops below zero.
func (s *Service) Adjust(ctx context.Context, householdID, productID uuid.UUID, delta decimal.Decimal) (*InventoryItem, error) {
	ctx, span := tracer.Start(ctx, "inventory.Adjust")
	defer span.End()

	item, err := AdjustTx(ctx, s.db, householdID, productID, delta)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	telemetry.InventoryAdjustmentsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "adjust")))
	return item, nil
}

// AdjustTx is Adjust on q, which may be an open transaction
func AdjustTx(ctx context.Context, q execer, householdID, productID uuid.UUID, delta decimal.Decimal) (*InventoryItem, error) {
	query := `
		INSERT INTO inventory_items (household_id, product_id, quantity, updated_at)
		SELECT p.household_id, p.id, GREATEST(0, $3::numeric), NOW()
		FROM products p
		WHERE p.id = $2 AND p.household_id = $1
		ON CONFLICT (household_id, product_id) DO UPDATE
		SET quantity = GREATEST(0, inventory_items.quantity + $3::numeric), updated_at = NOW()
		RETURNING household_id, product_id, quantity, updated_at
	`

	return upsert(ctx, q, query, householdID, productID, delta)
}

// Set overwrites the stock of a product
func (s *Service) Set(ctx context.Context, householdID, productID uuid.UUID, quantity decimal.Decimal) (*InventoryItem, error) {
	ctx, span := tracer.Start(ctx, "inventory.Set")
	defer span.End()

	if quantity.IsNegative() {
		return nil, ErrNegativeQuantity
	}

	query := `
		INSERT INTO inventory_items (household_id, product_id, quantity, updated_at)
		SELECT p.household_id, p.id, $3::numeric, NOW()
		FROM products p
		WHERE p.id = $2 AND p.household_id = $1
		ON CONFLICT (household_id, product_id) DO UPDATE
		SET quantity = EXCLUDED.quantity, updated_at = NOW()
		RETURNING household_id, product_id, quantity, updated_at
	`

	item, err := upsert(ctx, s.db, query, householdID, productID, quantity)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	telemetry.InventoryAdjustmentsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "set")))
	return item, nil
}

func upsert(ctx context.Context, q execer, query string, householdID, productID uuid.UUID, quantity decimal.Decimal) (*InventoryItem, error) {
	var item InventoryItem
	err := q.QueryRow(ctx, query, householdID, productID, quantity).Scan(
		&item.HouseholdID,
		&item.ProductID,
		&item.Quantity,
		&item.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		// the SELECT found no product in this household
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update inventory: %w", err)
	}
	return &item, nil
}
