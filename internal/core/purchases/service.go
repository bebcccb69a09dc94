package purchases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dakino/household-service/internal/core/inventory"
	"github.com/dakino/household-service/internal/core/products"
	"github.com/dakino/household-service/internal/infra/postgres"
	"github.com/dakino/household-service/pkg/telemetry"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("purchases-service")

// CatalogInvalidator drops cached catalogs after products change
type CatalogInvalidator interface {
	InvalidateCatalog(ctx context.Context, householdID uuid.UUID)
}

type Service struct {
	db      postgres.DB
	catalog CatalogInvalidator
	logger  *slog.Logger
}

func NewService(db postgres.DB, catalog CatalogInvalidator, logger *slog.Logger) *Service {
	return &Service{
		db:      db,
		catalog: catalog,
		logger:  logger,
	}
}

// CommitTicket records the reviewed lines of a ticket as purchases and adds them to stock.
// Either every line is committed or none is.
func (s *Service) CommitTicket(ctx context.Context, req CommitRequest) (*CommitResult, error) {
	ctx, span := tracer.Start(ctx, "purchases.CommitTicket")
	defer span.End()

	if len(req.Lines) == 0 {
		return nil, ErrEmptyCommit
	}
	purchasedAt := req.PurchasedAt
	if purchasedAt.IsZero() {
		purchasedAt = time.Now()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result := &CommitResult{Purchases: make([]*Purchase, 0, len(req.Lines))}

	for i, line := range req.Lines {
		if line.Skip {
			result.Skipped++
			continue
		}

		quantity, unitPrice, total, err := normalizeAmounts(line.Quantity, line.UnitPrice, line.Total)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}

		product, created, err := resolveProduct(ctx, tx, req.HouseholdID, line, unitPrice)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if created {
			result.CreatedProducts++
		}

		purchase, err := insertPurchase(ctx, tx, CreatePurchaseRequest{
			HouseholdID: req.HouseholdID,
			ProductID:   product.ID,
			Quantity:    quantity,
			UnitPrice:   unitPrice,
			Total:       total,
			StoreName:   req.StoreName,
			PurchasedAt: purchasedAt,
			ScanID:      req.ScanID,
			CreatedBy:   req.UserID,
		})
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		purchase.ProductName = product.Name

		if _, err := inventory.AdjustTx(ctx, tx, req.HouseholdID, product.ID, quantity); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}

		result.Purchases = append(result.Purchases, purchase)
	}

	if err = tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if result.CreatedProducts > 0 && s.catalog != nil {
		s.catalog.InvalidateCatalog(ctx, req.HouseholdID)
	}

	telemetry.PurchasesCommittedTotal.Add(ctx, int64(len(result.Purchases)),
		metric.WithAttributes(attribute.String("source", "ticket")))

	s.logger.Info("Ticket committed",
		"household_id", req.HouseholdID,
		"purchases", len(result.Purchases),
		"created_products", result.CreatedProducts,
		"skipped", result.Skipped)

	return result, nil
}

// resolveProduct finds the product a line refers to, creating it when the name is unknown
func resolveProduct(ctx context.Context, tx pgx.Tx, householdID uuid.UUID, line CommitLine, unitPrice decimal.Decimal) (*products.Product, bool, error) {
	if line.ProductID != nil {
		product, err := products.GetProductTx(ctx, tx, householdID, *line.ProductID)
		return product, false, err
	}

	name := strings.TrimSpace(line.Name)
	if name == "" {
		return nil, false, ErrMissingName
	}

	product, err := products.FindProductByNameTx(ctx, tx, householdID, name)
	if err == nil {
		return product, false, nil
	}
	if !errors.Is(err, products.ErrProductNotFound) {
		return nil, false, err
	}

	product, err = products.CreateProductTx(ctx, tx, products.CreateProductRequest{
		HouseholdID:  householdID,
		Name:         name,
		DefaultPrice: &unitPrice,
		UnitType:     line.UnitType,
		Category:     line.Category,
	})
	if err != nil {
		return nil, false, err
	}
	return product, true, nil
}

func (s *Service) CreatePurchase(ctx context.Context, req CreatePurchaseRequest) (*Purchase, error) {
	ctx, span := tracer.Start(ctx, "purchases.CreatePurchase")
	defer span.End()

	quantity, unitPrice, total, err := normalizeAmounts(req.Quantity, req.UnitPrice, req.Total)
	if err != nil {
		return nil, err
	}
	req.Quantity, req.UnitPrice, req.Total = quantity, unitPrice, total
	if req.PurchasedAt.IsZero() {
		req.PurchasedAt = time.Now()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	product, err := products.GetProductTx(ctx, tx, req.HouseholdID, req.ProductID)
	if err != nil {
		return nil, err
	}

	purchase, err := insertPurchase(ctx, tx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	purchase.ProductName = product.Name

	if _, err := inventory.AdjustTx(ctx, tx, req.HouseholdID, req.ProductID, quantity); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	telemetry.PurchasesCommittedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("source", "manual")))
	return purchase, nil
}

func insertPurchase(ctx context.Context, tx pgx.Tx, req CreatePurchaseRequest) (*Purchase, error) {
	query := `
		INSERT INTO purchases (household_id, product_id, quantity, unit_price, total, store_name, purchased_at, scan_id, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING id, household_id, product_id, quantity, unit_price, total, store_name, purchased_at, scan_id, created_by, created_at
	`

	var p Purchase
	err := tx.QueryRow(ctx, query,
		req.HouseholdID,
		req.ProductID,
		req.Quantity,
		req.UnitPrice,
		req.Total,
		strings.TrimSpace(req.StoreName),
		req.PurchasedAt,
		req.ScanID,
		req.CreatedBy,
	).Scan(
		&p.ID,
		&p.HouseholdID,
		&p.ProductID,
		&p.Quantity,
		&p.UnitPrice,
		&p.Total,
		&p.StoreName,
		&p.PurchasedAt,
		&p.ScanID,
		&p.CreatedBy,
		&p.CreatedAt,
	)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return nil, products.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to create purchase: %w", err)
	}
	return &p, nil
}

// ListPurchases returns purchases newest first. Zero from or to leaves that side open.
func (s *Service) ListPurchases(ctx context.Context, householdID uuid.UUID, from, to time.Time) ([]*Purchase, error) {
	ctx, span := tracer.Start(ctx, "purchases.ListPurchases")
	defer span.End()

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, ErrInvalidRange
	}

	query := `
		SELECT pu.id, pu.household_id, pu.product_id, p.name, pu.quantity, pu.unit_price, pu.total,
		       pu.store_name, pu.purchased_at, pu.scan_id, pu.created_by, pu.created_at
		FROM purchases pu
		INNER JOIN products p ON p.id = pu.product_id
		WHERE pu.household_id = $1
		  AND ($2::date IS NULL OR pu.purchased_at >= $2::date)
		  AND ($3::date IS NULL OR pu.purchased_at <= $3::date)
		ORDER BY pu.purchased_at DESC, pu.created_at DESC
	`

	rows, err := s.db.Query(ctx, query, householdID, nullableDate(from), nullableDate(to))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer rows.Close()

	purchases := make([]*Purchase, 0)
	for rows.Next() {
		var p Purchase
		err := rows.Scan(
			&p.ID,
			&p.HouseholdID,
			&p.ProductID,
			&p.ProductName,
			&p.Quantity,
			&p.UnitPrice,
			&p.Total,
			&p.StoreName,
			&p.PurchasedAt,
			&p.ScanID,
			&p.CreatedBy,
			&p.CreatedAt,
		)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, &p)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating over purchases: %w", err)
	}

	return purchases, nil
}

func nullableDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// DeletePurchase removes a purchase. Stock is left untouched since it may already be consumed.
func (s *Service) DeletePurchase(ctx context.Context, householdID, purchaseID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "purchases.DeletePurchase")
	defer span.End()

	result, err := s.db.Exec(ctx, `DELETE FROM purchases WHERE id = $1 AND household_id = $2`, purchaseID, householdID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete purchase: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPurchaseNotFound
	}
	return nil
}

// MonthlySpending returns the spending of every month of year, months without purchases included
func (s *Service) MonthlySpending(ctx context.Context, householdID uuid.UUID, year int) ([]MonthlyTotal, error) {
	ctx, span := tracer.Start(ctx, "purchases.MonthlySpending")
	defer span.End()

	query := `
		SELECT EXTRACT(MONTH FROM purchased_at)::int AS month, COALESCE(SUM(total), 0), COUNT(*)
		FROM purchases
		WHERE household_id = $1 AND EXTRACT(YEAR FROM purchased_at)::int = $2
		GROUP BY month
		ORDER BY month
	`

	rows, err := s.db.Query(ctx, query, householdID, year)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get monthly spending: %w", err)
	}
	defer rows.Close()

	byMonth := make(map[int]MonthlyTotal)
	for rows.Next() {
		var m MonthlyTotal
		if err := rows.Scan(&m.Month, &m.Total, &m.Purchases); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan monthly spending: %w", err)
		}
		byMonth[m.Month] = m
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating over monthly spending: %w", err)
	}

	return fillMonths(byMonth), nil
}
