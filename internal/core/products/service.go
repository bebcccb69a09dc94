package products

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dakino/household-service/internal/core/matching"
	"github.com/dakino/household-service/internal/infra/postgres"
	"github.com/dakino/household-service/pkg/telemetry"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("products-service")

const productColumns = `id, household_id, name, default_price, unit_type, category, notes, created_at, updated_at`

// CatalogCache is the optional cache in front of household catalogs
type CatalogCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type Service struct {
	db       postgres.DB
	cache    CatalogCache
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewService creates the product catalog service. cache may be nil.
func NewService(db postgres.DB, cache CatalogCache, cacheTTL time.Duration, logger *slog.Logger) *Service {
	return &Service{
		db:       db,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

func catalogKey(householdID uuid.UUID) string {
	return "catalog:" + householdID.String()
}

func scanProduct(row pgx.Row) (*Product, error) {
	var product Product
	err := row.Scan(
		&product.ID,
		&product.HouseholdID,
		&product.Name,
		&product.DefaultPrice,
		&product.UnitType,
		&product.Category,
		&product.Notes,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error) {
	ctx, span := tracer.Start(ctx, "products.CreateProduct")
	defer span.End()

	product, err := CreateProductTx(ctx, s.db, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.InvalidateCatalog(ctx, req.HouseholdID)
	telemetry.ProductOperationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "create")))

	s.logger.Info("Product created",
		"product_id", product.ID,
		"household_id", product.HouseholdID,
		"name", product.Name)

	return product, nil
}

// CreateProductTx inserts a product using q, which may be a pool or an open transaction.
// The caller is responsible for invalidating the catalog cache.
func CreateProductTx(ctx context.Context, q querier, req CreateProductRequest) (*Product, error) {
	fields, err := validateFields(req.Name, req.DefaultPrice, req.UnitType, req.Category, req.Notes)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO products (id, household_id, name, default_price, unit_type, category, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING ` + productColumns

	product, err := scanProduct(q.QueryRow(ctx, query,
		uuid.New(),
		req.HouseholdID,
		fields.name,
		fields.defaultPrice,
		string(fields.unitType),
		fields.category,
		fields.notes,
	))
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, ErrDuplicateProduct
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return product, nil
}

// GetProduct retrieves a product scoped to its household
func (s *Service) GetProduct(ctx context.Context, householdID, productID uuid.UUID) (*Product, error) {
	ctx, span := tracer.Start(ctx, "products.GetProduct")
	defer span.End()

	return GetProductTx(ctx, s.db, householdID, productID)
}

func GetProductTx(ctx context.Context, q querier, householdID, productID uuid.UUID) (*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 AND household_id = $2`

	product, err := scanProduct(q.QueryRow(ctx, query, productID, householdID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

// FindProductByNameTx looks a product up by name, ignoring case
func FindProductByNameTx(ctx context.Context, q querier, householdID uuid.UUID, name string) (*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE household_id = $1 AND LOWER(name) = LOWER($2)`

	product, err := scanProduct(q.QueryRow(ctx, query, householdID, strings.Join(strings.Fields(name), " ")))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, req UpdateProductRequest) (*Product, error) {
	ctx, span := tracer.Start(ctx, "products.UpdateProduct")
	defer span.End()

	fields, err := validateFields(req.Name, req.DefaultPrice, req.UnitType, req.Category, req.Notes)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE products
		SET name = $3, default_price = $4, unit_type = $5, category = $6, notes = $7, updated_at = NOW()
		WHERE id = $1 AND household_id = $2
		RETURNING ` + productColumns

	product, err := scanProduct(s.db.QueryRow(ctx, query,
		req.ID,
		req.HouseholdID,
		fields.name,
		fields.defaultPrice,
		string(fields.unitType),
		fields.category,
		fields.notes,
	))
	if err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, ErrProductNotFound
		case postgres.IsUniqueViolation(err):
			return nil, ErrDuplicateProduct
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	s.InvalidateCatalog(ctx, req.HouseholdID)
	telemetry.ProductOperationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "update")))

	return product, nil
}

// DeleteProduct removes a product together with its purchases and stock
func (s *Service) DeleteProduct(ctx context.Context, householdID, productID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "products.DeleteProduct")
	defer span.End()

	tag, err := s.db.Exec(ctx, `DELETE FROM products WHERE id = $1 AND household_id = $2`, productID, householdID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}

	s.InvalidateCatalog(ctx, householdID)
	telemetry.ProductOperationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "delete")))

	s.logger.Info("Product deleted", "product_id", productID, "household_id", householdID)
	return nil
}

// ListProducts returns the household catalog in insertion order
func (s *Service) ListProducts(ctx context.Context, householdID uuid.UUID) ([]*Product, error) {
	ctx, span := tracer.Start(ctx, "products.ListProducts")
	defer span.End()

	query := `SELECT ` + productColumns + ` FROM products WHERE household_id = $1 ORDER BY created_at, id`

	return s.queryProducts(ctx, query, householdID)
}

// SearchProducts searches the household catalog by name, exact and prefix matches first
func (s *Service) SearchProducts(ctx context.Context, householdID uuid.UUID, searchTerm string) ([]*Product, error) {
	ctx, span := tracer.Start(ctx, "products.SearchProducts")
	defer span.End()

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE household_id = $1 AND (name ILIKE $2 OR category ILIKE $2)
		ORDER BY
			CASE
				WHEN name ILIKE $3 THEN 1
				WHEN name ILIKE $4 THEN 2
				ELSE 3
			END,
			name
	`

	return s.queryProducts(ctx, query,
		householdID,
		"%"+searchTerm+"%",
		searchTerm,     // exact match
		searchTerm+"%", // starts with
	)
}

func (s *Service) queryProducts(ctx context.Context, query string, args ...interface{}) ([]*Product, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]*Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			s.logger.Error("Failed to scan product row", "error", err)
			continue
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// Catalog returns the household products in the shape the matcher consumes.
// Served from cache when available; cache failures fall back to the database.
func (s *Service) Catalog(ctx context.Context, householdID uuid.UUID) ([]matching.CatalogProduct, error) {
	ctx, span := tracer.Start(ctx, "products.Catalog")
	defer span.End()

	key := catalogKey(householdID)

	if s.cache != nil {
		var cached []matching.CatalogProduct
		found, err := s.cache.Get(ctx, key, &cached)
		switch {
		case err != nil:
			s.logger.Warn("Catalog cache read failed, using database", "error", err, "household_id", householdID)
			telemetry.CatalogCacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "error")))
		case found:
			telemetry.CatalogCacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "hit")))
			return cached, nil
		default:
			telemetry.CatalogCacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "miss")))
		}
	}

	products, err := s.ListProducts(ctx, householdID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	catalog := ToCatalog(products)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, catalog, s.cacheTTL); err != nil {
			s.logger.Warn("Catalog cache write failed", "error", err, "household_id", householdID)
		}
	}

	return catalog, nil
}

// InvalidateCatalog drops the cached catalog of a household. Failures are logged only.
func (s *Service) InvalidateCatalog(ctx context.Context, householdID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, catalogKey(householdID)); err != nil {
		s.logger.Warn("Catalog cache invalidation failed", "error", err, "household_id", householdID)
	}
}

// ToCatalog converts products to matcher input, keeping order
func ToCatalog(products []*Product) []matching.CatalogProduct {
	catalog := make([]matching.CatalogProduct, 0, len(products))
	for _, p := range products {
		item := matching.CatalogProduct{
			ID:       p.ID.String(),
			Name:     p.Name,
			UnitType: string(p.UnitType),
			Category: p.Category,
		}
		if p.DefaultPrice.Valid {
			price := p.DefaultPrice.Decimal
			item.DefaultPrice = &price
		}
		catalog = append(catalog, item)
	}
	return catalog
}
