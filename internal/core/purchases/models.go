package purchases

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrPurchaseNotFound = errors.New("purchase not found")
	ErrInvalidQuantity  = errors.New("quantity must be greater than zero")
	ErrNegativeAmount   = errors.New("prices must not be negative")
	ErrEmptyCommit      = errors.New("no ticket lines to commit")
	ErrMissingName      = errors.New("a new product needs a name")
	ErrInvalidRange     = errors.New("from date must not be after to date")
)

type Purchase struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	HouseholdID uuid.UUID       `json:"household_id" db:"household_id"`
	ProductID   uuid.UUID       `json:"product_id" db:"product_id"`
	ProductName string          `json:"product_name" db:"product_name"`
	Quantity    decimal.Decimal `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	Total       decimal.Decimal `json:"total" db:"total"`
	StoreName   string          `json:"store_name" db:"store_name"`
	PurchasedAt time.Time       `json:"purchased_at" db:"purchased_at"`
	ScanID      *uuid.UUID      `json:"scan_id,omitempty" db:"scan_id"`
	CreatedBy   uuid.UUID       `json:"created_by" db:"created_by"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

type CreatePurchaseRequest struct {
	HouseholdID uuid.UUID
	ProductID   uuid.UUID
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
	StoreName   string
	PurchasedAt time.Time
	ScanID      *uuid.UUID
	CreatedBy   uuid.UUID
}

// CommitLine is one reviewed ticket line. ProductID links it to an existing product,
// otherwise a product named Name is reused or created.
type CommitLine struct {
	ProductID *uuid.UUID
	Name      string
	UnitType  string
	Category  string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
	Skip      bool
}

type CommitRequest struct {
	HouseholdID uuid.UUID
	UserID      uuid.UUID
	ScanID      *uuid.UUID
	StoreName   string
	PurchasedAt time.Time
	Lines       []CommitLine
}

type CommitResult struct {
	Purchases       []*Purchase `json:"purchases"`
	CreatedProducts int         `json:"created_products"`
	Skipped         int         `json:"skipped"`
}

type MonthlyTotal struct {
	Month     int             `json:"month"`
	Total     decimal.Decimal `json:"total"`
	Purchases int             `json:"purchases"`
}

// normalizeAmounts checks quantity and prices and fills a zero total from quantity and unit price
func normalizeAmounts(quantity, unitPrice, total decimal.Decimal) (decimal.Decimal, decimal.Decimal, decimal.Decimal, error) {
	if !quantity.IsPositive() {
		return quantity, unitPrice, total, ErrInvalidQuantity
	}
	if unitPrice.IsNegative() || total.IsNegative() {
		return quantity, unitPrice, total, ErrNegativeAmount
	}

	unitPrice = unitPrice.Round(2)
	if total.IsZero() {
		total = quantity.Mul(unitPrice)
	}
	return quantity.Round(3), unitPrice, total.Round(2), nil
}

// fillMonths expands sparse month rows into the twelve months of a year
func fillMonths(rows map[int]MonthlyTotal) []MonthlyTotal {
	months := make([]MonthlyTotal, 12)
	for i := range months {
		m := i + 1
		if row, ok := rows[m]; ok {
			months[i] = row
			continue
		}
		months[i] = MonthlyTotal{Month: m, Total: decimal.Zero}
	}
	return months
}
