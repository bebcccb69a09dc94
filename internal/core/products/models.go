package products

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrInvalidUnitType  = errors.New("unit type must be 'unit' or 'weight'")
	ErrDuplicateProduct = errors.New("a product with this name already exists in the household")
	ErrInvalidName      = errors.New("product name must not be empty")
	ErrNegativePrice    = errors.New("default price must not be negative")
)

type UnitType string

const (
	UnitTypeUnit   UnitType = "unit"
	UnitTypeWeight UnitType = "weight"
)

// ParseUnitType accepts unit or weight case-insensitively, defaulting to unit when empty
func ParseUnitType(s string) (UnitType, error) {
	switch UnitType(strings.ToLower(strings.TrimSpace(s))) {
	case "", UnitTypeUnit:
		return UnitTypeUnit, nil
	case UnitTypeWeight:
		return UnitTypeWeight, nil
	default:
		return "", ErrInvalidUnitType
	}
}

type Product struct {
	ID           uuid.UUID           `json:"id" db:"id"`
	HouseholdID  uuid.UUID           `json:"household_id" db:"household_id"`
	Name         string              `json:"name" db:"name"`
	DefaultPrice decimal.NullDecimal `json:"default_price" db:"default_price"`
	UnitType     UnitType            `json:"unit_type" db:"unit_type"`
	Category     string              `json:"category" db:"category"`
	Notes        string              `json:"notes" db:"notes"`
	CreatedAt    time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at" db:"updated_at"`
}

type CreateProductRequest struct {
	HouseholdID  uuid.UUID
	Name         string
	DefaultPrice *decimal.Decimal
	UnitType     string
	Category     string
	Notes        string
}

// UpdateProductRequest replaces every editable field of a product
type UpdateProductRequest struct {
	ID           uuid.UUID
	HouseholdID  uuid.UUID
	Name         string
	DefaultPrice *decimal.Decimal
	UnitType     string
	Category     string
	Notes        string
}

type productFields struct {
	name         string
	defaultPrice decimal.NullDecimal
	unitType     UnitType
	category     string
	notes        string
}

func validateFields(name string, price *decimal.Decimal, unitType, category, notes string) (productFields, error) {
	f := productFields{
		name:     strings.Join(strings.Fields(name), " "),
		category: strings.TrimSpace(category),
		notes:    strings.TrimSpace(notes),
	}
	if f.name == "" {
		return f, ErrInvalidName
	}

	ut, err := ParseUnitType(unitType)
	if err != nil {
		return f, err
	}
	f.unitType = ut

	if price != nil {
		if price.IsNegative() {
			return f, ErrNegativePrice
		}
		f.defaultPrice = decimal.NewNullDecimal(price.Round(2))
	}

	return f, nil
}
