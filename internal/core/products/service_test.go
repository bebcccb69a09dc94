package products

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dakino/household-service/internal/core/matching"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	entries map[string][]matching.CatalogProduct
	deleted []string
	getErr  error
	delErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]matching.CatalogProduct{}}
}

func (c *fakeCache) Get(_ context.Context, key string, dest any) (bool, error) {
	if c.getErr != nil {
		return false, c.getErr
	}
	v, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	*(dest.(*[]matching.CatalogProduct)) = v
	return true, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	c.entries[key] = value.([]matching.CatalogProduct)
	return nil
}

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	c.deleted = append(c.deleted, keys...)
	for _, k := range keys {
		delete(c.entries, k)
	}
	return c.delErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseUnitType(t *testing.T) {
	testCases := []struct {
		in      string
		want    UnitType
		wantErr bool
	}{
		{in: "", want: UnitTypeUnit},
		{in: "unit", want: UnitTypeUnit},
		{in: " Weight ", want: UnitTypeWeight},
		{in: "litre", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseUnitType(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidUnitType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidateFields(t *testing.T) {
	price := decimal.RequireFromString("1.256")
	f, err := validateFields("  Leche   entera ", &price, "unit", " Lácteos ", "")
	require.NoError(t, err)
	assert.Equal(t, "Leche entera", f.name)
	assert.Equal(t, "Lácteos", f.category)
	assert.True(t, f.defaultPrice.Valid)
	assert.Equal(t, "1.26", f.defaultPrice.Decimal.StringFixed(2))

	_, err = validateFields("   ", nil, "unit", "", "")
	assert.ErrorIs(t, err, ErrInvalidName)

	negative := decimal.NewFromInt(-1)
	_, err = validateFields("pan", &negative, "unit", "", "")
	assert.ErrorIs(t, err, ErrNegativePrice)

	f, err = validateFields("pan", nil, "", "", "")
	require.NoError(t, err)
	assert.False(t, f.defaultPrice.Valid)
}

func TestCatalogServedFromCache(t *testing.T) {
	householdID := uuid.New()
	cache := newFakeCache()
	cached := []matching.CatalogProduct{{ID: "p1", Name: "Leche"}}
	cache.entries[catalogKey(householdID)] = cached

	// no database: a cache hit must not touch it
	svc := NewService(nil, cache, time.Minute, discardLogger())

	catalog, err := svc.Catalog(context.Background(), householdID)

	require.NoError(t, err)
	assert.Equal(t, cached, catalog)
}

func TestInvalidateCatalog(t *testing.T) {
	householdID := uuid.New()
	cache := newFakeCache()
	cache.entries[catalogKey(householdID)] = []matching.CatalogProduct{{ID: "p1"}}
	svc := NewService(nil, cache, time.Minute, discardLogger())

	svc.InvalidateCatalog(context.Background(), householdID)

	assert.Equal(t, []string{"catalog:" + householdID.String()}, cache.deleted)
	assert.Empty(t, cache.entries)

	cache.delErr = errors.New("redis down")
	assert.NotPanics(t, func() { svc.InvalidateCatalog(context.Background(), householdID) })

	noCache := NewService(nil, nil, 0, discardLogger())
	assert.NotPanics(t, func() { noCache.InvalidateCatalog(context.Background(), householdID) })
}

func TestToCatalog(t *testing.T) {
	withPrice := &Product{
		ID:           uuid.New(),
		Name:         "Leche entera",
		DefaultPrice: decimal.NewNullDecimal(decimal.RequireFromString("1.20")),
		UnitType:     UnitTypeUnit,
		Category:     "Lácteos",
	}
	withoutPrice := &Product{
		ID:       uuid.New(),
		Name:     "Manzanas",
		UnitType: UnitTypeWeight,
	}

	catalog := ToCatalog([]*Product{withPrice, withoutPrice})

	require.Len(t, catalog, 2)
	assert.Equal(t, withPrice.ID.String(), catalog[0].ID)
	require.NotNil(t, catalog[0].DefaultPrice)
	assert.True(t, catalog[0].DefaultPrice.Equal(decimal.RequireFromString("1.2")))
	assert.Equal(t, "unit", catalog[0].UnitType)
	assert.Equal(t, "Manzanas", catalog[1].Name)
	assert.Nil(t, catalog[1].DefaultPrice)
	assert.Equal(t, "weight", catalog[1].UnitType)

	assert.Empty(t, ToCatalog(nil))
}
