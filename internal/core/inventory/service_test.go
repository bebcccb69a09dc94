package inventory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error { return f(dest...) }

type fakeDB struct {
	sql  string
	args []any
	row  pgx.Row
}

func (f *fakeDB) Begin(context.Context) (pgx.Tx, error) { return nil, errors.New("not supported") }
func (f *fakeDB) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("not supported")
}
func (f *fakeDB) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}
func (f *fakeDB) Ping(context.Context) error { return nil }
func (f *fakeDB) Close()                     {}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...interface{}) pgx.Row {
	f.sql = sql
	f.args = args
	return f.row
}

func upsertedRow(householdID, productID uuid.UUID, qty string) pgx.Row {
	return rowFunc(func(dest ...any) error {
		*dest[0].(*uuid.UUID) = householdID
		*dest[1].(*uuid.UUID) = productID
		*dest[2].(*decimal.Decimal) = decimal.RequireFromString(qty)
		*dest[3].(*time.Time) = time.Now()
		return nil
	})
}

func newTestService(db *fakeDB) *Service {
	return NewService(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAdjustClampsAtZeroInSQL(t *testing.T) {
	householdID, productID := uuid.New(), uuid.New()
	db := &fakeDB{row: upsertedRow(householdID, productID, "0")}

	item, err := newTestService(db).Adjust(context.Background(), householdID, productID, decimal.NewFromInt(-5))

	require.NoError(t, err)
	assert.True(t, item.Quantity.IsZero())
	assert.Contains(t, db.sql, "GREATEST(0, inventory_items.quantity + $3::numeric)")
	assert.Equal(t, []any{householdID, productID, decimal.NewFromInt(-5)}, db.args)
}

func TestAdjustUnknownProduct(t *testing.T) {
	db := &fakeDB{row: rowFunc(func(...any) error { return pgx.ErrNoRows })}

	_, err := newTestService(db).Adjust(context.Background(), uuid.New(), uuid.New(), decimal.NewFromInt(1))

	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestSet(t *testing.T) {
	householdID, productID := uuid.New(), uuid.New()

	t.Run("negative quantity", func(t *testing.T) {
		db := &fakeDB{}
		_, err := newTestService(db).Set(context.Background(), householdID, productID, decimal.NewFromInt(-1))
		assert.ErrorIs(t, err, ErrNegativeQuantity)
		assert.Empty(t, db.sql)
	})

	t.Run("overwrites quantity", func(t *testing.T) {
		db := &fakeDB{row: upsertedRow(householdID, productID, "2.5")}
		item, err := newTestService(db).Set(context.Background(), householdID, productID, decimal.RequireFromString("2.5"))
		require.NoError(t, err)
		assert.Equal(t, "2.5", item.Quantity.String())
		assert.True(t, strings.Contains(db.sql, "EXCLUDED.quantity"))
	})

	t.Run("database failure", func(t *testing.T) {
		db := &fakeDB{row: rowFunc(func(...any) error { return errors.New("connection reset") })}
		_, err := newTestService(db).Set(context.Background(), householdID, productID, decimal.NewFromInt(1))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to update inventory")
	})
}
