package tickets

import (
	"testing"

	"github.com/dakino/household-service/internal/core/ai"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func strPtr(s string) *string { return &s }

func TestCoerceLine(t *testing.T) {
	testCases := []struct {
		name      string
		item      ai.VisionLineItem
		wantName  string
		wantQty   string
		wantPrice string
		wantTotal string
	}{
		{
			name:      "complete line",
			item:      ai.VisionLineItem{Name: strPtr(" Leche entera "), Quantity: nd("2"), UnitPrice: nd("1.2"), Total: nd("2.4")},
			wantName:  "Leche entera",
			wantQty:   "2",
			wantPrice: "1.20",
			wantTotal: "2.40",
		},
		{
			name:      "missing name and quantity",
			item:      ai.VisionLineItem{UnitPrice: nd("3.5"), Total: nd("3.5")},
			wantName:  "",
			wantQty:   "1",
			wantPrice: "3.50",
			wantTotal: "3.50",
		},
		{
			name:      "unit price derived from total",
			item:      ai.VisionLineItem{Name: strPtr("manzanas"), Quantity: nd("0.750"), Total: nd("1.50")},
			wantName:  "manzanas",
			wantQty:   "0.75",
			wantPrice: "2.00",
			wantTotal: "1.50",
		},
		{
			name:      "total derived from unit price",
			item:      ai.VisionLineItem{Name: strPtr("pan"), Quantity: nd("3"), UnitPrice: nd("0.95")},
			wantName:  "pan",
			wantQty:   "3",
			wantPrice: "0.95",
			wantTotal: "2.85",
		},
		{
			name:      "zero quantity becomes one",
			item:      ai.VisionLineItem{Name: strPtr("huevos"), Quantity: nd("0"), UnitPrice: nd("2")},
			wantName:  "huevos",
			wantQty:   "1",
			wantPrice: "2.00",
			wantTotal: "2.00",
		},
		{
			name:      "negative values clamped",
			item:      ai.VisionLineItem{Name: strPtr("descuento"), Quantity: nd("-1"), UnitPrice: nd("-0.5"), Total: nd("-0.5")},
			wantName:  "descuento",
			wantQty:   "1",
			wantPrice: "0.00",
			wantTotal: "0.00",
		},
		{
			name:      "nothing at all",
			item:      ai.VisionLineItem{},
			wantName:  "",
			wantQty:   "1",
			wantPrice: "0.00",
			wantTotal: "0.00",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			line := coerceLine(tc.item)
			assert.Equal(t, tc.wantName, line.Name)
			assert.True(t, line.Quantity.Equal(decimal.RequireFromString(tc.wantQty)), line.Quantity.String())
			assert.Equal(t, tc.wantPrice, line.UnitPrice.StringFixed(2))
			assert.Equal(t, tc.wantTotal, line.Total.StringFixed(2))
		})
	}
}

func TestCoerceTicket(t *testing.T) {
	vt := ai.VisionTicket{
		StoreName: strPtr("  Mercadona "),
		Date:      strPtr(""),
		Items: []ai.VisionLineItem{
			{Name: strPtr("Leche"), Quantity: nd("2"), UnitPrice: nd("1.20")},
			{Name: strPtr("Pan"), Total: nd("0.95")},
		},
	}

	ticket := Coerce(vt)

	require.NotNil(t, ticket.StoreName)
	assert.Equal(t, "Mercadona", *ticket.StoreName)
	assert.Nil(t, ticket.Date)
	require.Len(t, ticket.Items, 2)
	assert.Equal(t, "Leche", ticket.Items[0].Name)
	assert.Equal(t, "Pan", ticket.Items[1].Name)
	// ticket total falls back to the sum of the lines
	assert.Equal(t, "3.35", ticket.Total.StringFixed(2))

	vt.Total = nd("3.40")
	assert.Equal(t, "3.40", Coerce(vt).Total.StringFixed(2))
}

func TestCoerceEmptyTicket(t *testing.T) {
	ticket := Coerce(ai.VisionTicket{})
	assert.NotNil(t, ticket.Items)
	assert.Empty(t, ticket.Items)
	assert.True(t, ticket.Total.IsZero())
}
