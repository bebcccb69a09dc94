package matching

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lineItem(name, qty, price, total string) TicketLineItem {
	return TicketLineItem{
		Name:      name,
		Quantity:  decimal.RequireFromString(qty),
		UnitPrice: decimal.RequireFromString(price),
		Total:     decimal.RequireFromString(total),
	}
}

func TestProcessPreservesOrderAndPassThrough(t *testing.T) {
	store := "Mercadona"
	date := "2024-03-15"
	ticket := Ticket{
		StoreName: &store,
		Date:      &date,
		Items: []TicketLineItem{
			lineItem("LECHE ENTERA 1L", "2", "1.25", "2.50"),
			lineItem("PAN", "1", "0.90", "0.90"),
			lineItem("DETERGENTE", "1", "4.10", "4.10"),
			lineItem("PAN", "1", "0.90", "0.90"),
			lineItem("", "1", "0", "0"),
		},
		Total: decimal.RequireFromString("8.40"),
	}
	catalog := catalogOf("Leche Entera", "Pan")

	matched := Process(ticket, catalog)

	require.Len(t, matched.Items, 5)
	assert.Same(t, ticket.StoreName, matched.StoreName)
	assert.Same(t, ticket.Date, matched.Date)
	assert.True(t, ticket.Total.Equal(matched.Total))

	for i, item := range matched.Items {
		assert.Equal(t, ticket.Items[i], item.TicketLineItem, "item %d", i)
	}

	assert.Equal(t, ConfidencePartial, matched.Items[0].Confidence)
	assert.Equal(t, "p1", matched.Items[0].MatchedProduct.ID)
	assert.Equal(t, ConfidenceExact, matched.Items[1].Confidence)
	assert.Equal(t, ConfidenceNone, matched.Items[2].Confidence)
	assert.Nil(t, matched.Items[2].MatchedProduct)
	assert.Equal(t, ConfidenceExact, matched.Items[3].Confidence)
	assert.Equal(t, ConfidenceNone, matched.Items[4].Confidence)

	assert.Equal(t, Stats{Exact: 2, Partial: 1, None: 2}, matched.Stats())
}

func TestProcessEmptyCatalog(t *testing.T) {
	ticket := Ticket{
		Items: []TicketLineItem{
			lineItem("Leche", "1", "1", "1"),
			lineItem("Pan", "1", "1", "1"),
		},
	}

	matched := Process(ticket, nil)

	require.Len(t, matched.Items, 2)
	assert.Nil(t, matched.StoreName)
	assert.Nil(t, matched.Date)
	for _, item := range matched.Items {
		assert.Equal(t, ConfidenceNone, item.Confidence)
		assert.Nil(t, item.MatchedProduct)
	}
}

func TestProcessEmptyTicket(t *testing.T) {
	matched := Process(Ticket{}, catalogOf("Leche"))

	assert.NotNil(t, matched.Items)
	assert.Empty(t, matched.Items)
	assert.Equal(t, Stats{}, matched.Stats())
}
