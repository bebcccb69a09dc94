package tickets

import (
	"strings"

	"github.com/dakino/household-service/internal/core/ai"
	"github.com/dakino/household-service/internal/core/matching"
	"github.com/shopspring/decimal"
)

const (
	moneyPlaces    = 2
	quantityPlaces = 3
)

// Coerce turns the loosely typed vision output into a ticket the matcher accepts.
// Missing or invalid numbers are defaulted so no line is ever dropped.
func Coerce(vt ai.VisionTicket) matching.Ticket {
	ticket := matching.Ticket{
		StoreName: trimmedOrNil(vt.StoreName),
		Date:      trimmedOrNil(vt.Date),
		Items:     make([]matching.TicketLineItem, 0, len(vt.Items)),
	}

	sum := decimal.Zero
	for _, item := range vt.Items {
		line := coerceLine(item)
		sum = sum.Add(line.Total)
		ticket.Items = append(ticket.Items, line)
	}

	if vt.Total.Valid && !vt.Total.Decimal.IsNegative() {
		ticket.Total = vt.Total.Decimal.Round(moneyPlaces)
	} else {
		ticket.Total = sum.Round(moneyPlaces)
	}

	return ticket
}

func coerceLine(item ai.VisionLineItem) matching.TicketLineItem {
	var name string
	if item.Name != nil {
		name = strings.TrimSpace(*item.Name)
	}

	quantity := decimal.NewFromInt(1)
	if item.Quantity.Valid && item.Quantity.Decimal.IsPositive() {
		quantity = item.Quantity.Decimal.Round(quantityPlaces)
		if quantity.IsZero() {
			quantity = decimal.NewFromInt(1)
		}
	}

	total, hasTotal := nonNegative(item.Total)
	unitPrice, hasUnitPrice := nonNegative(item.UnitPrice)

	switch {
	case !hasUnitPrice && hasTotal:
		unitPrice = total.Div(quantity)
	case !hasUnitPrice:
		unitPrice = decimal.Zero
	}
	if !hasTotal {
		total = quantity.Mul(unitPrice)
	}

	return matching.TicketLineItem{
		Name:      name,
		Quantity:  quantity,
		UnitPrice: unitPrice.Round(moneyPlaces),
		Total:     total.Round(moneyPlaces),
	}
}

// nonNegative clamps negative values to zero; ok is false when the value is missing
func nonNegative(v decimal.NullDecimal) (decimal.Decimal, bool) {
	if !v.Valid {
		return decimal.Zero, false
	}
	if v.Decimal.IsNegative() {
		return decimal.Zero, true
	}
	return v.Decimal, true
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
