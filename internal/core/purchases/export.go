package purchases

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
)

var csvHeader = []string{"date", "product", "quantity", "unit_price", "total", "store"}

// WriteCSV writes purchases as CSV with a header row
func WriteCSV(w io.Writer, purchases []*Purchase) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, p := range purchases {
		record := []string{
			p.PurchasedAt.Format("2006-01-02"),
			p.ProductName,
			p.Quantity.String(),
			p.UnitPrice.StringFixed(2),
			p.Total.StringFixed(2),
			p.StoreName,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSON writes purchases as an indented JSON array
func WriteJSON(w io.Writer, purchases []*Purchase) error {
	if purchases == nil {
		purchases = []*Purchase{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(purchases); err != nil {
		return fmt.Errorf("failed to write json export: %w", err)
	}
	return nil
}
