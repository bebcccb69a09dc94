package matching

import (
	"github.com/shopspring/decimal"
)

// Confidence describes how a ticket line was resolved against the catalog
type Confidence string

const (
	ConfidenceExact   Confidence = "exact"
	ConfidencePartial Confidence = "partial"
	ConfidenceNone    Confidence = "none"
)

// CatalogProduct is the read-only view of a household product used for matching
type CatalogProduct struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	DefaultPrice *decimal.Decimal `json:"default_price"`
	UnitType     string           `json:"unit_type"`
	Category     string           `json:"category,omitempty"`
}

// TicketLineItem is one line of a scanned ticket after boundary coercion
type TicketLineItem struct {
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

type MatchResult struct {
	Product    *CatalogProduct `json:"product"`
	Confidence Confidence      `json:"confidence"`
}

// MatchedLineItem is a ticket line with its provisional catalog match, pending human review
type MatchedLineItem struct {
	TicketLineItem
	MatchedProduct *CatalogProduct `json:"matched_product"`
	Confidence     Confidence      `json:"confidence"`
}

type Ticket struct {
	StoreName *string          `json:"store_name"`
	Date      *string          `json:"date"`
	Items     []TicketLineItem `json:"items"`
	Total     decimal.Decimal  `json:"total"`
}

type MatchedTicket struct {
	StoreName *string           `json:"store_name"`
	Date      *string           `json:"date"`
	Items     []MatchedLineItem `json:"items"`
	Total     decimal.Decimal   `json:"total"`
}
