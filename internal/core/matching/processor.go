package matching

// Process matches every line of a ticket independently, keeping order and count.
// Store name, date and total pass through unchanged.
func Process(ticket Ticket, catalog []CatalogProduct) MatchedTicket {
	return defaultMatcher.Process(ticket, catalog)
}

func (m Matcher) Process(ticket Ticket, catalog []CatalogProduct) MatchedTicket {
	items := make([]MatchedLineItem, len(ticket.Items))
	for i, item := range ticket.Items {
		result := m.Match(item.Name, catalog)
		items[i] = MatchedLineItem{
			TicketLineItem: item,
			MatchedProduct: result.Product,
			Confidence:     result.Confidence,
		}
	}

	return MatchedTicket{
		StoreName: ticket.StoreName,
		Date:      ticket.Date,
		Items:     items,
		Total:     ticket.Total,
	}
}

// Stats counts matched lines per confidence tier
type Stats struct {
	Exact   int `json:"exact"`
	Partial int `json:"partial"`
	None    int `json:"none"`
}

func (t MatchedTicket) Stats() Stats {
	var s Stats
	for _, item := range t.Items {
		switch item.Confidence {
		case ConfidenceExact:
			s.Exact++
		case ConfidencePartial:
			s.Partial++
		default:
			s.None++
		}
	}
	return s
}
