package tickets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dakino/household-service/internal/infra/postgres"
	"github.com/google/uuid"
)

// PostgresScanStore writes scans to the ticket_scans table
type PostgresScanStore struct {
	db postgres.DB
}

func NewPostgresScanStore(db postgres.DB) *PostgresScanStore {
	return &PostgresScanStore{db: db}
}

func (s *PostgresScanStore) SaveScan(ctx context.Context, rec ScanRecord) (uuid.UUID, error) {
	payload, err := json.Marshal(rec.Ticket)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to encode scan result: %w", err)
	}

	query := `
		INSERT INTO ticket_scans (household_id, user_id, image_url, store_name, ticket_date, total,
			items_count, exact_count, partial_count, none_count, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		RETURNING id
	`

	var id uuid.UUID
	err = s.db.QueryRow(ctx, query,
		rec.HouseholdID,
		rec.UserID,
		rec.ImageURL,
		rec.Ticket.StoreName,
		rec.Ticket.Date,
		rec.Ticket.Total,
		len(rec.Ticket.Items),
		rec.Stats.Exact,
		rec.Stats.Partial,
		rec.Stats.None,
		payload,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to save ticket scan: %w", err)
	}
	return id, nil
}
