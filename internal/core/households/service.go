package households

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dakino/household-service/internal/infra/postgres"
	"github.com/dakino/household-service/pkg/telemetry"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("households-service")

// inviteCodeAttempts bounds retries when a generated code collides
const inviteCodeAttempts = 5

type Service struct {
	db     postgres.DB
	logger *slog.Logger
}

func NewService(db postgres.DB, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger,
	}
}

func countOperation(ctx context.Context, op string) {
	telemetry.HouseholdOperationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}

func (s *Service) CreateHousehold(ctx context.Context, req CreateHouseholdRequest) (*Household, error) {
	ctx, span := tracer.Start(ctx, "households.CreateHousehold")
	defer span.End()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrInvalidName
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var household *Household
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		code, err := generateInviteCode()
		if err != nil {
			return nil, err
		}

		// savepoint, so a code collision does not abort the outer transaction
		sp, err := tx.Begin(ctx)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to create savepoint: %w", err)
		}

		household, err = insertHousehold(ctx, sp, name, code, req.CreatedBy)
		if err == nil {
			if err = sp.Commit(ctx); err != nil {
				span.RecordError(err)
				return nil, fmt.Errorf("failed to release savepoint: %w", err)
			}
			break
		}
		sp.Rollback(ctx)
		if !postgres.IsUniqueViolation(err) {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to create household: %w", err)
		}
	}
	if household == nil {
		return nil, fmt.Errorf("failed to allocate a unique invite code")
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO household_members (household_id, user_id, role, joined_at)
		VALUES ($1, $2, 'owner', NOW())
	`, household.ID, req.CreatedBy)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to add creator as owner: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	countOperation(ctx, "create")
	s.logger.Info("Household created",
		"household_id", household.ID,
		"created_by", req.CreatedBy)

	return household, nil
}

func insertHousehold(ctx context.Context, tx pgx.Tx, name, code string, createdBy uuid.UUID) (*Household, error) {
	var household Household
	err := tx.QueryRow(ctx, `
		INSERT INTO households (name, invite_code, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, name, invite_code, created_by, created_at, updated_at
	`, name, code, createdBy).Scan(
		&household.ID,
		&household.Name,
		&household.InviteCode,
		&household.CreatedBy,
		&household.CreatedAt,
		&household.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &household, nil
}

func (s *Service) GetUserHouseholds(ctx context.Context, userID uuid.UUID) ([]*Household, error) {
	ctx, span := tracer.Start(ctx, "households.GetUserHouseholds")
	defer span.End()

	query := `
		SELECT h.id, h.name, h.invite_code, h.created_by, h.created_at, h.updated_at
		FROM households h
		INNER JOIN household_members hm ON h.id = hm.household_id
		WHERE hm.user_id = $1
		ORDER BY h.created_at DESC
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get user households: %w", err)
	}
	defer rows.Close()

	households := make([]*Household, 0)
	for rows.Next() {
		var household Household
		err := rows.Scan(
			&household.ID,
			&household.Name,
			&household.InviteCode,
			&household.CreatedBy,
			&household.CreatedAt,
			&household.UpdatedAt,
		)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan household: %w", err)
		}
		households = append(households, &household)
	}

	if err = rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating over households: %w", err)
	}

	return households, nil
}

// GetHousehold returns the household with its members, oldest first
func (s *Service) GetHousehold(ctx context.Context, householdID uuid.UUID) (*HouseholdWithMembers, error) {
	ctx, span := tracer.Start(ctx, "households.GetHousehold")
	defer span.End()

	var household Household
	err := s.db.QueryRow(ctx, `
		SELECT id, name, invite_code, created_by, created_at, updated_at
		FROM households
		WHERE id = $1
	`, householdID).Scan(
		&household.ID,
		&household.Name,
		&household.InviteCode,
		&household.CreatedBy,
		&household.CreatedAt,
		&household.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrHouseholdNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get household: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT household_id, user_id, role, joined_at
		FROM household_members
		WHERE household_id = $1
		ORDER BY joined_at ASC
	`, householdID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get household members: %w", err)
	}
	defer rows.Close()

	members := make([]Member, 0)
	for rows.Next() {
		var member Member
		if err := rows.Scan(&member.HouseholdID, &member.UserID, &member.Role, &member.JoinedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan household member: %w", err)
		}
		members = append(members, member)
	}

	if err = rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating over household members: %w", err)
	}

	return &HouseholdWithMembers{
		Household: household,
		Members:   members,
	}, nil
}

// JoinByInviteCode adds userID as a member of the household owning code
func (s *Service) JoinByInviteCode(ctx context.Context, code string, userID uuid.UUID) (*Household, error) {
	ctx, span := tracer.Start(ctx, "households.JoinByInviteCode")
	defer span.End()

	code, err := NormalizeInviteCode(code)
	if err != nil {
		return nil, err
	}

	var household Household
	err = s.db.QueryRow(ctx, `
		SELECT id, name, invite_code, created_by, created_at, updated_at
		FROM households
		WHERE invite_code = $1
	`, code).Scan(
		&household.ID,
		&household.Name,
		&household.InviteCode,
		&household.CreatedBy,
		&household.CreatedAt,
		&household.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidInviteCode
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to look up invite code: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO household_members (household_id, user_id, role, joined_at)
		VALUES ($1, $2, 'member', NOW())
	`, household.ID, userID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, ErrAlreadyMember
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to add member to household: %w", err)
	}

	countOperation(ctx, "join")
	s.logger.Info("User joined household", "household_id", household.ID, "user_id", userID)

	return &household, nil
}

// RegenerateInviteCode replaces the invite code, invalidating the previous one
func (s *Service) RegenerateInviteCode(ctx context.Context, householdID, requestedBy uuid.UUID) (string, error) {
	ctx, span := tracer.Start(ctx, "households.RegenerateInviteCode")
	defer span.End()

	if err := s.requireOwner(ctx, householdID, requestedBy); err != nil {
		return "", err
	}

	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		code, err := generateInviteCode()
		if err != nil {
			return "", err
		}

		_, err = s.db.Exec(ctx,
			`UPDATE households SET invite_code = $2, updated_at = NOW() WHERE id = $1`,
			householdID, code)
		if err == nil {
			countOperation(ctx, "regenerate_invite")
			return code, nil
		}
		if !postgres.IsUniqueViolation(err) {
			span.RecordError(err)
			return "", fmt.Errorf("failed to update invite code: %w", err)
		}
	}

	return "", fmt.Errorf("failed to allocate a unique invite code")
}

// RemoveMember removes userID from the household. Only the owner may remove members
// and the owner cannot remove themself.
func (s *Service) RemoveMember(ctx context.Context, householdID, userID, requestedBy uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "households.RemoveMember")
	defer span.End()

	if err := s.requireOwner(ctx, householdID, requestedBy); err != nil {
		return err
	}
	if userID == requestedBy {
		return ErrOwnerCannotLeave
	}

	result, err := s.db.Exec(ctx,
		`DELETE FROM household_members WHERE household_id = $1 AND user_id = $2`,
		householdID, userID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to remove member from household: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrMemberNotFound
	}

	countOperation(ctx, "remove_member")
	s.logger.Info("Member removed from household", "household_id", householdID, "user_id", userID)
	return nil
}

// MemberRole returns the role of userID, or "" when not a member
func (s *Service) MemberRole(ctx context.Context, householdID, userID uuid.UUID) (string, error) {
	ctx, span := tracer.Start(ctx, "households.MemberRole")
	defer span.End()

	var role string
	err := s.db.QueryRow(ctx,
		`SELECT role FROM household_members WHERE household_id = $1 AND user_id = $2`,
		householdID, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to check user role: %w", err)
	}

	return role, nil
}

func (s *Service) IsMember(ctx context.Context, householdID, userID uuid.UUID) (bool, error) {
	role, err := s.MemberRole(ctx, householdID, userID)
	if err != nil {
		return false, err
	}
	return role != "", nil
}

func (s *Service) requireOwner(ctx context.Context, householdID, userID uuid.UUID) error {
	role, err := s.MemberRole(ctx, householdID, userID)
	if err != nil {
		return err
	}
	if role != RoleOwner {
		return ErrNotOwner
	}
	return nil
}
