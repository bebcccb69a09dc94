package households

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrHouseholdNotFound = errors.New("household not found")
	ErrInvalidInviteCode = errors.New("invite code is not valid")
	ErrAlreadyMember     = errors.New("user is already a member of this household")
	ErrNotOwner          = errors.New("only the household owner can do this")
	ErrMemberNotFound    = errors.New("member not found in household")
	ErrOwnerCannotLeave  = errors.New("the owner cannot be removed from the household")
	ErrInvalidName       = errors.New("household name must not be empty")
)

const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

type Household struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	InviteCode string    `json:"invite_code" db:"invite_code"`
	CreatedBy  uuid.UUID `json:"created_by" db:"created_by"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

type Member struct {
	HouseholdID uuid.UUID `json:"household_id" db:"household_id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	Role        string    `json:"role" db:"role"`
	JoinedAt    time.Time `json:"joined_at" db:"joined_at"`
}

type HouseholdWithMembers struct {
	Household Household `json:"household"`
	Members   []Member  `json:"members"`
}

type CreateHouseholdRequest struct {
	Name      string
	CreatedBy uuid.UUID
}
