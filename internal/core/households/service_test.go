package households

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i := range dest {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(r.values[i]))
	}
	return nil
}

// fakeDB answers QueryRow and Exec from scripted functions
type fakeDB struct {
	queryRow func(sql string, args []any) pgx.Row
	exec     func(sql string, args []any) (pgconn.CommandTag, error)
	execs    []string
}

func (f *fakeDB) Begin(context.Context) (pgx.Tx, error) { return nil, errors.New("not supported") }
func (f *fakeDB) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}
func (f *fakeDB) Ping(context.Context) error { return nil }
func (f *fakeDB) Close()                     {}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...interface{}) pgx.Row {
	return f.queryRow(sql, args)
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return f.exec(sql, args)
}

func roleRow(role string) func(string, []any) pgx.Row {
	return func(sql string, _ []any) pgx.Row {
		if role == "" {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{values: []any{role}}
	}
}

func newTestService(db *fakeDB) *Service {
	return NewService(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGenerateInviteCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code, err := generateInviteCode()
		require.NoError(t, err)
		assert.Len(t, code, inviteCodeLength)
		assert.False(t, strings.ContainsAny(code, "0O1I"), code)

		normalized, err := NormalizeInviteCode(code)
		require.NoError(t, err)
		assert.Equal(t, code, normalized)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 95)
}

func TestNormalizeInviteCode(t *testing.T) {
	testCases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "lower case with spaces", in: "  abcd2345 ", want: "ABCD2345"},
		{name: "already normalized", in: "XYZW9876", want: "XYZW9876"},
		{name: "too short", in: "ABC", wantErr: true},
		{name: "ambiguous characters", in: "ABCD0123", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeInviteCode(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInviteCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRemoveMember(t *testing.T) {
	householdID := uuid.New()
	owner := uuid.New()
	other := uuid.New()

	t.Run("requester is not the owner", func(t *testing.T) {
		db := &fakeDB{queryRow: roleRow(RoleMember)}
		err := newTestService(db).RemoveMember(context.Background(), householdID, other, owner)
		assert.ErrorIs(t, err, ErrNotOwner)
		assert.Empty(t, db.execs)
	})

	t.Run("requester is not a member", func(t *testing.T) {
		db := &fakeDB{queryRow: roleRow("")}
		err := newTestService(db).RemoveMember(context.Background(), householdID, other, owner)
		assert.ErrorIs(t, err, ErrNotOwner)
	})

	t.Run("owner removes self", func(t *testing.T) {
		db := &fakeDB{queryRow: roleRow(RoleOwner)}
		err := newTestService(db).RemoveMember(context.Background(), householdID, owner, owner)
		assert.ErrorIs(t, err, ErrOwnerCannotLeave)
		assert.Empty(t, db.execs)
	})

	t.Run("unknown member", func(t *testing.T) {
		db := &fakeDB{
			queryRow: roleRow(RoleOwner),
			exec: func(string, []any) (pgconn.CommandTag, error) {
				return pgconn.NewCommandTag("DELETE 0"), nil
			},
		}
		err := newTestService(db).RemoveMember(context.Background(), householdID, other, owner)
		assert.ErrorIs(t, err, ErrMemberNotFound)
	})

	t.Run("owner removes member", func(t *testing.T) {
		db := &fakeDB{
			queryRow: roleRow(RoleOwner),
			exec: func(_ string, args []any) (pgconn.CommandTag, error) {
				assert.Equal(t, []any{householdID, other}, args)
				return pgconn.NewCommandTag("DELETE 1"), nil
			},
		}
		err := newTestService(db).RemoveMember(context.Background(), householdID, other, owner)
		assert.NoError(t, err)
		assert.Len(t, db.execs, 1)
	})
}

func TestJoinByInviteCode(t *testing.T) {
	userID := uuid.New()
	household := Household{
		ID:         uuid.New(),
		Name:       "Casa",
		InviteCode: "ABCD2345",
		CreatedBy:  uuid.New(),
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	householdRow := func(_ string, args []any) pgx.Row {
		if args[0] != household.InviteCode {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{values: []any{
			household.ID, household.Name, household.InviteCode,
			household.CreatedBy, household.CreatedAt, household.UpdatedAt,
		}}
	}

	t.Run("malformed code never reaches the database", func(t *testing.T) {
		db := &fakeDB{}
		_, err := newTestService(db).JoinByInviteCode(context.Background(), "nope", userID)
		assert.ErrorIs(t, err, ErrInvalidInviteCode)
	})

	t.Run("unknown code", func(t *testing.T) {
		db := &fakeDB{queryRow: householdRow}
		_, err := newTestService(db).JoinByInviteCode(context.Background(), "ZZZZ2345", userID)
		assert.ErrorIs(t, err, ErrInvalidInviteCode)
	})

	t.Run("already a member", func(t *testing.T) {
		db := &fakeDB{
			queryRow: householdRow,
			exec: func(string, []any) (pgconn.CommandTag, error) {
				return pgconn.CommandTag{}, &pgconn.PgError{Code: "23505"}
			},
		}
		_, err := newTestService(db).JoinByInviteCode(context.Background(), "abcd2345", userID)
		assert.ErrorIs(t, err, ErrAlreadyMember)
	})

	t.Run("joins with lower case code", func(t *testing.T) {
		db := &fakeDB{
			queryRow: householdRow,
			exec: func(_ string, args []any) (pgconn.CommandTag, error) {
				assert.Equal(t, []any{household.ID, userID}, args)
				return pgconn.NewCommandTag("INSERT 0 1"), nil
			},
		}
		got, err := newTestService(db).JoinByInviteCode(context.Background(), " abcd2345", userID)
		require.NoError(t, err)
		assert.Equal(t, household.ID, got.ID)
		assert.Equal(t, "Casa", got.Name)
	})
}

func TestIsMember(t *testing.T) {
	db := &fakeDB{queryRow: roleRow(RoleMember)}
	ok, err := newTestService(db).IsMember(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.True(t, ok)

	db = &fakeDB{queryRow: roleRow("")}
	ok, err = newTestService(db).IsMember(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateHouseholdRequiresName(t *testing.T) {
	_, err := newTestService(&fakeDB{}).CreateHousehold(context.Background(), CreateHouseholdRequest{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidName)
}
