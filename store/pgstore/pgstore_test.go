package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goTrust/store"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return New(db), mock
}

var accountCols = []string{"id", "username", "email", "password_hash", "role", "created_at", "last_login_at"}

func TestFindAccountByID(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`^SELECT id, username, email, password_hash, role, created_at, last_login_at FROM accounts WHERE id = \$1$`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow("a1", "alice", "alice@example.com", "$argon2id$x", "moderator", now, nil))

	a, err := s.FindAccountByID(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "alice", a.Username)
	assert.Equal(t, store.RoleModerator, a.Role)
	assert.Nil(t, a.LastLoginAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindAccountByIDNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM accounts WHERE id = \$1$`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.FindAccountByID(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestFindAccountByIdentifierPrefersEmail(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`(?s)WHERE\s+username\s+=\s+\$1\s+OR\s+lower\(email\)\s+=\s+lower\(\$1\)\s+ORDER\s+BY\s+\(lower\(email\)\s+=\s+lower\(\$1\)\)\s+DESC,\s+created_at\s+ASC\s+LIMIT\s+1\s*$`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow("a1", "alice", "alice@example.com", "h", "user", time.Now(), time.Now()))

	a, err := s.FindAccountByIdentifier(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, a.LastLoginAt)
}

func TestCreateAccountDuplicate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`^INSERT INTO accounts \(id, username, email, password_hash, role, created_at, last_login_at\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7\)$`).
		WithArgs("a1", "alice", "alice@example.com", "h", "user", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := s.CreateAccount(context.Background(), &store.Account{
		ID: "a1", Username: "alice", Email: "alice@example.com", PasswordHash: "h", Role: store.RoleUser, CreatedAt: time.Now(),
	})
	require.ErrorIs(t, err, store.ErrDuplicate)
}

func TestDeleteSessionReportsRowsAffected(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`^DELETE FROM sessions WHERE id = \$1$`).WithArgs("s1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^DELETE FROM sessions WHERE id = \$1$`).WithArgs("s1").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.DeleteSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.DeleteSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWithTxCommitsBanAndRevocation(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`^SELECT id FROM accounts WHERE id = \$1 FOR UPDATE$`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1"))
	mock.ExpectExec(`^INSERT INTO bans`).
		WithArgs("b1", "a1", "m1", "spam", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^DELETE FROM sessions WHERE account_id = \$1$`).
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	var revoked int64
	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Repository) error {
		if err := tx.LockAccount(ctx, "a1"); err != nil {
			return err
		}
		if err := tx.InsertBan(ctx, &store.Ban{ID: "b1", AccountID: "a1", ModeratorID: "m1", Reason: "spam", CreatedAt: time.Now()}); err != nil {
			return err
		}
		n, err := tx.DeleteSessionsFor(ctx, "a1")
		revoked = n
		return err
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, revoked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`^DELETE FROM sessions WHERE id = \$1$`).WithArgs("s1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	errGone := errors.New("gone")
	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Repository) error {
		ok, err := tx.DeleteSession(ctx, "s1")
		if err != nil {
			return err
		}
		if !ok {
			return errGone
		}
		return nil
	})
	require.ErrorIs(t, err, errGone)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveBan(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()
	until := now.Add(time.Hour)

	mock.ExpectQuery(`(?s)FROM\s+bans\s+WHERE\s+account_id\s+=\s+\$1\s+AND\s+revoked_at\s+IS\s+NULL\s+AND\s+\(until\s+IS\s+NULL\s+OR\s+until\s+>\s+\$2\)\s+ORDER\s+BY\s+created_at\s+DESC\s+LIMIT\s+1\s*$`).
		WithArgs("a1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "moderator_id", "reason", "until", "created_at", "revoked_at"}).
			AddRow("b1", "a1", "m1", "spam", until, now, nil))

	b, err := s.ActiveBan(context.Background(), "a1", now)
	require.NoError(t, err)
	require.NotNil(t, b.Until)
	assert.True(t, b.ActiveAt(now))
}

func TestActiveBanWithoutModerator(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`FROM\s+bans`).
		WithArgs("a1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "moderator_id", "reason", "until", "created_at", "revoked_at"}).
			AddRow("b1", "a1", nil, "", nil, now, nil))

	b, err := s.ActiveBan(context.Background(), "a1", now)
	require.NoError(t, err)
	assert.Empty(t, b.ModeratorID)
	assert.Nil(t, b.Until)
}

func TestEmptyModeratorIsStoredAsNull(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`^INSERT INTO bans`).
		WithArgs("b1", "a1", nil, "", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^INSERT INTO warnings`).
		WithArgs("w1", "a1", nil, "be nice", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	require.NoError(t, s.InsertBan(ctx, &store.Ban{ID: "b1", AccountID: "a1", CreatedAt: time.Now()}))
	require.NoError(t, s.InsertWarning(ctx, &store.Warning{ID: "w1", AccountID: "a1", Reason: "be nice", CreatedAt: time.Now()}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMalformedIDIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`^SELECT id FROM accounts WHERE id = \$1 FOR UPDATE$`).
		WithArgs("not-a-uuid").
		WillReturnError(&pgconn.PgError{Code: "22P02"})
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Repository) error {
		return tx.LockAccount(ctx, "not-a-uuid")
	})
	require.ErrorIs(t, err, store.ErrNotFound)

	mock.ExpectQuery(`FROM accounts WHERE id = \$1$`).
		WithArgs("also-bad").
		WillReturnError(&pgconn.PgError{Code: "22P02"})

	_, err = s.FindAccountByID(context.Background(), "also-bad")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermanentBansBefore(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`^SELECT DISTINCT account_id FROM bans WHERE until IS NULL AND revoked_at IS NULL AND created_at <= \$1$`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"account_id"}).AddRow("a1").AddRow("a2"))

	ids, err := s.PermanentBansBefore(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, ids)
}

func TestPurgeDependentsWarningsIssued(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`^DELETE FROM warnings WHERE moderator_id = \$1$`).WithArgs("a1").WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := s.PurgeDependents(context.Background(), store.DependentWarningsIssued, "a1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = s.PurgeDependents(context.Background(), store.Dependent("nope"), "a1")
	require.Error(t, err)
}

func TestMarkTwoFactorVerifiedMissingRow(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`^UPDATE two_factor_secrets SET verified_at = \$2 WHERE account_id = \$1$`).
		WithArgs("a1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.MarkTwoFactorVerified(context.Background(), "a1", time.Now())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestWrapErrKeepsCause(t *testing.T) {
	s, mock := newMockStore(t)
	down := errors.New("db down")

	mock.ExpectExec(`^DELETE FROM tickets WHERE expires_at <= \$1$`).WithArgs(sqlmock.AnyArg()).WillReturnError(down)

	_, err := s.DeleteExpiredTickets(context.Background(), time.Now())
	require.ErrorIs(t, err, down)
	assert.Contains(t, err.Error(), "db error")
}

func TestMigrateUsesEmbeddedFS(t *testing.T) {
	s, _ := newMockStore(t)

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}
	require.NoError(t, s.Migrate(context.Background()))
	assert.Equal(t, ".", gotDir)

	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	require.Error(t, s.Migrate(context.Background()))
}
