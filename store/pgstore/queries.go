package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/MrEthical07/goTrust/internal/dbx"
	"github.com/MrEthical07/goTrust/store"
)

// queries implements store.Repository against a DBTX.
type queries struct {
	db dbx.DBTX
}

var _ store.Repository = (*queries)(nil)

const accountColumns = `id, username, email, password_hash, role, created_at, last_login_at`

func scanAccount(row interface{ Scan(...any) error }) (*store.Account, error) {
	var (
		a         store.Account
		role      string
		lastLogin sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &role, &a.CreatedAt, &lastLogin); err != nil {
		return nil, wrapErr(err)
	}
	a.Role = store.Role(role)
	a.LastLoginAt = timePtr(lastLogin)
	return &a, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (q *queries) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrapErr(err)
	}
	return dbx.RowsAffected(res)
}

func (q *queries) CreateAccount(ctx context.Context, a *store.Account) error {
	_, err := q.exec(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Username, a.Email, a.PasswordHash, string(a.Role), a.CreatedAt, nullTime(a.LastLoginAt))
	return err
}

func (q *queries) FindAccountByID(ctx context.Context, id string) (*store.Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (q *queries) FindAccountByEmail(ctx context.Context, email string) (*store.Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1)`, email))
}

// FindAccountByIdentifier prefers an email match over a username match, and
// the oldest account among duplicate usernames.
func (q *queries) FindAccountByIdentifier(ctx context.Context, identifier string) (*store.Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE username = $1 OR lower(email) = lower($1)
		 ORDER BY (lower(email) = lower($1)) DESC, created_at ASC
		 LIMIT 1`, identifier))
}

func (q *queries) updateAccount(ctx context.Context, query string, args ...any) error {
	n, err := q.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (q *queries) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return q.updateAccount(ctx, `UPDATE accounts SET last_login_at = $2 WHERE id = $1`, id, at)
}

func (q *queries) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return q.updateAccount(ctx, `UPDATE accounts SET password_hash = $2 WHERE id = $1`, id, hash)
}

func (q *queries) LockAccount(ctx context.Context, id string) error {
	var got string
	err := q.db.QueryRowContext(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&got)
	return wrapErr(err)
}

func (q *queries) DeleteAccount(ctx context.Context, id string) (bool, error) {
	n, err := q.exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	return n > 0, err
}

func (q *queries) GetTwoFactor(ctx context.Context, accountID string) (*store.TwoFactorSecret, error) {
	var (
		s        store.TwoFactorSecret
		verified sql.NullTime
	)
	err := q.db.QueryRowContext(ctx,
		`SELECT account_id, secret_enc, created_at, verified_at FROM two_factor_secrets WHERE account_id = $1`,
		accountID).Scan(&s.AccountID, &s.SecretEnc, &s.CreatedAt, &verified)
	if err != nil {
		return nil, wrapErr(err)
	}
	s.VerifiedAt = timePtr(verified)
	return &s, nil
}

func (q *queries) UpsertTwoFactor(ctx context.Context, s *store.TwoFactorSecret) error {
	_, err := q.exec(ctx,
		`INSERT INTO two_factor_secrets (account_id, secret_enc, created_at, verified_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (account_id) DO UPDATE
		 SET secret_enc = EXCLUDED.secret_enc, created_at = EXCLUDED.created_at, verified_at = EXCLUDED.verified_at`,
		s.AccountID, s.SecretEnc, s.CreatedAt, nullTime(s.VerifiedAt))
	return err
}

func (q *queries) MarkTwoFactorVerified(ctx context.Context, accountID string, at time.Time) error {
	return q.updateAccount(ctx, `UPDATE two_factor_secrets SET verified_at = $2 WHERE account_id = $1`, accountID, at)
}

func (q *queries) DeleteTwoFactor(ctx context.Context, accountID string) (bool, error) {
	n, err := q.exec(ctx, `DELETE FROM two_factor_secrets WHERE account_id = $1`, accountID)
	return n > 0, err
}

func (q *queries) InsertSession(ctx context.Context, s *store.Session) error {
	_, err := q.exec(ctx,
		`INSERT INTO sessions (id, account_id, token_enc, created_at, expires_at) VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.AccountID, s.TokenEnc, s.CreatedAt, s.ExpiresAt)
	return err
}

func (q *queries) ListSessions(ctx context.Context, accountID string) ([]store.Session, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, account_id, token_enc, created_at, expires_at FROM sessions WHERE account_id = $1 ORDER BY created_at`,
		accountID)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	out := make([]store.Session, 0)
	for rows.Next() {
		var s store.Session
		if err := rows.Scan(&s.ID, &s.AccountID, &s.TokenEnc, &s.CreatedAt, &s.ExpiresAt); err != nil {
			return nil, wrapErr(err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err)
	}
	return out, nil
}

func (q *queries) DeleteSession(ctx context.Context, id string) (bool, error) {
	n, err := q.exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return n > 0, err
}

func (q *queries) DeleteSessionsFor(ctx context.Context, accountID string) (int64, error) {
	return q.exec(ctx, `DELETE FROM sessions WHERE account_id = $1`, accountID)
}

func (q *queries) InsertTicket(ctx context.Context, t *store.Ticket) error {
	_, err := q.exec(ctx,
		`INSERT INTO tickets (purpose, key, account_id, created_at, expires_at) VALUES ($1, $2, $3, $4, $5)`,
		string(t.Purpose), t.Key, t.AccountID, t.CreatedAt, t.ExpiresAt)
	return err
}

func (q *queries) FindTicket(ctx context.Context, purpose store.TicketPurpose, key string) (*store.Ticket, error) {
	var (
		t store.Ticket
		p string
	)
	err := q.db.QueryRowContext(ctx,
		`SELECT purpose, key, account_id, created_at, expires_at FROM tickets WHERE purpose = $1 AND key = $2`,
		string(purpose), key).Scan(&p, &t.Key, &t.AccountID, &t.CreatedAt, &t.ExpiresAt)
	if err != nil {
		return nil, wrapErr(err)
	}
	t.Purpose = store.TicketPurpose(p)
	return &t, nil
}

func (q *queries) DeleteTicket(ctx context.Context, purpose store.TicketPurpose, key string) (bool, error) {
	n, err := q.exec(ctx, `DELETE FROM tickets WHERE purpose = $1 AND key = $2`, string(purpose), key)
	return n > 0, err
}

func (q *queries) DeleteTicketsFor(ctx context.Context, purpose store.TicketPurpose, accountID string) (int64, error) {
	return q.exec(ctx, `DELETE FROM tickets WHERE purpose = $1 AND account_id = $2`, string(purpose), accountID)
}

func (q *queries) DeleteExpiredTickets(ctx context.Context, now time.Time) (int64, error) {
	return q.exec(ctx, `DELETE FROM tickets WHERE expires_at <= $1`, now)
}

const banColumns = `id, account_id, moderator_id, reason, until, created_at, revoked_at`

func scanBan(row interface{ Scan(...any) error }) (*store.Ban, error) {
	var (
		b              store.Ban
		moderator      sql.NullString
		until, revoked sql.NullTime
	)
	if err := row.Scan(&b.ID, &b.AccountID, &moderator, &b.Reason, &until, &b.CreatedAt, &revoked); err != nil {
		return nil, wrapErr(err)
	}
	b.ModeratorID = moderator.String
	b.Until = timePtr(until)
	b.RevokedAt = timePtr(revoked)
	return &b, nil
}

func (q *queries) InsertBan(ctx context.Context, b *store.Ban) error {
	_, err := q.exec(ctx,
		`INSERT INTO bans (`+banColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.AccountID, nullString(b.ModeratorID), b.Reason, nullTime(b.Until), b.CreatedAt, nullTime(b.RevokedAt))
	return err
}

func (q *queries) ActiveBan(ctx context.Context, accountID string, now time.Time) (*store.Ban, error) {
	return scanBan(q.db.QueryRowContext(ctx,
		`SELECT `+banColumns+` FROM bans
		 WHERE account_id = $1 AND revoked_at IS NULL AND (until IS NULL OR until > $2)
		 ORDER BY created_at DESC
		 LIMIT 1`, accountID, now))
}

func (q *queries) LatestUnrevokedBan(ctx context.Context, accountID string) (*store.Ban, error) {
	return scanBan(q.db.QueryRowContext(ctx,
		`SELECT `+banColumns+` FROM bans
		 WHERE account_id = $1 AND revoked_at IS NULL
		 ORDER BY created_at DESC
		 LIMIT 1`, accountID))
}

func (q *queries) RevokeBan(ctx context.Context, banID string, at time.Time) (bool, error) {
	n, err := q.exec(ctx, `UPDATE bans SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, banID, at)
	return n > 0, err
}

func (q *queries) PermanentBansBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT DISTINCT account_id FROM bans WHERE until IS NULL AND revoked_at IS NULL AND created_at <= $1`,
		cutoff)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapErr(err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err)
	}
	return out, nil
}

func (q *queries) InsertWarning(ctx context.Context, w *store.Warning) error {
	_, err := q.exec(ctx,
		`INSERT INTO warnings (id, account_id, moderator_id, reason, created_at) VALUES ($1, $2, $3, $4, $5)`,
		w.ID, w.AccountID, nullString(w.ModeratorID), w.Reason, w.CreatedAt)
	return err
}

var purgeQueries = map[store.Dependent]string{
	store.DependentSessions:         `DELETE FROM sessions WHERE account_id = $1`,
	store.DependentTickets:          `DELETE FROM tickets WHERE account_id = $1`,
	store.DependentTwoFactor:        `DELETE FROM two_factor_secrets WHERE account_id = $1`,
	store.DependentWarningsReceived: `DELETE FROM warnings WHERE account_id = $1`,
	store.DependentWarningsIssued:   `DELETE FROM warnings WHERE moderator_id = $1`,
	store.DependentBans:             `DELETE FROM bans WHERE account_id = $1`,
}

func (q *queries) PurgeDependents(ctx context.Context, kind store.Dependent, accountID string) (int64, error) {
	query, ok := purgeQueries[kind]
	if !ok {
		return 0, fmt.Errorf("pgstore: unknown dependent %q", kind)
	}
	return q.exec(ctx, query, accountID)
}
