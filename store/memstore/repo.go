package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goTrust/store"
)

var _ store.Repository = (*repo)(nil)

func errUnknownDependent(kind store.Dependent) error {
	return fmt.Errorf("memstore: unknown dependent %q", kind)
}

func (r *repo) CreateAccount(ctx context.Context, account *store.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.createAccount(account)
}

func (r *repo) FindAccountByID(ctx context.Context, id string) (*store.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.accountByID(id)
}

func (r *repo) FindAccountByIdentifier(ctx context.Context, identifier string) (*store.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.accountByIdentifier(identifier)
}

func (r *repo) FindAccountByEmail(ctx context.Context, email string) (*store.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.accountByEmail(email)
}

func (r *repo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.updateAccount(id, func(a *store.Account) { a.LastLoginAt = &at })
}

func (r *repo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.updateAccount(id, func(a *store.Account) { a.PasswordHash = hash })
}

// LockAccount only checks existence; the store lock already serialises transactions.
func (r *repo) LockAccount(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.accountByID(id)
	return err
}

func (r *repo) DeleteAccount(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return r.deleteAccount(id), nil
}

func (r *repo) GetTwoFactor(ctx context.Context, accountID string) (*store.TwoFactorSecret, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, ok := r.st.twofa[accountID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func (r *repo) UpsertTwoFactor(ctx context.Context, secret *store.TwoFactorSecret) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.st.twofa[secret.AccountID] = *secret
	return nil
}

func (r *repo) MarkTwoFactorVerified(ctx context.Context, accountID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, ok := r.st.twofa[accountID]
	if !ok {
		return store.ErrNotFound
	}
	s.VerifiedAt = &at
	r.st.twofa[accountID] = s
	return nil
}

func (r *repo) DeleteTwoFactor(ctx context.Context, accountID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, ok := r.st.twofa[accountID]
	delete(r.st.twofa, accountID)
	return ok, nil
}

func (r *repo) InsertSession(ctx context.Context, session *store.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := r.st.sessions[session.ID]; ok {
		return store.ErrDuplicate
	}
	r.st.sessions[session.ID] = *session
	return nil
}

func (r *repo) ListSessions(ctx context.Context, accountID string) ([]store.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.sessionsFor(accountID), nil
}

func (r *repo) DeleteSession(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, ok := r.st.sessions[id]
	delete(r.st.sessions, id)
	return ok, nil
}

func (r *repo) DeleteSessionsFor(ctx context.Context, accountID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return r.deleteSessionsFor(accountID), nil
}

func (r *repo) InsertTicket(ctx context.Context, ticket *store.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k := ticketKey{purpose: ticket.Purpose, key: ticket.Key}
	if _, ok := r.st.tickets[k]; ok {
		return store.ErrDuplicate
	}
	r.st.tickets[k] = *ticket
	return nil
}

func (r *repo) FindTicket(ctx context.Context, purpose store.TicketPurpose, key string) (*store.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, ok := r.st.tickets[ticketKey{purpose: purpose, key: key}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (r *repo) DeleteTicket(ctx context.Context, purpose store.TicketPurpose, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	k := ticketKey{purpose: purpose, key: key}
	_, ok := r.st.tickets[k]
	delete(r.st.tickets, k)
	return ok, nil
}

func (r *repo) DeleteTicketsFor(ctx context.Context, purpose store.TicketPurpose, accountID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return r.deleteTicketsWhere(func(t store.Ticket) bool {
		return t.Purpose == purpose && t.AccountID == accountID
	}), nil
}

func (r *repo) DeleteExpiredTickets(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return r.deleteTicketsWhere(func(t store.Ticket) bool { return t.Expired(now) }), nil
}

func (r *repo) InsertBan(ctx context.Context, ban *store.Ban) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := r.st.bans[ban.ID]; ok {
		return store.ErrDuplicate
	}
	r.st.bans[ban.ID] = *ban
	r.st.banOrder = append(r.st.banOrder, ban.ID)
	return nil
}

func (r *repo) ActiveBan(ctx context.Context, accountID string, now time.Time) (*store.Ban, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.latestBan(accountID, func(b store.Ban) bool { return b.ActiveAt(now) })
}

func (r *repo) LatestUnrevokedBan(ctx context.Context, accountID string) (*store.Ban, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.latestBan(accountID, func(b store.Ban) bool { return b.RevokedAt == nil })
}

func (r *repo) RevokeBan(ctx context.Context, banID string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b, ok := r.st.bans[banID]
	if !ok || b.RevokedAt != nil {
		return false, nil
	}
	b.RevokedAt = &at
	r.st.bans[banID] = b
	return true, nil
}

func (r *repo) PermanentBansBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, id := range r.st.banOrder {
		b := r.st.bans[id]
		if b.Until != nil || b.RevokedAt != nil || b.CreatedAt.After(cutoff) {
			continue
		}
		if _, dup := seen[b.AccountID]; dup {
			continue
		}
		seen[b.AccountID] = struct{}{}
		out = append(out, b.AccountID)
	}
	return out, nil
}

func (r *repo) InsertWarning(ctx context.Context, warning *store.Warning) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.st.warnings[warning.ID] = *warning
	return nil
}

func (r *repo) PurgeDependents(ctx context.Context, kind store.Dependent, accountID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return r.purge(kind, accountID)
}
