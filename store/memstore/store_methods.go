package memstore

import (
	"context"
	"time"

	"github.com/MrEthical07/goTrust/store"
)

// get runs fn under the store lock and returns its result.
func get[T any](m *Store, ctx context.Context, fn func(r *repo) (T, error)) (T, error) {
	var out T
	err := m.do(ctx, func(r *repo) error {
		var err error
		out, err = fn(r)
		return err
	})
	return out, err
}

func (m *Store) CreateAccount(ctx context.Context, account *store.Account) error {
	return m.do(ctx, func(r *repo) error { return r.CreateAccount(ctx, account) })
}

func (m *Store) FindAccountByID(ctx context.Context, id string) (*store.Account, error) {
	return get(m, ctx, func(r *repo) (*store.Account, error) { return r.FindAccountByID(ctx, id) })
}

func (m *Store) FindAccountByIdentifier(ctx context.Context, identifier string) (*store.Account, error) {
	return get(m, ctx, func(r *repo) (*store.Account, error) { return r.FindAccountByIdentifier(ctx, identifier) })
}

func (m *Store) FindAccountByEmail(ctx context.Context, email string) (*store.Account, error) {
	return get(m, ctx, func(r *repo) (*store.Account, error) { return r.FindAccountByEmail(ctx, email) })
}

func (m *Store) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return m.do(ctx, func(r *repo) error { return r.UpdateLastLogin(ctx, id, at) })
}

func (m *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return m.do(ctx, func(r *repo) error { return r.UpdatePasswordHash(ctx, id, hash) })
}

func (m *Store) LockAccount(ctx context.Context, id string) error {
	return m.do(ctx, func(r *repo) error { return r.LockAccount(ctx, id) })
}

func (m *Store) DeleteAccount(ctx context.Context, id string) (bool, error) {
	return get(m, ctx, func(r *repo) (bool, error) { return r.DeleteAccount(ctx, id) })
}

func (m *Store) GetTwoFactor(ctx context.Context, accountID string) (*store.TwoFactorSecret, error) {
	return get(m, ctx, func(r *repo) (*store.TwoFactorSecret, error) { return r.GetTwoFactor(ctx, accountID) })
}

func (m *Store) UpsertTwoFactor(ctx context.Context, secret *store.TwoFactorSecret) error {
	return m.do(ctx, func(r *repo) error { return r.UpsertTwoFactor(ctx, secret) })
}

func (m *Store) MarkTwoFactorVerified(ctx context.Context, accountID string, at time.Time) error {
	return m.do(ctx, func(r *repo) error { return r.MarkTwoFactorVerified(ctx, accountID, at) })
}

func (m *Store) DeleteTwoFactor(ctx context.Context, accountID string) (bool, error) {
	return get(m, ctx, func(r *repo) (bool, error) { return r.DeleteTwoFactor(ctx, accountID) })
}

func (m *Store) InsertSession(ctx context.Context, session *store.Session) error {
	return m.do(ctx, func(r *repo) error { return r.InsertSession(ctx, session) })
}

func (m *Store) ListSessions(ctx context.Context, accountID string) ([]store.Session, error) {
	return get(m, ctx, func(r *repo) ([]store.Session, error) { return r.ListSessions(ctx, accountID) })
}

func (m *Store) DeleteSession(ctx context.Context, id string) (bool, error) {
	return get(m, ctx, func(r *repo) (bool, error) { return r.DeleteSession(ctx, id) })
}

func (m *Store) DeleteSessionsFor(ctx context.Context, accountID string) (int64, error) {
	return get(m, ctx, func(r *repo) (int64, error) { return r.DeleteSessionsFor(ctx, accountID) })
}

func (m *Store) InsertTicket(ctx context.Context, ticket *store.Ticket) error {
	return m.do(ctx, func(r *repo) error { return r.InsertTicket(ctx, ticket) })
}

func (m *Store) FindTicket(ctx context.Context, purpose store.TicketPurpose, key string) (*store.Ticket, error) {
	return get(m, ctx, func(r *repo) (*store.Ticket, error) { return r.FindTicket(ctx, purpose, key) })
}

func (m *Store) DeleteTicket(ctx context.Context, purpose store.TicketPurpose, key string) (bool, error) {
	return get(m, ctx, func(r *repo) (bool, error) { return r.DeleteTicket(ctx, purpose, key) })
}

func (m *Store) DeleteTicketsFor(ctx context.Context, purpose store.TicketPurpose, accountID string) (int64, error) {
	return get(m, ctx, func(r *repo) (int64, error) { return r.DeleteTicketsFor(ctx, purpose, accountID) })
}

func (m *Store) DeleteExpiredTickets(ctx context.Context, now time.Time) (int64, error) {
	return get(m, ctx, func(r *repo) (int64, error) { return r.DeleteExpiredTickets(ctx, now) })
}

func (m *Store) InsertBan(ctx context.Context, ban *store.Ban) error {
	return m.do(ctx, func(r *repo) error { return r.InsertBan(ctx, ban) })
}

func (m *Store) ActiveBan(ctx context.Context, accountID string, now time.Time) (*store.Ban, error) {
	return get(m, ctx, func(r *repo) (*store.Ban, error) { return r.ActiveBan(ctx, accountID, now) })
}

func (m *Store) LatestUnrevokedBan(ctx context.Context, accountID string) (*store.Ban, error) {
	return get(m, ctx, func(r *repo) (*store.Ban, error) { return r.LatestUnrevokedBan(ctx, accountID) })
}

func (m *Store) RevokeBan(ctx context.Context, banID string, at time.Time) (bool, error) {
	return get(m, ctx, func(r *repo) (bool, error) { return r.RevokeBan(ctx, banID, at) })
}

func (m *Store) PermanentBansBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	return get(m, ctx, func(r *repo) ([]string, error) { return r.PermanentBansBefore(ctx, cutoff) })
}

func (m *Store) InsertWarning(ctx context.Context, warning *store.Warning) error {
	return m.do(ctx, func(r *repo) error { return r.InsertWarning(ctx, warning) })
}

func (m *Store) PurgeDependents(ctx context.Context, kind store.Dependent, accountID string) (int64, error) {
	return get(m, ctx, func(r *repo) (int64, error) { return r.PurgeDependents(ctx, kind, accountID) })
}
