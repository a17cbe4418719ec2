// Package memstore is an in-memory store.Store. Transactions hold a single
// store-wide lock and restore a snapshot on failure, so every transaction is
// serialisable.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/MrEthical07/goTrust/store"
)

type ticketKey struct {
	purpose store.TicketPurpose
	key     string
}

type state struct {
	accounts map[string]store.Account
	emails   map[string]string
	twofa    map[string]store.TwoFactorSecret
	sessions map[string]store.Session
	tickets  map[ticketKey]store.Ticket
	bans     map[string]store.Ban
	banOrder []string
	warnings map[string]store.Warning
}

func newState() *state {
	return &state{
		accounts: make(map[string]store.Account),
		emails:   make(map[string]string),
		twofa:    make(map[string]store.TwoFactorSecret),
		sessions: make(map[string]store.Session),
		tickets:  make(map[ticketKey]store.Ticket),
		bans:     make(map[string]store.Ban),
		warnings: make(map[string]store.Warning),
	}
}

func (s *state) clone() *state {
	return &state{
		accounts: maps.Clone(s.accounts),
		emails:   maps.Clone(s.emails),
		twofa:    maps.Clone(s.twofa),
		sessions: maps.Clone(s.sessions),
		tickets:  maps.Clone(s.tickets),
		bans:     maps.Clone(s.bans),
		banOrder: slices.Clone(s.banOrder),
		warnings: maps.Clone(s.warnings),
	}
}

// Store is safe for concurrent use.
type Store struct {
	mu sync.Mutex
	st *state
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{st: newState()}
}

func (m *Store) do(ctx context.Context, fn func(r *repo) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&repo{st: m.st})
}

// WithTx runs fn with exclusive access to the store. If fn fails or panics
// every change it made is discarded.
func (m *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Repository) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	defer func() {
		if p := recover(); p != nil {
			m.st = snapshot
			panic(p)
		}
		if err != nil {
			m.st = snapshot
		}
	}()

	return fn(ctx, &repo{st: m.st})
}

func (m *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Store) Close() error { return nil }

// Counts reports the number of rows per table. Tests use it to assert cascades.
func (m *Store) Counts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int{
		"accounts":   len(m.st.accounts),
		"two_factor": len(m.st.twofa),
		"sessions":   len(m.st.sessions),
		"tickets":    len(m.st.tickets),
		"bans":       len(m.st.bans),
		"warnings":   len(m.st.warnings),
	}
}

// repo implements the operations against a state the caller has locked.
type repo struct {
	st *state
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *repo) createAccount(a *store.Account) error {
	key := normalizeEmail(a.Email)
	if _, ok := r.st.emails[key]; ok {
		return store.ErrDuplicate
	}
	if _, ok := r.st.accounts[a.ID]; ok {
		return store.ErrDuplicate
	}
	r.st.accounts[a.ID] = *a
	r.st.emails[key] = a.ID
	return nil
}

func (r *repo) accountByID(id string) (*store.Account, error) {
	a, ok := r.st.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (r *repo) accountByEmail(email string) (*store.Account, error) {
	id, ok := r.st.emails[normalizeEmail(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r.accountByID(id)
}

func (r *repo) accountByIdentifier(identifier string) (*store.Account, error) {
	if a, err := r.accountByEmail(identifier); err == nil {
		return a, nil
	}
	var match *store.Account
	for _, a := range r.st.accounts {
		if a.Username != identifier {
			continue
		}
		if match == nil || a.CreatedAt.Before(match.CreatedAt) {
			candidate := a
			match = &candidate
		}
	}
	if match == nil {
		return nil, store.ErrNotFound
	}
	return match, nil
}

func (r *repo) updateAccount(id string, fn func(*store.Account)) error {
	a, ok := r.st.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(&a)
	r.st.accounts[id] = a
	return nil
}

func (r *repo) deleteAccount(id string) bool {
	a, ok := r.st.accounts[id]
	if !ok {
		return false
	}
	delete(r.st.accounts, id)
	delete(r.st.emails, normalizeEmail(a.Email))
	return true
}

func (r *repo) sessionsFor(accountID string) []store.Session {
	out := make([]store.Session, 0)
	for _, s := range r.st.sessions {
		if s.AccountID == accountID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *repo) deleteSessionsFor(accountID string) int64 {
	var n int64
	for id, s := range r.st.sessions {
		if s.AccountID == accountID {
			delete(r.st.sessions, id)
			n++
		}
	}
	return n
}

func (r *repo) deleteTicketsWhere(match func(store.Ticket) bool) int64 {
	var n int64
	for k, t := range r.st.tickets {
		if match(t) {
			delete(r.st.tickets, k)
			n++
		}
	}
	return n
}

// latestBan walks bans newest first and returns the first one accepted by match.
func (r *repo) latestBan(accountID string, match func(store.Ban) bool) (*store.Ban, error) {
	for i := len(r.st.banOrder) - 1; i >= 0; i-- {
		b, ok := r.st.bans[r.st.banOrder[i]]
		if !ok || b.AccountID != accountID {
			continue
		}
		if match(b) {
			return &b, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *repo) deleteBansFor(accountID string) int64 {
	var n int64
	kept := r.st.banOrder[:0]
	for _, id := range r.st.banOrder {
		if b, ok := r.st.bans[id]; ok && b.AccountID == accountID {
			delete(r.st.bans, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	r.st.banOrder = kept
	return n
}

func (r *repo) deleteWarningsWhere(match func(store.Warning) bool) int64 {
	var n int64
	for id, w := range r.st.warnings {
		if match(w) {
			delete(r.st.warnings, id)
			n++
		}
	}
	return n
}

func (r *repo) purge(kind store.Dependent, accountID string) (int64, error) {
	switch kind {
	case store.DependentSessions:
		return r.deleteSessionsFor(accountID), nil
	case store.DependentTickets:
		return r.deleteTicketsWhere(func(t store.Ticket) bool { return t.AccountID == accountID }), nil
	case store.DependentTwoFactor:
		if _, ok := r.st.twofa[accountID]; !ok {
			return 0, nil
		}
		delete(r.st.twofa, accountID)
		return 1, nil
	case store.DependentWarningsReceived:
		return r.deleteWarningsWhere(func(w store.Warning) bool { return w.AccountID == accountID }), nil
	case store.DependentWarningsIssued:
		return r.deleteWarningsWhere(func(w store.Warning) bool { return w.ModeratorID == accountID }), nil
	case store.DependentBans:
		return r.deleteBansFor(accountID), nil
	default:
		return 0, errUnknownDependent(kind)
	}
}
