package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by single-row lookups that match nothing.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when a unique constraint (account email) is violated.
	ErrDuplicate = errors.New("store: duplicate")
)

// Repository is the set of persistence operations the engine needs. All
// methods honour ctx cancellation.
type Repository interface {
	CreateAccount(ctx context.Context, account *Account) error
	FindAccountByID(ctx context.Context, id string) (*Account, error)
	// FindAccountByIdentifier matches username or email (email case-insensitively).
	FindAccountByIdentifier(ctx context.Context, identifier string) (*Account, error)
	FindAccountByEmail(ctx context.Context, email string) (*Account, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	// LockAccount serialises writers on the account row for the rest of the
	// transaction. It returns ErrNotFound for unknown accounts.
	LockAccount(ctx context.Context, id string) error
	DeleteAccount(ctx context.Context, id string) (bool, error)

	GetTwoFactor(ctx context.Context, accountID string) (*TwoFactorSecret, error)
	UpsertTwoFactor(ctx context.Context, secret *TwoFactorSecret) error
	MarkTwoFactorVerified(ctx context.Context, accountID string, at time.Time) error
	DeleteTwoFactor(ctx context.Context, accountID string) (bool, error)

	InsertSession(ctx context.Context, session *Session) error
	ListSessions(ctx context.Context, accountID string) ([]Session, error)
	// DeleteSession reports whether a row was removed. A false result inside
	// a rotation means another writer got there first.
	DeleteSession(ctx context.Context, id string) (bool, error)
	DeleteSessionsFor(ctx context.Context, accountID string) (int64, error)

	InsertTicket(ctx context.Context, ticket *Ticket) error
	FindTicket(ctx context.Context, purpose TicketPurpose, key string) (*Ticket, error)
	DeleteTicket(ctx context.Context, purpose TicketPurpose, key string) (bool, error)
	DeleteTicketsFor(ctx context.Context, purpose TicketPurpose, accountID string) (int64, error)
	DeleteExpiredTickets(ctx context.Context, now time.Time) (int64, error)

	InsertBan(ctx context.Context, ban *Ban) error
	// ActiveBan returns the most recent ban enforced at now, or ErrNotFound.
	ActiveBan(ctx context.Context, accountID string, now time.Time) (*Ban, error)
	// LatestUnrevokedBan returns the most recent ban without revoked_at, or ErrNotFound.
	LatestUnrevokedBan(ctx context.Context, accountID string) (*Ban, error)
	RevokeBan(ctx context.Context, banID string, at time.Time) (bool, error)
	// PermanentBansBefore lists accounts holding a non-revoked permanent ban
	// created at or before cutoff.
	PermanentBansBefore(ctx context.Context, cutoff time.Time) ([]string, error)

	InsertWarning(ctx context.Context, warning *Warning) error

	// PurgeDependents deletes every row of kind owned by accountID.
	PurgeDependents(ctx context.Context, kind Dependent, accountID string) (int64, error)
}

// Store is a Repository that can open transactions.
type Store interface {
	Repository
	// WithTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise, including on panic.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error
	Ping(ctx context.Context) error
	Close() error
}
