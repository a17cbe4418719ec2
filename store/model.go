package store

import "time"

// Role is the coarse authorization tag carried by an account.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// CanModerate reports whether r may ban, unban and warn other accounts.
func (r Role) CanModerate() bool {
	return r == RoleModerator || r == RoleAdmin
}

type Account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// TwoFactorSecret holds the vault-encrypted TOTP seed. A nil VerifiedAt means
// setup was started but never confirmed, and login is not gated.
type TwoFactorSecret struct {
	AccountID  string
	SecretEnc  string
	CreatedAt  time.Time
	VerifiedAt *time.Time
}

// Verified reports whether the secret gates login.
func (s *TwoFactorSecret) Verified() bool {
	return s != nil && s.VerifiedAt != nil
}

// Session is one outstanding refresh-token grant. TokenEnc is the
// vault-encrypted refresh token; ciphertexts are non-deterministic so lookups
// decrypt and compare.
type Session struct {
	ID        string
	AccountID string
	TokenEnc  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// TicketPurpose partitions the single-use ticket table.
type TicketPurpose string

const (
	PurposeLoginChallenge TicketPurpose = "login_challenge"
	PurposePasswordReset  TicketPurpose = "password_reset"
	PurposeTwoFADisable   TicketPurpose = "twofa_disable"
)

// Ticket is a single-use, time-limited grant. Key is either the raw ticket
// value or the hex SHA-256 of it, depending on the purpose's policy.
type Ticket struct {
	Purpose   TicketPurpose
	Key       string
	AccountID string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the ticket is unusable at now.
func (t *Ticket) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Ban is one entry of the append-only ban history. A nil Until is permanent.
type Ban struct {
	ID          string
	AccountID   string
	ModeratorID string
	Reason      string
	Until       *time.Time
	CreatedAt   time.Time
	RevokedAt   *time.Time
}

// ActiveAt reports whether the ban is enforced at now.
func (b *Ban) ActiveAt(now time.Time) bool {
	if b == nil || b.RevokedAt != nil {
		return false
	}
	return b.Until == nil || b.Until.After(now)
}

// Permanent reports whether the ban has no expiry.
func (b *Ban) Permanent() bool {
	return b != nil && b.Until == nil
}

type Warning struct {
	ID          string
	AccountID   string
	ModeratorID string
	Reason      string
	CreatedAt   time.Time
}

// Dependent names one class of rows owned by an account. The retention
// sweeper deletes them one class at a time in an explicit order.
type Dependent string

const (
	DependentSessions         Dependent = "sessions"
	DependentTickets          Dependent = "tickets"
	DependentTwoFactor        Dependent = "two_factor"
	DependentWarningsReceived Dependent = "warnings_received"
	DependentWarningsIssued   Dependent = "warnings_issued"
	DependentBans             Dependent = "bans"
)
