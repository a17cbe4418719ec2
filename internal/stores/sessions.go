package stores

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/goTrust/store"
)

// ErrSessionNotFound means no live session holds the presented refresh token.
var ErrSessionNotFound = errors.New("session not found")

// Sealer encrypts refresh tokens at rest. vault.Vault satisfies it.
type Sealer interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(value string) (string, error)
}

// SessionRegistry persists refresh-token sessions. Tokens are stored only in
// encrypted form and located by decrypting each of the account's sessions.
type SessionRegistry struct {
	sealer Sealer
	ttl    time.Duration
	now    func() time.Time
	warn   func(string, ...any)
}

// NewSessionRegistry returns a registry whose sessions expire ttl after creation.
func NewSessionRegistry(sealer Sealer, ttl time.Duration, now func() time.Time, warn func(string, ...any)) *SessionRegistry {
	if now == nil {
		now = time.Now
	}
	if warn == nil {
		warn = func(string, ...any) {}
	}
	return &SessionRegistry{sealer: sealer, ttl: ttl, now: now, warn: warn}
}

// Create stores refreshToken as a new session for accountID.
func (r *SessionRegistry) Create(ctx context.Context, repo store.Repository, accountID, refreshToken string) (*store.Session, error) {
	enc, err := r.sealer.Encrypt(refreshToken)
	if err != nil {
		return nil, err
	}
	now := r.now()
	s := &store.Session{
		ID:        uuid.NewString(),
		AccountID: accountID,
		TokenEnc:  enc,
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}
	if err := repo.InsertSession(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Find returns the session of accountID holding refreshToken. A row that
// fails to decrypt is reported through the warn hook and the search goes on;
// if nothing matched, the decrypt error is returned instead of
// ErrSessionNotFound because the token may have been in that row.
func (r *SessionRegistry) Find(ctx context.Context, repo store.Repository, accountID, refreshToken string) (*store.Session, error) {
	sessions, err := repo.ListSessions(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var decryptErr error
	want := []byte(refreshToken)
	for i := range sessions {
		plain, err := r.sealer.Decrypt(sessions[i].TokenEnc)
		if err != nil {
			r.warn("goTrust: undecryptable session", "session_id", sessions[i].ID, "error", err)
			if decryptErr == nil {
				decryptErr = fmt.Errorf("stores: session %s: %w", sessions[i].ID, err)
			}
			continue
		}
		if subtle.ConstantTimeCompare([]byte(plain), want) == 1 {
			return &sessions[i], nil
		}
	}
	if decryptErr != nil {
		return nil, decryptErr
	}
	return nil, ErrSessionNotFound
}

// Rotate deletes old and stores nextToken as its replacement. If old was
// already gone (a concurrent rotation, logout or ban) it returns
// ErrSessionNotFound and stores nothing. Run it inside a transaction.
func (r *SessionRegistry) Rotate(ctx context.Context, repo store.Repository, old *store.Session, nextToken string) (*store.Session, error) {
	deleted, err := repo.DeleteSession(ctx, old.ID)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, ErrSessionNotFound
	}
	return r.Create(ctx, repo, old.AccountID, nextToken)
}

// Revoke deletes the session holding refreshToken, reporting whether one existed.
func (r *SessionRegistry) Revoke(ctx context.Context, repo store.Repository, accountID, refreshToken string) (bool, error) {
	s, err := r.Find(ctx, repo, accountID, refreshToken)
	if errors.Is(err, ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return repo.DeleteSession(ctx, s.ID)
}

// RevokeAll deletes every session of accountID.
func (r *SessionRegistry) RevokeAll(ctx context.Context, repo store.Repository, accountID string) (int64, error) {
	return repo.DeleteSessionsFor(ctx, accountID)
}
