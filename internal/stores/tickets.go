package stores

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/goTrust/store"
)

const ticketSecretBytes = 32

var (
	// ErrTicketNotFound covers absent, already consumed and expired tickets.
	ErrTicketNotFound = errors.New("ticket not found or expired")
)

// TicketPolicy describes one ticket purpose.
type TicketPolicy struct {
	Purpose store.TicketPurpose
	TTL     time.Duration
	// HashAtRest stores only the hex SHA-256 of the raw value and issues a
	// random URL-safe secret instead of a uuid.
	HashAtRest bool
}

// TicketStore issues and consumes single-use tickets for one purpose.
type TicketStore struct {
	policy TicketPolicy
	now    func() time.Time
}

// NewTicketStore returns a store for policy. A nil now uses time.Now.
func NewTicketStore(policy TicketPolicy, now func() time.Time) *TicketStore {
	if now == nil {
		now = time.Now
	}
	return &TicketStore{policy: policy, now: now}
}

// Policy returns the store's policy.
func (s *TicketStore) Policy() TicketPolicy { return s.policy }

// HashTicket returns the at-rest key for a raw hashed ticket.
func HashTicket(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (s *TicketStore) key(raw string) string {
	if s.policy.HashAtRest {
		return HashTicket(raw)
	}
	return raw
}

func (s *TicketStore) newRaw() (string, error) {
	if !s.policy.HashAtRest {
		return uuid.NewString(), nil
	}
	buf := make([]byte, ticketSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("ticket secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Issue persists a new ticket for accountID and returns the raw value to hand
// to the user. The raw value is never stored for hashed policies.
func (s *TicketStore) Issue(ctx context.Context, repo store.Repository, accountID string) (string, error) {
	raw, err := s.newRaw()
	if err != nil {
		return "", err
	}
	now := s.now()
	err = repo.InsertTicket(ctx, &store.Ticket{
		Purpose:   s.policy.Purpose,
		Key:       s.key(raw),
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.policy.TTL),
	})
	if err != nil {
		return "", err
	}
	return raw, nil
}

// Consume deletes the ticket identified by raw and returns it if it was still
// valid. The ticket is deleted whenever it is found, expired or not, so a
// second Consume with the same value always fails with ErrTicketNotFound.
func (s *TicketStore) Consume(ctx context.Context, repo store.Repository, raw string) (*store.Ticket, error) {
	if raw == "" {
		return nil, ErrTicketNotFound
	}
	key := s.key(raw)

	t, err := repo.FindTicket(ctx, s.policy.Purpose, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}

	deleted, err := repo.DeleteTicket(ctx, s.policy.Purpose, key)
	if err != nil {
		return nil, err
	}
	if !deleted || t.Expired(s.now()) {
		return nil, ErrTicketNotFound
	}
	return t, nil
}

// RevokeFor deletes every outstanding ticket of this purpose for accountID.
func (s *TicketStore) RevokeFor(ctx context.Context, repo store.Repository, accountID string) (int64, error) {
	return repo.DeleteTicketsFor(ctx, s.policy.Purpose, accountID)
}
