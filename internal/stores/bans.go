package stores

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/goTrust/store"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAlreadyBanned   = errors.New("account already banned")
	ErrNoActiveBan     = errors.New("no active ban")
)

// BanRequest describes a ban to apply. A nil Until bans permanently.
type BanRequest struct {
	AccountID   string
	ModeratorID string
	Reason      string
	Until       *time.Time
}

// BanLedger reads and appends to the ban history.
type BanLedger struct {
	now func() time.Time
}

func NewBanLedger(now func() time.Time) *BanLedger {
	if now == nil {
		now = time.Now
	}
	return &BanLedger{now: now}
}

// Active returns the ban currently enforced for accountID, or nil.
func (l *BanLedger) Active(ctx context.Context, repo store.Repository, accountID string) (*store.Ban, error) {
	b, err := repo.ActiveBan(ctx, accountID, l.now())
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Ban locks the account, refuses if a ban is already active, appends the ban
// and deletes every session of the account. tx must be transactional so the
// insert and the revocation commit together. It returns the ban and the
// number of sessions revoked.
func (l *BanLedger) Ban(ctx context.Context, tx store.Repository, req BanRequest) (*store.Ban, int64, error) {
	if err := tx.LockAccount(ctx, req.AccountID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, 0, ErrAccountNotFound
		}
		return nil, 0, err
	}

	active, err := l.Active(ctx, tx, req.AccountID)
	if err != nil {
		return nil, 0, err
	}
	if active != nil {
		return nil, 0, ErrAlreadyBanned
	}

	b := &store.Ban{
		ID:          uuid.NewString(),
		AccountID:   req.AccountID,
		ModeratorID: req.ModeratorID,
		Reason:      strings.TrimSpace(req.Reason),
		Until:       req.Until,
		CreatedAt:   l.now(),
	}
	if err := tx.InsertBan(ctx, b); err != nil {
		return nil, 0, err
	}

	revoked, err := tx.DeleteSessionsFor(ctx, req.AccountID)
	if err != nil {
		return nil, 0, err
	}
	return b, revoked, nil
}

// Revoke marks banID revoked. Sessions are not restored.
func (l *BanLedger) Revoke(ctx context.Context, repo store.Repository, banID string) error {
	ok, err := repo.RevokeBan(ctx, banID, l.now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoActiveBan
	}
	return nil
}

// RevokeLatest revokes the most recent non-revoked ban of accountID.
func (l *BanLedger) RevokeLatest(ctx context.Context, repo store.Repository, accountID string) (*store.Ban, error) {
	b, err := repo.LatestUnrevokedBan(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoActiveBan
	}
	if err != nil {
		return nil, err
	}
	if err := l.Revoke(ctx, repo, b.ID); err != nil {
		return nil, err
	}
	at := l.now()
	b.RevokedAt = &at
	return b, nil
}

// Warn appends a moderation warning.
func (l *BanLedger) Warn(ctx context.Context, repo store.Repository, accountID, moderatorID, reason string) (*store.Warning, error) {
	if _, err := repo.FindAccountByID(ctx, accountID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	w := &store.Warning{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		ModeratorID: moderatorID,
		Reason:      strings.TrimSpace(reason),
		CreatedAt:   l.now(),
	}
	if err := repo.InsertWarning(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}
