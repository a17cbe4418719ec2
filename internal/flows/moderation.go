package flows

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/goTrust/internal/stores"
	"github.com/MrEthical07/goTrust/store"
)

// BanInput describes a moderation ban. A nil Until bans permanently.
type BanInput struct {
	AccountID   string
	ModeratorID string
	Reason      string
	Until       *time.Time
}

// ModerationDeps captures ban, unban and warning dependencies.
type ModerationDeps struct {
	Store store.Store
	Bans  *stores.BanLedger

	// NotifyBan runs after the ban commits. It must not block for long; the
	// realtime registry pushes and closes synchronously with write deadlines.
	NotifyBan func(ctx context.Context, accountID, reason string)

	Hooks
	Metrics Metrics
	Events  Events
	Errors  Errors
}

func (d ModerationDeps) ready() bool {
	return d.Store != nil && d.Bans != nil
}

// authorizeModerator confirms moderatorID names an account allowed to
// moderate. An empty moderatorID is a system action and always allowed.
func authorizeModerator(ctx context.Context, repo store.Repository, moderatorID string, errs Errors) error {
	if moderatorID == "" {
		return nil
	}
	mod, err := repo.FindAccountByID(ctx, moderatorID)
	if errors.Is(err, store.ErrNotFound) {
		return errs.Forbidden
	}
	if err != nil {
		return err
	}
	if !mod.Role.CanModerate() {
		return errs.Forbidden
	}
	return nil
}

// RunBan records a ban and deletes every session of the account in one
// transaction, then notifies connected clients. Notification failures never
// undo the ban.
func RunBan(ctx context.Context, in BanInput, deps ModerationDeps) (*store.Ban, error) {
	deps.Hooks = deps.Hooks.filled()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}
	if in.AccountID == "" {
		return nil, deps.Errors.InvalidInput
	}
	if in.Until != nil && !in.Until.After(deps.Now()) {
		return nil, deps.Errors.InvalidInput
	}

	var (
		ban     *store.Ban
		revoked int64
	)
	err := deps.Store.WithTx(ctx, func(ctx context.Context, tx store.Repository) error {
		if err := authorizeModerator(ctx, tx, in.ModeratorID, deps.Errors); err != nil {
			return err
		}
		var err error
		ban, revoked, err = deps.Bans.Ban(ctx, tx, stores.BanRequest{
			AccountID:   in.AccountID,
			ModeratorID: in.ModeratorID,
			Reason:      in.Reason,
			Until:       in.Until,
		})
		switch {
		case errors.Is(err, stores.ErrAccountNotFound):
			return deps.Errors.UserNotFound
		case errors.Is(err, stores.ErrAlreadyBanned):
			return deps.Errors.AlreadyBanned
		}
		return err
	})
	if err != nil {
		err = deps.Errors.backend(err)
		deps.EmitAudit(ctx, deps.Events.BanApplied, false, in.AccountID, err, nil)
		return nil, err
	}

	deps.MetricInc(deps.Metrics.BanApplied)
	if revoked > 0 {
		deps.MetricAdd(deps.Metrics.SessionsRevokedByBan, uint64(revoked))
	}
	deps.EmitAudit(ctx, deps.Events.BanApplied, true, in.AccountID, nil, func() map[string]string {
		meta := map[string]string{
			"ban_id":           ban.ID,
			"moderator_id":     in.ModeratorID,
			"sessions_revoked": strconv.FormatInt(revoked, 10),
		}
		if ban.Until != nil {
			meta["until"] = ban.Until.UTC().Format(time.RFC3339)
		}
		return meta
	})

	if deps.NotifyBan != nil {
		deps.NotifyBan(ctx, in.AccountID, ban.Reason)
	}
	return ban, nil
}

// RunRevokeBan lifts the most recent unrevoked ban of accountID. Sessions
// deleted by the ban stay deleted.
func RunRevokeBan(ctx context.Context, accountID, moderatorID string, deps ModerationDeps) (*store.Ban, error) {
	deps.Hooks = deps.Hooks.filled()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	var ban *store.Ban
	err := deps.Store.WithTx(ctx, func(ctx context.Context, tx store.Repository) error {
		if err := authorizeModerator(ctx, tx, moderatorID, deps.Errors); err != nil {
			return err
		}
		if _, err := loadAccount(ctx, tx, accountID, deps.Errors); err != nil {
			return err
		}
		var err error
		ban, err = deps.Bans.RevokeLatest(ctx, tx, accountID)
		if errors.Is(err, stores.ErrNoActiveBan) {
			return deps.Errors.NoActiveBan
		}
		return err
	})
	if err != nil {
		err = deps.Errors.backend(err)
		deps.EmitAudit(ctx, deps.Events.BanRevoked, false, accountID, err, nil)
		return nil, err
	}

	deps.MetricInc(deps.Metrics.BanRevoked)
	deps.EmitAudit(ctx, deps.Events.BanRevoked, true, accountID, nil, func() map[string]string {
		return map[string]string{"ban_id": ban.ID, "moderator_id": moderatorID}
	})
	return ban, nil
}

// RunActiveBan returns the ban enforced on accountID, or nil.
func RunActiveBan(ctx context.Context, accountID string, deps ModerationDeps) (*store.Ban, error) {
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}
	ban, err := deps.Bans.Active(ctx, deps.Store, accountID)
	if err != nil {
		return nil, deps.Errors.backend(err)
	}
	return ban, nil
}

// RunWarn records a moderation warning.
func RunWarn(ctx context.Context, accountID, moderatorID, reason string, deps ModerationDeps) (*store.Warning, error) {
	deps.Hooks = deps.Hooks.filled()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}
	if accountID == "" {
		return nil, deps.Errors.InvalidInput
	}

	if err := authorizeModerator(ctx, deps.Store, moderatorID, deps.Errors); err != nil {
		return nil, deps.Errors.backend(err)
	}
	w, err := deps.Bans.Warn(ctx, deps.Store, accountID, moderatorID, reason)
	if errors.Is(err, stores.ErrAccountNotFound) {
		return nil, deps.Errors.UserNotFound
	}
	if err != nil {
		return nil, deps.Errors.backend(err)
	}

	deps.MetricInc(deps.Metrics.WarningIssued)
	deps.EmitAudit(ctx, deps.Events.WarningIssued, true, accountID, nil, func() map[string]string {
		return map[string]string{"warning_id": w.ID, "moderator_id": moderatorID}
	})
	return w, nil
}
