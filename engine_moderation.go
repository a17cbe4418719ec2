package goTrust

import (
	"context"
	"time"

	"github.com/MrEthical07/goTrust/internal/flows"
)

// Ban records a ban on accountID and deletes all of its sessions in the same
// transaction. Once committed, connected clients are kicked through the
// Notifier; delivery failures never undo the ban.
//
// A nil until bans permanently. moderatorID must name a moderator or admin;
// an empty moderatorID is treated as a system action.
func (e *Engine) Ban(ctx context.Context, accountID, moderatorID, reason string, until *time.Time) (*Ban, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()
	return e.flow.Ban(ctx, flows.BanInput{
		AccountID:   accountID,
		ModeratorID: moderatorID,
		Reason:      reason,
		Until:       until,
	})
}

// RevokeBan lifts the most recent unrevoked ban. Deleted sessions are not
// restored.
func (e *Engine) RevokeBan(ctx context.Context, accountID, moderatorID string) (*Ban, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()
	return e.flow.RevokeBan(ctx, accountID, moderatorID)
}

// ActiveBan returns the ban currently enforced on accountID, or nil.
func (e *Engine) ActiveBan(ctx context.Context, accountID string) (*Ban, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()
	return e.flow.ActiveBan(ctx, accountID)
}

// Warn records a moderation warning.
func (e *Engine) Warn(ctx context.Context, accountID, moderatorID, reason string) (*Warning, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()
	return e.flow.Warn(ctx, accountID, moderatorID, reason)
}
