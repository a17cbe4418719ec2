package goTrust

import (
	"context"
	"io"

	internalaudit "github.com/MrEthical07/goTrust/internal/audit"
	"github.com/MrEthical07/goTrust/internal/flows"
	internalmetrics "github.com/MrEthical07/goTrust/internal/metrics"
	"github.com/MrEthical07/goTrust/store"
)

// Role is the account's privilege tag.
type Role = store.Role

const (
	RoleUser      = store.RoleUser
	RoleModerator = store.RoleModerator
	RoleAdmin     = store.RoleAdmin
)

// Ban and Warning are the moderation records returned by the engine.
type (
	Ban     = store.Ban
	Warning = store.Warning
)

// LoginResult is returned by Register, the login steps and Refresh. Either
// the token pair is set, or RequiresTwoFA is true and Ticket holds the
// five-minute login challenge for [Engine.LoginStep2Totp].
type LoginResult = flows.LoginResult

// AuthResult describes a validated access token.
type AuthResult = flows.AccessResult

// TOTPSetup carries a fresh base32 secret and its otpauth:// URI.
type TOTPSetup = flows.TOTPSetup

// MailResult reports an out-of-band request. Token is the raw ticket that
// was mailed; transports must not echo it outside local development.
type MailResult = flows.MailResult

// Notifier delivers forced logouts to live push connections.
// realtime.Registry implements it.
type Notifier interface {
	// Kick pushes a force_logout message to every connection of accountID,
	// closes them and returns how many were closed.
	Kick(ctx context.Context, accountID, reason string) int
}

// Mailer delivers the raw single-use tokens of the out-of-band flows.
// mailer.Service implements it.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, rawToken string) error
	SendTwoFADisable(ctx context.Context, to, rawToken string) error
}

// AuditEvent is one security-relevant outcome.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the async dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink drops audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink writes audit events into a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a JSONWriterSink writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies a counter or histogram.
type MetricID = internalmetrics.MetricID

// MetricsSnapshot is a point-in-time copy of every metric.
type MetricsSnapshot = internalmetrics.Snapshot

const (
	MetricRegister                    = MetricID(internalmetrics.MetricRegister)
	MetricLoginSuccess                = MetricID(internalmetrics.MetricLoginSuccess)
	MetricLoginFailure                = MetricID(internalmetrics.MetricLoginFailure)
	MetricLoginRateLimited            = MetricID(internalmetrics.MetricLoginRateLimited)
	MetricLoginBanned                 = MetricID(internalmetrics.MetricLoginBanned)
	MetricTwoFARequired               = MetricID(internalmetrics.MetricTwoFARequired)
	MetricTwoFALoginSuccess           = MetricID(internalmetrics.MetricTwoFALoginSuccess)
	MetricTwoFALoginFailure           = MetricID(internalmetrics.MetricTwoFALoginFailure)
	MetricSessionCreated              = MetricID(internalmetrics.MetricSessionCreated)
	MetricRefreshSuccess              = MetricID(internalmetrics.MetricRefreshSuccess)
	MetricRefreshFailure              = MetricID(internalmetrics.MetricRefreshFailure)
	MetricRefreshExpired              = MetricID(internalmetrics.MetricRefreshExpired)
	MetricRefreshRevoked              = MetricID(internalmetrics.MetricRefreshRevoked)
	MetricLogout                      = MetricID(internalmetrics.MetricLogout)
	MetricValidateSuccess             = MetricID(internalmetrics.MetricValidateSuccess)
	MetricValidateFailure             = MetricID(internalmetrics.MetricValidateFailure)
	MetricTwoFAEnabled                = MetricID(internalmetrics.MetricTwoFAEnabled)
	MetricTwoFAVerified               = MetricID(internalmetrics.MetricTwoFAVerified)
	MetricTwoFADisabled               = MetricID(internalmetrics.MetricTwoFADisabled)
	MetricTwoFADisableRequested       = MetricID(internalmetrics.MetricTwoFADisableRequested)
	MetricPasswordResetRequest        = MetricID(internalmetrics.MetricPasswordResetRequest)
	MetricPasswordResetConfirmSuccess = MetricID(internalmetrics.MetricPasswordResetConfirmSuccess)
	MetricPasswordResetConfirmFailure = MetricID(internalmetrics.MetricPasswordResetConfirmFailure)
	MetricBanApplied                  = MetricID(internalmetrics.MetricBanApplied)
	MetricBanRevoked                  = MetricID(internalmetrics.MetricBanRevoked)
	MetricSessionsRevokedByBan        = MetricID(internalmetrics.MetricSessionsRevokedByBan)
	MetricWarningIssued               = MetricID(internalmetrics.MetricWarningIssued)
	MetricForceLogoutPushed           = MetricID(internalmetrics.MetricForceLogoutPushed)
	MetricAccountsPurged              = MetricID(internalmetrics.MetricAccountsPurged)
	MetricTicketsPurged               = MetricID(internalmetrics.MetricTicketsPurged)
	MetricValidateLatency             = MetricID(internalmetrics.MetricValidateLatency)
)
