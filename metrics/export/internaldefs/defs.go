package internaldefs

import (
	goTrust "github.com/MrEthical07/goTrust"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   goTrust.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   goTrust.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter fed by Engine.AuditDropped.
const (
	AuditDroppedName = "gotrust_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."
)

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: goTrust.MetricRegister, Name: "gotrust_register_total", Help: "Accounts registered."},
	{ID: goTrust.MetricLoginSuccess, Name: "gotrust_login_success_total", Help: "Logins that issued tokens."},
	{ID: goTrust.MetricLoginFailure, Name: "gotrust_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: goTrust.MetricLoginRateLimited, Name: "gotrust_login_rate_limited_total", Help: "Logins rejected by throttling."},
	{ID: goTrust.MetricLoginBanned, Name: "gotrust_login_banned_total", Help: "Logins rejected because the account is banned."},
	{ID: goTrust.MetricTwoFARequired, Name: "gotrust_twofa_required_total", Help: "Logins that returned a second-factor challenge."},
	{ID: goTrust.MetricTwoFALoginSuccess, Name: "gotrust_twofa_login_success_total", Help: "Second-factor login steps that issued tokens."},
	{ID: goTrust.MetricTwoFALoginFailure, Name: "gotrust_twofa_login_failure_total", Help: "Second-factor login steps rejected."},
	{ID: goTrust.MetricSessionCreated, Name: "gotrust_session_created_total", Help: "Refresh sessions created."},
	{ID: goTrust.MetricRefreshSuccess, Name: "gotrust_refresh_success_total", Help: "Refresh rotations."},
	{ID: goTrust.MetricRefreshFailure, Name: "gotrust_refresh_failure_total", Help: "Refresh attempts rejected."},
	{ID: goTrust.MetricRefreshExpired, Name: "gotrust_refresh_expired_total", Help: "Refresh attempts with an expired token."},
	{ID: goTrust.MetricRefreshRevoked, Name: "gotrust_refresh_revoked_total", Help: "Refresh attempts whose session no longer exists."},
	{ID: goTrust.MetricLogout, Name: "gotrust_logout_total", Help: "Sessions removed by logout."},
	{ID: goTrust.MetricValidateSuccess, Name: "gotrust_validate_success_total", Help: "Access tokens accepted."},
	{ID: goTrust.MetricValidateFailure, Name: "gotrust_validate_failure_total", Help: "Access tokens rejected."},
	{ID: goTrust.MetricTwoFAEnabled, Name: "gotrust_twofa_enabled_total", Help: "Second-factor secrets generated."},
	{ID: goTrust.MetricTwoFAVerified, Name: "gotrust_twofa_verified_total", Help: "Second-factor secrets verified."},
	{ID: goTrust.MetricTwoFADisabled, Name: "gotrust_twofa_disabled_total", Help: "Second factors removed."},
	{ID: goTrust.MetricTwoFADisableRequested, Name: "gotrust_twofa_disable_requested_total", Help: "Emailed second-factor removal requests."},
	{ID: goTrust.MetricPasswordResetRequest, Name: "gotrust_password_reset_request_total", Help: "Password reset requests."},
	{ID: goTrust.MetricPasswordResetConfirmSuccess, Name: "gotrust_password_reset_confirm_success_total", Help: "Password resets completed."},
	{ID: goTrust.MetricPasswordResetConfirmFailure, Name: "gotrust_password_reset_confirm_failure_total", Help: "Password reset confirmations rejected."},
	{ID: goTrust.MetricBanApplied, Name: "gotrust_ban_applied_total", Help: "Bans applied."},
	{ID: goTrust.MetricBanRevoked, Name: "gotrust_ban_revoked_total", Help: "Bans revoked."},
	{ID: goTrust.MetricSessionsRevokedByBan, Name: "gotrust_sessions_revoked_by_ban_total", Help: "Sessions deleted by bans."},
	{ID: goTrust.MetricWarningIssued, Name: "gotrust_warning_issued_total", Help: "Moderation warnings issued."},
	{ID: goTrust.MetricForceLogoutPushed, Name: "gotrust_force_logout_pushed_total", Help: "Push connections closed by forced logout."},
	{ID: goTrust.MetricAccountsPurged, Name: "gotrust_accounts_purged_total", Help: "Accounts removed by the retention sweeper."},
	{ID: goTrust.MetricTicketsPurged, Name: "gotrust_tickets_purged_total", Help: "Expired tickets removed by the retention sweeper."},
}

// HistogramDefs lists every histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: goTrust.MetricValidateLatency, Name: "gotrust_validate_latency_seconds", Help: "ValidateAccess latency."},
}

// HistogramBounds are the upper bounds of the latency buckets, in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are HistogramBounds made safe for instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
