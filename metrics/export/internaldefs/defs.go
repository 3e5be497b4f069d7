package internaldefs

import (
	"strconv"
	"strings"

	"github.com/MrEthical07/authcore/internal/metrics"
)

// CounterDef binds a metric id to its exported name.
type CounterDef struct {
	ID   metrics.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   metrics.MetricID
	Name string
	Help string
}

// AuditDroppedName is exported alongside the engine counters.
const AuditDroppedName = "authcore_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: metrics.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful logins."},
	{ID: metrics.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed logins."},
	{ID: metrics.MetricLoginRateLimited, Name: "authcore_login_rate_limited_total", Help: "Logins rejected by the rate limiter."},
	{ID: metrics.MetricTwoFactorRequired, Name: "authcore_two_factor_required_total", Help: "Logins that stopped for a second factor."},
	{ID: metrics.MetricTwoFactorFailure, Name: "authcore_two_factor_failure_total", Help: "Rejected two-factor codes."},
	{ID: metrics.MetricBackupCodeUsed, Name: "authcore_backup_code_used_total", Help: "Backup codes consumed."},
	{ID: metrics.MetricTokenIssued, Name: "authcore_token_issued_total", Help: "Token pairs issued."},
	{ID: metrics.MetricTokenRevoked, Name: "authcore_token_revoked_total", Help: "Tokens revoked."},
	{ID: metrics.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refreshes."},
	{ID: metrics.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Failed refreshes."},
	{ID: metrics.MetricRefreshReuseDetected, Name: "authcore_refresh_reuse_detected_total", Help: "Refresh tokens presented after use."},
	{ID: metrics.MetricRefreshRateLimited, Name: "authcore_refresh_rate_limited_total", Help: "Refreshes rejected by the rate limiter."},
	{ID: metrics.MetricLogout, Name: "authcore_logout_total", Help: "Logouts."},
	{ID: metrics.MetricAccessRejected, Name: "authcore_access_rejected_total", Help: "Access tokens rejected."},
	{ID: metrics.MetricAccessRevokedRejected, Name: "authcore_access_revoked_rejected_total", Help: "Access tokens rejected as revoked."},
	{ID: metrics.MetricRateLimitHit, Name: "authcore_rate_limit_hit_total", Help: "Requests denied by any rate policy."},
	{ID: metrics.MetricRateLimitFailOpen, Name: "authcore_rate_limit_fail_open_total", Help: "Rate checks allowed because the store was unreachable."},
	{ID: metrics.MetricRegisterSuccess, Name: "authcore_register_success_total", Help: "Accounts registered."},
	{ID: metrics.MetricRegisterDuplicate, Name: "authcore_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: metrics.MetricEmailVerificationSent, Name: "authcore_email_verification_sent_total", Help: "Verification codes sent."},
	{ID: metrics.MetricEmailVerificationSuccess, Name: "authcore_email_verification_success_total", Help: "Successful email verifications."},
	{ID: metrics.MetricEmailVerificationFailure, Name: "authcore_email_verification_failure_total", Help: "Failed email verifications."},
	{ID: metrics.MetricPasswordResetRequest, Name: "authcore_password_reset_request_total", Help: "Password reset requests."},
	{ID: metrics.MetricPasswordResetSuccess, Name: "authcore_password_reset_success_total", Help: "Completed password resets."},
	{ID: metrics.MetricPasswordResetFailure, Name: "authcore_password_reset_failure_total", Help: "Rejected password resets."},
	{ID: metrics.MetricPasswordChangeSuccess, Name: "authcore_password_change_success_total", Help: "Password changes."},
	{ID: metrics.MetricPasswordChangeFailure, Name: "authcore_password_change_failure_total", Help: "Rejected password changes."},
	{ID: metrics.MetricPasswordRehash, Name: "authcore_password_rehash_total", Help: "Hashes upgraded on login."},
	{ID: metrics.MetricTwoFactorEnabled, Name: "authcore_two_factor_enabled_total", Help: "Two-factor activations."},
	{ID: metrics.MetricTwoFactorDisabled, Name: "authcore_two_factor_disabled_total", Help: "Two-factor deactivations."},
	{ID: metrics.MetricBackupCodeRegenerated, Name: "authcore_backup_code_regenerated_total", Help: "Backup code regenerations."},
	{ID: metrics.MetricOAuthSuccess, Name: "authcore_oauth_success_total", Help: "Successful third-party sign-ins."},
	{ID: metrics.MetricOAuthFailure, Name: "authcore_oauth_failure_total", Help: "Failed third-party sign-ins."},
	{ID: metrics.MetricInternalError, Name: "authcore_internal_error_total", Help: "Operations that failed with an internal error."},
}

var HistogramDefs = []HistogramDef{
	{ID: metrics.MetricVerifyAccessLatency, Name: "authcore_verify_access_latency_seconds", Help: "Access token verification latency."},
}

// UpperBounds are the finite bucket bounds in seconds.
var UpperBounds = upperBounds()

// BoundSuffix names each bucket, finite bounds first, for exporters that
// cannot carry an le label.
var BoundSuffix = boundSuffixes()

func upperBounds() []float64 {
	out := make([]float64, len(metrics.BucketBounds))
	for i, b := range metrics.BucketBounds {
		out[i] = b.Seconds()
	}
	return out
}

func boundSuffixes() []string {
	out := make([]string, 0, len(metrics.BucketBounds)+1)
	for _, b := range metrics.BucketBounds {
		s := strconv.FormatFloat(b.Seconds(), 'f', -1, 64)
		out = append(out, strings.ReplaceAll(s, ".", "_"))
	}
	return append(out, "inf")
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
