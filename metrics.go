package authcore

import "github.com/MrEthical07/authcore/internal/metrics"

type (
	MetricID        = metrics.MetricID
	MetricsSnapshot = metrics.Snapshot
)

const (
	MetricLoginSuccess             = metrics.MetricLoginSuccess
	MetricLoginFailure             = metrics.MetricLoginFailure
	MetricLoginRateLimited         = metrics.MetricLoginRateLimited
	MetricTwoFactorRequired        = metrics.MetricTwoFactorRequired
	MetricTwoFactorFailure         = metrics.MetricTwoFactorFailure
	MetricBackupCodeUsed           = metrics.MetricBackupCodeUsed
	MetricTokenIssued              = metrics.MetricTokenIssued
	MetricTokenRevoked             = metrics.MetricTokenRevoked
	MetricRefreshSuccess           = metrics.MetricRefreshSuccess
	MetricRefreshFailure           = metrics.MetricRefreshFailure
	MetricRefreshReuseDetected     = metrics.MetricRefreshReuseDetected
	MetricRefreshRateLimited       = metrics.MetricRefreshRateLimited
	MetricLogout                   = metrics.MetricLogout
	MetricAccessRejected           = metrics.MetricAccessRejected
	MetricAccessRevokedRejected    = metrics.MetricAccessRevokedRejected
	MetricRateLimitHit             = metrics.MetricRateLimitHit
	MetricRateLimitFailOpen        = metrics.MetricRateLimitFailOpen
	MetricRegisterSuccess          = metrics.MetricRegisterSuccess
	MetricRegisterDuplicate        = metrics.MetricRegisterDuplicate
	MetricEmailVerificationSent    = metrics.MetricEmailVerificationSent
	MetricEmailVerificationSuccess = metrics.MetricEmailVerificationSuccess
	MetricEmailVerificationFailure = metrics.MetricEmailVerificationFailure
	MetricPasswordResetRequest     = metrics.MetricPasswordResetRequest
	MetricPasswordResetSuccess     = metrics.MetricPasswordResetSuccess
	MetricPasswordResetFailure     = metrics.MetricPasswordResetFailure
	MetricPasswordChangeSuccess    = metrics.MetricPasswordChangeSuccess
	MetricPasswordChangeFailure    = metrics.MetricPasswordChangeFailure
	MetricPasswordRehash           = metrics.MetricPasswordRehash
	MetricTwoFactorEnabled         = metrics.MetricTwoFactorEnabled
	MetricTwoFactorDisabled        = metrics.MetricTwoFactorDisabled
	MetricBackupCodeRegenerated    = metrics.MetricBackupCodeRegenerated
	MetricOAuthSuccess             = metrics.MetricOAuthSuccess
	MetricOAuthFailure             = metrics.MetricOAuthFailure
	MetricInternalError            = metrics.MetricInternalError
	MetricVerifyAccessLatency      = metrics.MetricVerifyAccessLatency
)
