package flows

// Audit event types.
const (
	EventLoginSuccess         = "login_success"
	EventLoginFailure         = "login_failure"
	EventLoginRateLimited     = "login_rate_limited"
	EventTwoFactorRequired    = "two_factor_required"
	EventTwoFactorFailure     = "two_factor_failure"
	EventBackupCodeUsed       = "backup_code_used"
	EventTokenRevoked         = "token_revoked"
	EventRefreshRotated       = "refresh_rotated"
	EventRefreshReuse         = "refresh_reuse_detected"
	EventLogout               = "logout"
	EventAccountRegistered    = "account_registered"
	EventEmailVerified        = "email_verified"
	EventPasswordResetRequest = "password_reset_requested"
	EventPasswordReset        = "password_reset"
	EventPasswordChanged      = "password_changed"
	EventTwoFactorSetup       = "two_factor_setup_started"
	EventTwoFactorEnabled     = "two_factor_enabled"
	EventTwoFactorDisabled    = "two_factor_disabled"
	EventBackupRegenerated    = "backup_codes_regenerated"
	EventOAuthLogin           = "oauth_login"
)
