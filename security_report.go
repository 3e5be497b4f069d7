package authcore

import (
	"github.com/MrEthical07/authcore/internal/security"
	"github.com/MrEthical07/authcore/password"
)

type (
	SecurityReport       = security.Report
	PasswordConfigReport = security.PasswordReport
)

// SecurityReport summarises the effective configuration and lists settings
// that weaken it.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	cfg := e.config
	def := password.DefaultConfig()

	return security.BuildReport(security.ReportInput{
		AccessTTL:           cfg.JWT.AccessTTL,
		RefreshTTL:          cfg.JWT.RefreshTTL,
		RevocationTTL:       cfg.Tokens.RevocationTTL,
		RevocationCacheSize: cfg.Tokens.RevocationCacheSize,
		Password:            passwordReport(cfg.Password),
		MinimumPassword:     passwordReport(def),
		BackupCodeCount:     cfg.TOTP.BackupCodeCount,
		BackupCodeLogin:     cfg.TOTP.AllowBackupCodeLogin,
		RehashOnLogin:       cfg.Account.RehashOnLogin,
		OAuthProviders:      e.providers,
		LoginAttempts:       cfg.RateLimit.Login.Max,
		LoginWindow:         cfg.RateLimit.Login.Window,
		TwoFactorAttempts:   cfg.RateLimit.TwoFactor.Max,
		TwoFactorWindow:     cfg.RateLimit.TwoFactor.Window,
		AuditEnabled:        cfg.Audit.Enabled,
		AuditDropIfFull:     cfg.Audit.DropIfFull,
	})
}

func passwordReport(c password.Config) PasswordConfigReport {
	return PasswordConfigReport{
		Memory:      c.Memory,
		Time:        c.Time,
		Parallelism: c.Parallelism,
		SaltLength:  c.SaltLength,
		KeyLength:   c.KeyLength,
	}
}
