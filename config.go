package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/password"
)

// Config is the Engine's full configuration. Start from DefaultConfig and
// override what you need; Build calls Validate on a private copy.
type Config struct {
	JWT       JWTConfig
	Password  password.Config
	RateLimit limiters.Config
	TOTP      TOTPConfig
	Tokens    TokenConfig
	Account   AccountConfig
	OAuth     OAuthConfig
	Redis     RedisConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// JWTConfig holds HS256 signing secrets and token lifetimes.
type JWTConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

// TOTPConfig controls authenticator provisioning and backup codes.
type TOTPConfig struct {
	Issuer               string
	BackupCodeCount      int
	AllowBackupCodeLogin bool
}

// TokenConfig controls the revocation index.
type TokenConfig struct {
	// RevocationTTL is how long a revoked jti and the valid-since marker are
	// kept. It must cover the longest token lifetime.
	RevocationTTL time.Duration
	// RevocationCacheSize > 0 enables an in-process cache of revoked ids.
	RevocationCacheSize int
	RevocationCacheTTL  time.Duration
}

type AccountConfig struct {
	DefaultRole         string
	VerificationCodeTTL time.Duration
	ResetTokenTTL       time.Duration
	// RehashOnLogin upgrades legacy or weaker hashes after a successful login.
	RehashOnLogin bool
}

type OAuthConfig struct {
	StateTTL time.Duration
}

type RedisConfig struct {
	Prefix string
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns production defaults. JWT secrets are left empty and
// must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  time.Hour,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "authcore",
			Leeway:     30 * time.Second,
		},
		Password:  password.DefaultConfig(),
		RateLimit: limiters.DefaultConfig(),
		TOTP: TOTPConfig{
			Issuer:               "authcore",
			BackupCodeCount:      8,
			AllowBackupCodeLogin: true,
		},
		Tokens: TokenConfig{
			RevocationTTL:       7 * 24 * time.Hour,
			RevocationCacheSize: 10000,
			RevocationCacheTTL:  time.Minute,
		},
		Account: AccountConfig{
			DefaultRole:         "user",
			VerificationCodeTTL: 24 * time.Hour,
			ResetTokenTTL:       time.Hour,
			RehashOnLogin:       true,
		},
		OAuth: OAuthConfig{StateTTL: 10 * time.Minute},
		Redis: RedisConfig{Prefix: "authcore"},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(c Config) Config {
	out := c
	out.JWT.AccessSecret = cloneBytes(c.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(c.JWT.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.AccessSecret) < 32 || len(c.JWT.RefreshSecret) < 32 {
		return errors.New("jwt secrets must be at least 32 bytes")
	}
	if string(c.JWT.AccessSecret) == string(c.JWT.RefreshSecret) {
		return errors.New("access and refresh secrets must differ")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("token TTLs must be > 0")
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("access TTL must be shorter than refresh TTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("jwt leeway must be within [0, 2m]")
	}

	// Revocation
	longest := c.JWT.RefreshTTL
	if c.JWT.AccessTTL > longest {
		longest = c.JWT.AccessTTL
	}
	if c.Tokens.RevocationTTL < longest {
		return fmt.Errorf("revocation TTL %s must cover the longest token lifetime %s", c.Tokens.RevocationTTL, longest)
	}
	if c.Tokens.RevocationCacheSize < 0 || c.Tokens.RevocationCacheTTL < 0 {
		return errors.New("revocation cache settings must be >= 0")
	}

	// Rate limits
	if err := c.RateLimit.Validate(); err != nil {
		return err
	}

	// TOTP
	if c.TOTP.BackupCodeCount <= 0 || c.TOTP.BackupCodeCount > 20 {
		return errors.New("backup code count must be within [1, 20]")
	}

	// Account
	if c.Account.DefaultRole == "" {
		return errors.New("default role must be set")
	}
	if c.Account.VerificationCodeTTL <= 0 || c.Account.ResetTokenTTL <= 0 {
		return errors.New("verification and reset TTLs must be > 0")
	}
	if c.OAuth.StateTTL <= 0 {
		return errors.New("oauth state TTL must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be > 0 when audit is enabled")
	}
	return nil
}
