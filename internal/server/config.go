package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/oauth"
)

// Config is the authd process configuration.
type Config struct {
	Addr            string        `mapstructure:"addr"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"` // CIDRs allowed to set X-Forwarded-For

	DatabaseURL   string `mapstructure:"database_url"` // empty selects the in-memory store
	RedisAddr     string `mapstructure:"redis_addr"`   // empty starts an embedded Redis
	RedisPassword string `mapstructure:"redis_password"`
	RedisPrefix   string `mapstructure:"redis_prefix"`

	JWTAccessSecret  string        `mapstructure:"jwt_access_secret"`
	JWTRefreshSecret string        `mapstructure:"jwt_refresh_secret"`
	JWTIssuer        string        `mapstructure:"jwt_issuer"`
	AccessTTL        time.Duration `mapstructure:"access_ttl"`
	RefreshTTL       time.Duration `mapstructure:"refresh_ttl"`

	TOTPIssuer      string `mapstructure:"totp_issuer"`
	BackupCodeLogin bool   `mapstructure:"backup_code_login"`

	AuditEnabled   bool `mapstructure:"audit_enabled"`
	MetricsLatency bool `mapstructure:"metrics_latency"`

	OIDC []OIDCProvider `mapstructure:"oidc"`
}

type OIDCProvider struct {
	Name         string   `mapstructure:"name"`
	IssuerURL    string   `mapstructure:"issuer_url"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
}

// Load reads authd.yaml from path (or the working directory when path is
// empty) and applies AUTHD_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("authd")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/authd/")
		v.AddConfigPath(".")
	}

	def := authcore.DefaultConfig()
	v.SetDefault("addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("shutdown_timeout", 15*time.Second)
	v.SetDefault("trusted_proxies", []string{})
	v.SetDefault("database_url", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_prefix", def.Redis.Prefix)
	v.SetDefault("jwt_access_secret", "")
	v.SetDefault("jwt_refresh_secret", "")
	v.SetDefault("jwt_issuer", def.JWT.Issuer)
	v.SetDefault("access_ttl", def.JWT.AccessTTL)
	v.SetDefault("refresh_ttl", def.JWT.RefreshTTL)
	v.SetDefault("totp_issuer", def.TOTP.Issuer)
	v.SetDefault("backup_code_login", def.TOTP.AllowBackupCodeLogin)
	v.SetDefault("audit_enabled", true)
	v.SetDefault("metrics_latency", true)

	v.SetEnvPrefix("AUTHD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// EngineConfig maps c onto an engine configuration. The revocation TTL
// follows the refresh TTL.
func (c *Config) EngineConfig() authcore.Config {
	cfg := authcore.DefaultConfig()
	cfg.JWT.AccessSecret = []byte(c.JWTAccessSecret)
	cfg.JWT.RefreshSecret = []byte(c.JWTRefreshSecret)
	cfg.JWT.Issuer = c.JWTIssuer
	cfg.JWT.AccessTTL = c.AccessTTL
	cfg.JWT.RefreshTTL = c.RefreshTTL
	if c.RefreshTTL > cfg.Tokens.RevocationTTL {
		cfg.Tokens.RevocationTTL = c.RefreshTTL
	}
	cfg.TOTP.Issuer = c.TOTPIssuer
	cfg.TOTP.AllowBackupCodeLogin = c.BackupCodeLogin
	cfg.Redis.Prefix = c.RedisPrefix
	cfg.Audit.Enabled = c.AuditEnabled
	cfg.Metrics.EnableLatencyHistograms = c.MetricsLatency
	return cfg
}

// OIDCConfigs returns the provider settings in the form oauth expects.
func (c *Config) OIDCConfigs() []oauth.OIDCConfig {
	out := make([]oauth.OIDCConfig, 0, len(c.OIDC))
	for _, p := range c.OIDC {
		out = append(out, oauth.OIDCConfig{
			Name:         p.Name,
			IssuerURL:    p.IssuerURL,
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			RedirectURL:  p.RedirectURL,
			Scopes:       p.Scopes,
		})
	}
	return out
}
