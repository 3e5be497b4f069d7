package authcore

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/internal/totp"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/mail"
	"github.com/MrEthical07/authcore/oauth"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/store"
)

// Builder collects dependencies and produces an Engine. A Builder can be
// used for one Build call only.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  store.Store
	mailer mail.Dispatcher
	logger *zap.Logger
	sink   AuditSink
	now    func() time.Time

	providers map[string]oauth.Exchanger

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config:    DefaultConfig(),
		providers: make(map[string]oauth.Exchanger),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used for rate limits, revocations and OAuth
// state. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore sets the relational store. Required.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithMailer sets where verification codes and reset tokens are delivered.
// Without one they are written to the logger.
func (b *Builder) WithMailer(m mail.Dispatcher) *Builder {
	b.mailer = m
	return b
}

func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets the sink used when Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithOAuthProvider registers an identity provider under name.
func (b *Builder) WithOAuthProvider(name string, p oauth.Exchanger) *Builder {
	b.providers[name] = p
	return b
}

// WithClock overrides the time source used for token timestamps and expiry
// checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.store == nil {
		return nil, errors.New("store required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- TOKENS --------
	tokens, err := jwt.NewManager(jwt.Config{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}

	hasher, err := password.New(cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("password: %w", err)
	}

	// -------- OBSERVABILITY --------
	m := metrics.New(metrics.Config{
		Enabled:       cfg.Metrics.Enabled,
		EnableLatency: cfg.Metrics.EnableLatencyHistograms,
	})

	sink := b.sink
	if sink == nil {
		sink = audit.NewZapSink(logger)
	}
	dispatcher := audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, sink)

	// -------- REDIS-BACKED STATE --------
	limiter := rate.New(b.redis, rate.Config{
		Prefix: cfg.Redis.Prefix,
		Logger: logger.Named("rate"),
		OnFailOpen: func(string) {
			m.Inc(metrics.MetricRateLimitFailOpen)
		},
	})
	revocations := stores.NewRevocationIndex(b.redis, cfg.Redis.Prefix, cfg.Tokens.RevocationTTL,
		cfg.Tokens.RevocationCacheSize, cfg.Tokens.RevocationCacheTTL)
	states := stores.NewOAuthStateStore(b.redis, cfg.Redis.Prefix, cfg.OAuth.StateTTL)

	mailer := b.mailer
	if mailer == nil {
		mailer = mail.NewLogDispatcher(logger)
	}

	providers := make(map[string]oauth.Exchanger, len(b.providers))
	names := make([]string, 0, len(b.providers))
	for name, p := range b.providers {
		providers[name] = p
		names = append(names, name)
	}
	sort.Strings(names)

	svc := flows.New(flows.Deps{
		Store:       b.store,
		Hasher:      hasher,
		Tokens:      tokens,
		Revocations: revocations,
		Limits:      limiters.New(limiter, cfg.RateLimit),
		TOTP:        totp.New(totp.Config{Issuer: cfg.TOTP.Issuer}),
		Mail:        mailer,
		OAuthStates: states,
		Providers:   providers,
		Metrics:     m,
		Audit:       dispatcher,
		Logger:      logger,
		Now:         now,
		ClientIP:    ClientIPFromContext,
		Settings: flows.Settings{
			RevocationTTL:       cfg.Tokens.RevocationTTL,
			VerificationCodeTTL: cfg.Account.VerificationCodeTTL,
			ResetTokenTTL:       cfg.Account.ResetTokenTTL,
			OAuthStateTTL:       cfg.OAuth.StateTTL,
			BackupCodeLogin:     cfg.TOTP.AllowBackupCodeLogin,
			BackupCodeCount:     cfg.TOTP.BackupCodeCount,
			DefaultRole:         cfg.Account.DefaultRole,
			RehashOnLogin:       cfg.Account.RehashOnLogin,
		},
		Errors: flowErrors(),
	})

	b.built = true
	return &Engine{
		config:  cfg,
		flows:   svc,
		metrics: m,
		audit:   dispatcher,
		logger:  logger,

		providers: names,
	}, nil
}

func flowErrors() flows.Errors {
	return flows.Errors{
		InvalidCredentials:      ErrInvalidCredentials,
		InvalidToken:            ErrInvalidToken,
		InvalidRefreshToken:     ErrInvalidRefreshToken,
		TwoFactorRequired:       ErrTwoFactorRequired,
		Invalid2FACode:          ErrInvalid2FACode,
		TwoFactorAlreadyEnabled: ErrTwoFactorAlreadyEnabled,
		TwoFactorNotInitialized: ErrTwoFactorNotInitialized,
		TwoFactorNotEnabled:     ErrTwoFactorNotEnabled,
		AccountNotFound:         ErrAccountNotFound,
		AccountExists:           ErrAccountExists,
		AccountDisabled:         ErrAccountDisabled,
		InvalidResetToken:       ErrInvalidResetToken,
		InvalidCode:             ErrInvalidCode,
		InvalidOAuthState:       ErrInvalidOAuthState,
		OAuthProviderUnknown:    ErrOAuthProviderUnknown,
		Internal:                ErrInternal,
		InvalidFormat:           InvalidFormat,
		RateLimited: func(e *limiters.ExceededError) error {
			return &RateLimitError{
				Policy:     e.Policy,
				Count:      e.Result.Count,
				Remaining:  e.Result.Remaining,
				RetryAfter: e.Result.ResetIn,
			}
		},
	}
}
