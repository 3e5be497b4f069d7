package flows

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/internal/totp"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/mail"
	"github.com/MrEthical07/authcore/oauth"
	"github.com/MrEthical07/authcore/store"
)

// Hasher hashes and checks passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
	NeedsUpgrade(encoded string) (bool, error)
}

// TokenSigner mints and parses signed session tokens.
type TokenSigner interface {
	Sign(kind jwt.Kind, uid int64, jti string) (string, time.Time, error)
	Parse(kind jwt.Kind, token string) (*jwt.Claims, error)
}

// RevocationIndex is the fast revocation lookup shared by all instances.
type RevocationIndex interface {
	MarkRevoked(ctx context.Context, jtis ...string) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	SetValidSince(ctx context.Context, accountID int64, t time.Time) error
	ValidSince(ctx context.Context, accountID int64) (time.Time, error)
}

// Authenticator generates and checks TOTP secrets.
type Authenticator interface {
	GenerateSecret(label string) (totp.Key, error)
	VerifyCode(secret, code string) bool
}

// OAuthStateStore holds pending third-party sign-ins.
type OAuthStateStore interface {
	Save(ctx context.Context, state string, rec *stores.OAuthState) error
	Consume(ctx context.Context, state string) (*stores.OAuthState, error)
}

// Errors are the caller-facing failures. Flows return these values as-is.
type Errors struct {
	InvalidCredentials      error
	InvalidToken            error
	InvalidRefreshToken     error
	TwoFactorRequired       error
	Invalid2FACode          error
	TwoFactorAlreadyEnabled error
	TwoFactorNotInitialized error
	TwoFactorNotEnabled     error
	AccountNotFound         error
	AccountExists           error
	AccountDisabled         error
	InvalidResetToken       error
	InvalidCode             error
	InvalidOAuthState       error
	OAuthProviderUnknown    error
	Internal                error

	InvalidFormat func(field string) error
	RateLimited   func(*limiters.ExceededError) error
}

// DefaultErrors returns plain sentinel values, for callers that do not map
// errors themselves.
func DefaultErrors() Errors {
	return Errors{
		InvalidCredentials:      errors.New("invalid credentials"),
		InvalidToken:            errors.New("invalid token"),
		InvalidRefreshToken:     errors.New("invalid refresh token"),
		TwoFactorRequired:       errors.New("two-factor code required"),
		Invalid2FACode:          errors.New("invalid two-factor code"),
		TwoFactorAlreadyEnabled: errors.New("two-factor already enabled"),
		TwoFactorNotInitialized: errors.New("two-factor not initialized"),
		TwoFactorNotEnabled:     errors.New("two-factor not enabled"),
		AccountNotFound:         errors.New("account not found"),
		AccountExists:           errors.New("account exists"),
		AccountDisabled:         errors.New("account disabled"),
		InvalidResetToken:       errors.New("invalid reset token"),
		InvalidCode:             errors.New("invalid code"),
		InvalidOAuthState:       errors.New("invalid oauth state"),
		OAuthProviderUnknown:    errors.New("unknown oauth provider"),
		Internal:                errors.New("internal error"),
		InvalidFormat:           func(field string) error { return errors.New("invalid " + field) },
		RateLimited:             func(e *limiters.ExceededError) error { return e },
	}
}

// Settings are the tunables flows read.
type Settings struct {
	RevocationTTL       time.Duration
	VerificationCodeTTL time.Duration
	ResetTokenTTL       time.Duration
	OAuthStateTTL       time.Duration
	BackupCodeLogin     bool
	BackupCodeCount     int
	DefaultRole         string
	RehashOnLogin       bool
}

// Deps is everything a flow may touch. Revocations, Limits, Mail, Audit and
// Metrics are optional.
type Deps struct {
	Store       store.Store
	Hasher      Hasher
	Tokens      TokenSigner
	Revocations RevocationIndex
	Limits      *limiters.Set
	TOTP        Authenticator
	Mail        mail.Dispatcher
	OAuthStates OAuthStateStore
	Providers   map[string]oauth.Exchanger

	Metrics *metrics.Metrics
	Audit   *audit.Dispatcher
	Logger  *zap.Logger

	Now         func() time.Time
	NewID       func() string
	NewToken    func() (string, error)
	NewCode     func() (string, error)
	NewVerifier func() string
	ClientIP    func(context.Context) string
	Settings    Settings
	Errors      Errors
}

// Normalize fills unset hooks with production defaults.
func (d Deps) Normalize() Deps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.NewToken == nil {
		d.NewToken = internal.NewOpaqueToken
	}
	if d.NewCode == nil {
		d.NewCode = func() (string, error) { return internal.NewOTP(6) }
	}
	if d.NewVerifier == nil {
		d.NewVerifier = oauth.NewVerifier
	}
	if d.ClientIP == nil {
		d.ClientIP = func(context.Context) string { return "" }
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Errors.Internal == nil {
		d.Errors = DefaultErrors()
	}
	if d.Settings.RevocationTTL <= 0 {
		d.Settings.RevocationTTL = 7 * 24 * time.Hour
	}
	if d.Settings.VerificationCodeTTL <= 0 {
		d.Settings.VerificationCodeTTL = 24 * time.Hour
	}
	if d.Settings.ResetTokenTTL <= 0 {
		d.Settings.ResetTokenTTL = time.Hour
	}
	if d.Settings.OAuthStateTTL <= 0 {
		d.Settings.OAuthStateTTL = 10 * time.Minute
	}
	if d.Settings.BackupCodeCount <= 0 {
		d.Settings.BackupCodeCount = 8
	}
	if d.Settings.DefaultRole == "" {
		d.Settings.DefaultRole = "user"
	}
	return d
}

// internalError logs err and returns the opaque internal error.
func (d Deps) internalError(op string, err error, fields ...zap.Field) error {
	d.Metrics.Inc(metrics.MetricInternalError)
	d.Logger.Error(op+" failed", append(fields, zap.Error(err))...)
	return d.Errors.Internal
}

func (d Deps) rateLimited(err error) error {
	var exceeded *limiters.ExceededError
	if errors.As(err, &exceeded) {
		d.Metrics.Inc(metrics.MetricRateLimitHit)
		return d.Errors.RateLimited(exceeded)
	}
	return err
}

func (d Deps) emit(ctx context.Context, eventType string, accountID int64, tokenID string, err error, metadata map[string]string) {
	if d.Audit == nil {
		return
	}
	ev := audit.Event{
		Timestamp: d.Now(),
		EventType: eventType,
		AccountID: accountID,
		TokenID:   tokenID,
		IP:        d.ClientIP(ctx),
		Success:   err == nil,
		Metadata:  metadata,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	d.Audit.Emit(ctx, ev)
}

func (d Deps) send(ctx context.Context, address string, kind mail.Kind, token string) {
	if d.Mail == nil {
		d.Logger.Warn("no mail dispatcher configured", zap.String("kind", string(kind)))
		return
	}
	if err := d.Mail.Send(ctx, address, kind, token); err != nil {
		d.Logger.Error("mail dispatch failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}
