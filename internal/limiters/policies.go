package limiters

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/internal/rate"
)

// ErrExceeded is the sentinel every ExceededError unwraps to.
var ErrExceeded = errors.New("rate limit exceeded")

// ExceededError carries the counter state of a rejected request.
type ExceededError struct {
	Policy string
	Result rate.Result
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("%s: %s (count=%d, retry in %s)", ErrExceeded, e.Policy, e.Result.Count, e.Result.ResetIn)
}

func (e *ExceededError) Unwrap() error { return ErrExceeded }

// Config names the ceiling and window of each policy.
type Config struct {
	Register         rate.Policy
	Login            rate.Policy
	ForgotPassword   rate.Policy
	ResetPassword    rate.Policy
	PasswordChange   rate.Policy
	VerificationSend rate.Policy
	Refresh          rate.Policy
	TwoFactor        rate.Policy
}

// DefaultConfig returns the stock policies.
func DefaultConfig() Config {
	return Config{
		Register:         rate.Policy{Name: "register", Max: 10, Window: time.Minute},
		Login:            rate.Policy{Name: "login", Max: 5, Window: 15 * time.Minute},
		ForgotPassword:   rate.Policy{Name: "forgot-password", Max: 3, Window: time.Hour},
		ResetPassword:    rate.Policy{Name: "reset-password", Max: 5, Window: time.Hour},
		PasswordChange:   rate.Policy{Name: "password-change", Max: 5, Window: time.Hour},
		VerificationSend: rate.Policy{Name: "email-verification-send", Max: 3, Window: 24 * time.Hour},
		Refresh:          rate.Policy{Name: "refresh", Max: 30, Window: time.Minute},
		TwoFactor:        rate.Policy{Name: "2fa", Max: 5, Window: 5 * time.Minute},
	}
}

// Validate rejects policies without a name, ceiling or window.
func (c Config) Validate() error {
	for _, p := range []rate.Policy{c.Register, c.Login, c.ForgotPassword, c.ResetPassword, c.PasswordChange, c.VerificationSend, c.Refresh, c.TwoFactor} {
		if p.Name == "" || p.Max <= 0 || p.Window <= 0 {
			return fmt.Errorf("invalid rate policy %q: max=%d window=%s", p.Name, p.Max, p.Window)
		}
	}
	return nil
}

// Set applies Config through a rate.Limiter.
type Set struct {
	limiter *rate.Limiter
	config  Config
}

func New(l *rate.Limiter, cfg Config) *Set {
	return &Set{limiter: l, config: cfg}
}

func (s *Set) Register(ctx context.Context, ip string) error {
	if s == nil {
		return nil
	}
	return s.check(ctx, s.config.Register, ip)
}

// LoginAllowed counts the attempt before any credential work. Attempts past
// the ceiling are rejected, so concurrent guesses cannot all pass a read of
// the same count.
func (s *Set) LoginAllowed(ctx context.Context, username, ip string) error {
	if s == nil {
		return nil
	}
	return s.check(ctx, s.config.Login, loginKey(username, ip))
}

// LoginSucceeded clears the counter, so only failed attempts accumulate.
func (s *Set) LoginSucceeded(ctx context.Context, username, ip string) error {
	if s == nil {
		return nil
	}
	return s.limiter.Reset(ctx, s.config.Login, loginKey(username, ip))
}

func (s *Set) ForgotPassword(ctx context.Context, email string) error {
	if s == nil {
		return nil
	}
	return s.check(ctx, s.config.ForgotPassword, strings.ToLower(strings.TrimSpace(email)))
}

func (s *Set) ResetPassword(ctx context.Context, tokenHash string) error {
	if s == nil {
		return nil
	}
	return s.check(ctx, s.config.ResetPassword, tokenHash)
}

func (s *Set) PasswordChange(ctx context.Context, accountID int64) error {
	if s == nil {
		return nil
	}
	return s.check(ctx, s.config.PasswordChange, strconv.FormatInt(accountID, 10))
}

func (s *Set) VerificationSend(ctx context.Context, accountID int64) error {
	if s == nil {
		return nil
	}
	return s.check(ctx, s.config.VerificationSend, strconv.FormatInt(accountID, 10))
}

func (s *Set) Refresh(ctx context.Context, accountID int64) error {
	if s == nil {
		return nil
	}
	return s.check(ctx, s.config.Refresh, strconv.FormatInt(accountID, 10))
}

func (s *Set) TwoFactor(ctx context.Context, accountID int64) error {
	if s == nil {
		return nil
	}
	return s.check(ctx, s.config.TwoFactor, strconv.FormatInt(accountID, 10))
}

func (s *Set) check(ctx context.Context, p rate.Policy, key string) error {
	res := s.limiter.Check(ctx, p, key)
	if !res.Allowed {
		return &ExceededError{Policy: p.Name, Result: res}
	}
	return nil
}

func loginKey(username, ip string) string {
	return strings.ToLower(strings.TrimSpace(username)) + "|" + ip
}
