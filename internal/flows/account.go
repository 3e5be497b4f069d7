package flows

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/mail"
	"github.com/MrEthical07/authcore/store"
)

// RegisterRequest creates a password account. Username is optional.
type RegisterRequest struct {
	Email    string
	Username string
	Password string
}

type RegisterResult struct {
	AccountID int64
}

// RunRegister creates the account and its first email verification code in
// one transaction, then mails the code.
func RunRegister(ctx context.Context, req RegisterRequest, d Deps) (*RegisterResult, error) {
	if err := d.Limits.Register(ctx, d.ClientIP(ctx)); err != nil {
		return nil, d.rateLimited(err)
	}

	email := normalizeEmail(req.Email)
	if !ValidEmail(email) {
		return nil, d.Errors.InvalidFormat("email")
	}
	username := strings.TrimSpace(req.Username)
	if username != "" && !ValidUsername(username) {
		return nil, d.Errors.InvalidFormat("username")
	}
	if !ValidPassword(req.Password) {
		return nil, d.Errors.InvalidFormat("password")
	}

	hash, err := d.Hasher.Hash(req.Password)
	if err != nil {
		return nil, d.Errors.InvalidFormat("password")
	}
	code, err := d.NewCode()
	if err != nil {
		return nil, d.internalError("generate verification code", err)
	}

	now := d.Now()
	acct := &store.Account{
		Email:             email,
		Username:          username,
		PasswordHash:      hash,
		Role:              d.Settings.DefaultRole,
		Active:            true,
		PasswordChangedAt: now,
		CreatedAt:         now,
	}
	err = d.Store.WithTx(ctx, func(ctx context.Context, q store.Queries) error {
		if err := q.CreateAccount(ctx, acct); err != nil {
			return err
		}
		return q.CreateVerification(ctx, &store.EmailVerification{
			AccountID: acct.ID,
			Code:      code,
			ExpiresAt: now.Add(d.Settings.VerificationCodeTTL),
			CreatedAt: now,
		})
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			d.Metrics.Inc(metrics.MetricRegisterDuplicate)
			return nil, d.Errors.AccountExists
		}
		return nil, d.internalError("create account", err)
	}

	d.send(ctx, email, mail.KindEmailVerification, code)
	d.Metrics.Inc(metrics.MetricRegisterSuccess)
	d.Metrics.Inc(metrics.MetricEmailVerificationSent)
	d.emit(ctx, EventAccountRegistered, acct.ID, "", nil, nil)
	return &RegisterResult{AccountID: acct.ID}, nil
}

// RunVerifyEmail consumes a verification code. Unknown addresses and wrong
// codes fail identically.
func RunVerifyEmail(ctx context.Context, email, code string, d Deps) error {
	email = normalizeEmail(email)
	if !ValidEmail(email) {
		return d.Errors.InvalidFormat("email")
	}
	code = strings.TrimSpace(code)
	if !ValidCode(code) {
		return d.Errors.InvalidFormat("code")
	}

	acct, err := d.Store.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			d.Metrics.Inc(metrics.MetricEmailVerificationFailure)
			return d.Errors.InvalidCode
		}
		return d.internalError("load account", err)
	}
	if err := d.Limits.TwoFactor(ctx, acct.ID); err != nil {
		return d.rateLimited(err)
	}

	err = d.Store.WithTx(ctx, func(ctx context.Context, q store.Queries) error {
		v, err := q.GetActiveVerification(ctx, acct.ID, code, d.Now())
		if err != nil {
			return err
		}
		if err := q.MarkVerificationUsed(ctx, v.ID); err != nil {
			return err
		}
		return q.MarkEmailVerified(ctx, acct.ID)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			d.Metrics.Inc(metrics.MetricEmailVerificationFailure)
			return d.Errors.InvalidCode
		}
		return d.internalError("verify email", err, zap.Int64("account_id", acct.ID))
	}

	d.Metrics.Inc(metrics.MetricEmailVerificationSuccess)
	d.emit(ctx, EventEmailVerified, acct.ID, "", nil, nil)
	return nil
}

// RunResendVerification mails a fresh code. It reports success for unknown
// or already verified addresses.
func RunResendVerification(ctx context.Context, email string, d Deps) error {
	email = normalizeEmail(email)
	if !ValidEmail(email) {
		return d.Errors.InvalidFormat("email")
	}

	acct, err := d.Store.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return d.internalError("load account", err)
	}
	if acct.EmailVerified {
		return nil
	}
	if err := d.Limits.VerificationSend(ctx, acct.ID); err != nil {
		return d.rateLimited(err)
	}

	code, err := d.NewCode()
	if err != nil {
		return d.internalError("generate verification code", err)
	}
	now := d.Now()
	if err := d.Store.CreateVerification(ctx, &store.EmailVerification{
		AccountID: acct.ID,
		Code:      code,
		ExpiresAt: now.Add(d.Settings.VerificationCodeTTL),
		CreatedAt: now,
	}); err != nil {
		return d.internalError("create verification", err, zap.Int64("account_id", acct.ID))
	}

	d.send(ctx, email, mail.KindEmailVerification, code)
	d.Metrics.Inc(metrics.MetricEmailVerificationSent)
	return nil
}
