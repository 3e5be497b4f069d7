package flows

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/internal/totp"
	"github.com/MrEthical07/authcore/store"
)

// LoginRequest identifies the account by username, or by email when the
// identifier contains '@'. Code is a TOTP or backup code.
type LoginRequest struct {
	Identifier string
	Password   string
	Code       string
}

// LoginResult carries tokens on success. RequiresTwoFactor is set alongside
// Errors.TwoFactorRequired.
type LoginResult struct {
	AccountID         int64
	Tokens            *TokenPair
	RequiresTwoFactor bool
	UsedBackupCode    bool
}

// RunLogin authenticates req and issues a token pair. Every attempt is
// counted against the identifier+IP login budget before the password is
// checked; success clears it.
func RunLogin(ctx context.Context, req LoginRequest, d Deps) (*LoginResult, error) {
	ip := d.ClientIP(ctx)
	ident := strings.TrimSpace(req.Identifier)

	if err := d.Limits.LoginAllowed(ctx, ident, ip); err != nil {
		d.Metrics.Inc(metrics.MetricLoginRateLimited)
		d.emit(ctx, EventLoginRateLimited, 0, "", err, map[string]string{"identifier": ident})
		return nil, d.rateLimited(err)
	}

	fail := func(accountID int64, reason string, err error) (*LoginResult, error) {
		d.Metrics.Inc(metrics.MetricLoginFailure)
		d.emit(ctx, EventLoginFailure, accountID, "", err, map[string]string{"identifier": ident, "reason": reason})
		return nil, err
	}

	acct, err := lookupLoginAccount(ctx, ident, d)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return fail(0, "unknown_account", d.Errors.InvalidCredentials)
		case errors.Is(err, errBadIdentifier):
			return fail(0, "invalid_identifier", d.Errors.InvalidFormat("username"))
		}
		return nil, d.internalError("load account", err)
	}

	ok, err := d.Hasher.Verify(req.Password, acct.PasswordHash)
	if err != nil || !ok {
		return fail(acct.ID, "password_mismatch", d.Errors.InvalidCredentials)
	}
	if !acct.Active {
		return fail(acct.ID, "account_disabled", d.Errors.AccountDisabled)
	}

	var usedBackup bool
	sec, err := d.Store.GetTwoFactor(ctx, acct.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, d.internalError("load two-factor secret", err, zap.Int64("account_id", acct.ID))
	}
	if err == nil && sec.Enabled {
		if req.Code == "" {
			d.Metrics.Inc(metrics.MetricTwoFactorRequired)
			d.emit(ctx, EventTwoFactorRequired, acct.ID, "", nil, nil)
			return &LoginResult{AccountID: acct.ID, RequiresTwoFactor: true}, d.Errors.TwoFactorRequired
		}
		if err := d.Limits.TwoFactor(ctx, acct.ID); err != nil {
			d.Metrics.Inc(metrics.MetricLoginRateLimited)
			return nil, d.rateLimited(err)
		}
		usedBackup, err = checkSecondFactor(ctx, acct.ID, sec.Secret, req.Code, d.Settings.BackupCodeLogin, d)
		if err != nil {
			if errors.Is(err, d.Errors.Invalid2FACode) {
				d.Metrics.Inc(metrics.MetricTwoFactorFailure)
				return fail(acct.ID, "two_factor_mismatch", err)
			}
			return nil, err
		}
	}

	if d.Settings.RehashOnLogin {
		rehash(ctx, acct, req.Password, d)
	}

	pair, err := RunIssue(ctx, acct.ID, d)
	if err != nil {
		return nil, err
	}
	if err := d.Limits.LoginSucceeded(ctx, ident, ip); err != nil {
		d.Logger.Warn("login counter reset failed", zap.Int64("account_id", acct.ID), zap.Error(err))
	}
	d.Metrics.Inc(metrics.MetricLoginSuccess)
	meta := map[string]string{"identifier": ident}
	if usedBackup {
		meta["second_factor"] = "backup_code"
	}
	d.emit(ctx, EventLoginSuccess, acct.ID, pair.JTI, nil, meta)
	return &LoginResult{AccountID: acct.ID, Tokens: pair, UsedBackupCode: usedBackup}, nil
}

var errBadIdentifier = errors.New("malformed identifier")

func lookupLoginAccount(ctx context.Context, ident string, d Deps) (*store.Account, error) {
	if strings.Contains(ident, "@") {
		if !ValidEmail(ident) {
			return nil, errBadIdentifier
		}
		return d.Store.GetAccountByEmail(ctx, normalizeEmail(ident))
	}
	if !ValidUsername(ident) {
		return nil, errBadIdentifier
	}
	return d.Store.GetAccountByUsername(ctx, ident)
}

// checkSecondFactor accepts a TOTP code, or a backup code when allowBackup
// is set. A backup code is consumed on success.
func checkSecondFactor(ctx context.Context, accountID int64, secret, code string, allowBackup bool, d Deps) (bool, error) {
	code = strings.TrimSpace(code)
	if d.TOTP.VerifyCode(secret, code) {
		return false, nil
	}
	if !allowBackup || !totp.IsBackupCode(code) {
		return false, d.Errors.Invalid2FACode
	}
	consumed, err := d.Store.ConsumeBackupCode(ctx, accountID, totp.HashBackupCode(code), d.Now())
	if err != nil {
		return false, d.internalError("consume backup code", err, zap.Int64("account_id", accountID))
	}
	if !consumed {
		return false, d.Errors.Invalid2FACode
	}
	d.Metrics.Inc(metrics.MetricBackupCodeUsed)
	d.emit(ctx, EventBackupCodeUsed, accountID, "", nil, nil)
	return true, nil
}

func rehash(ctx context.Context, acct *store.Account, password string, d Deps) {
	needs, err := d.Hasher.NeedsUpgrade(acct.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := d.Hasher.Hash(password)
	if err != nil {
		d.Logger.Warn("password rehash failed", zap.Int64("account_id", acct.ID), zap.Error(err))
		return
	}
	// Keep PasswordChangedAt so outstanding tokens stay valid.
	if err := d.Store.UpdatePassword(ctx, acct.ID, hash, acct.PasswordChangedAt); err != nil {
		d.Logger.Warn("password rehash update failed", zap.Int64("account_id", acct.ID), zap.Error(err))
		return
	}
	d.Metrics.Inc(metrics.MetricPasswordRehash)
}
