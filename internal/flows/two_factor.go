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

// TwoFactorSetup is returned once, when setup starts. The backup codes are
// not recoverable afterwards.
type TwoFactorSetup struct {
	Secret          string
	ProvisioningURI string
	BackupCodes     []string
}

// RunStartTwoFactorSetup writes a new secret (disabled) and a new backup code
// batch. Restarting an unfinished setup replaces both.
func RunStartTwoFactorSetup(ctx context.Context, accountID int64, d Deps) (*TwoFactorSetup, error) {
	acct, err := d.Store.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, d.Errors.AccountNotFound
		}
		return nil, d.internalError("load account", err)
	}

	existing, err := d.Store.GetTwoFactor(ctx, accountID)
	switch {
	case err == nil && existing.Enabled:
		return nil, d.Errors.TwoFactorAlreadyEnabled
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, d.internalError("load two-factor secret", err, zap.Int64("account_id", accountID))
	}

	key, err := d.TOTP.GenerateSecret(acct.Email)
	if err != nil {
		return nil, d.internalError("generate totp secret", err)
	}
	codes, hashes, err := newBackupBatch(d.Settings.BackupCodeCount)
	if err != nil {
		return nil, d.internalError("generate backup codes", err)
	}

	now := d.Now()
	err = d.Store.WithTx(ctx, func(ctx context.Context, q store.Queries) error {
		if err := q.UpsertTwoFactor(ctx, &store.TwoFactorSecret{
			AccountID: accountID,
			Secret:    key.Secret,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		return q.ReplaceBackupCodes(ctx, accountID, hashes)
	})
	if err != nil {
		return nil, d.internalError("store two-factor setup", err, zap.Int64("account_id", accountID))
	}

	d.emit(ctx, EventTwoFactorSetup, accountID, "", nil, nil)
	return &TwoFactorSetup{Secret: key.Secret, ProvisioningURI: key.URI, BackupCodes: codes}, nil
}

// RunActivateTwoFactor enables a started setup once the user proves
// possession with a TOTP code.
func RunActivateTwoFactor(ctx context.Context, accountID int64, code string, d Deps) error {
	if err := d.Limits.TwoFactor(ctx, accountID); err != nil {
		return d.rateLimited(err)
	}
	sec, err := d.Store.GetTwoFactor(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return d.Errors.TwoFactorNotInitialized
		}
		return d.internalError("load two-factor secret", err, zap.Int64("account_id", accountID))
	}
	if sec.Enabled {
		return d.Errors.TwoFactorAlreadyEnabled
	}
	if !d.TOTP.VerifyCode(sec.Secret, strings.TrimSpace(code)) {
		d.Metrics.Inc(metrics.MetricTwoFactorFailure)
		d.emit(ctx, EventTwoFactorFailure, accountID, "", d.Errors.Invalid2FACode, map[string]string{"step": "activate"})
		return d.Errors.Invalid2FACode
	}
	if err := d.Store.EnableTwoFactor(ctx, accountID, d.Now()); err != nil {
		return d.internalError("enable two-factor", err, zap.Int64("account_id", accountID))
	}
	d.Metrics.Inc(metrics.MetricTwoFactorEnabled)
	d.emit(ctx, EventTwoFactorEnabled, accountID, "", nil, nil)
	return nil
}

// RunDisableTwoFactor removes the secret and backup codes. code may be a
// TOTP code or an unused backup code.
func RunDisableTwoFactor(ctx context.Context, accountID int64, code string, d Deps) error {
	sec, err := enabledSecret(ctx, accountID, d)
	if err != nil {
		return err
	}
	if err := d.Limits.TwoFactor(ctx, accountID); err != nil {
		return d.rateLimited(err)
	}
	if _, err := checkSecondFactor(ctx, accountID, sec.Secret, code, true, d); err != nil {
		if errors.Is(err, d.Errors.Invalid2FACode) {
			d.Metrics.Inc(metrics.MetricTwoFactorFailure)
			d.emit(ctx, EventTwoFactorFailure, accountID, "", err, map[string]string{"step": "disable"})
		}
		return err
	}
	if err := d.Store.DisableTwoFactor(ctx, accountID); err != nil {
		return d.internalError("disable two-factor", err, zap.Int64("account_id", accountID))
	}
	d.Metrics.Inc(metrics.MetricTwoFactorDisabled)
	d.emit(ctx, EventTwoFactorDisabled, accountID, "", nil, nil)
	return nil
}

// RunRegenerateBackupCodes replaces the backup batch. Only a TOTP code is
// accepted.
func RunRegenerateBackupCodes(ctx context.Context, accountID int64, code string, d Deps) ([]string, error) {
	sec, err := enabledSecret(ctx, accountID, d)
	if err != nil {
		return nil, err
	}
	if err := d.Limits.TwoFactor(ctx, accountID); err != nil {
		return nil, d.rateLimited(err)
	}
	if !d.TOTP.VerifyCode(sec.Secret, strings.TrimSpace(code)) {
		d.Metrics.Inc(metrics.MetricTwoFactorFailure)
		return nil, d.Errors.Invalid2FACode
	}

	codes, hashes, err := newBackupBatch(d.Settings.BackupCodeCount)
	if err != nil {
		return nil, d.internalError("generate backup codes", err)
	}
	if err := d.Store.ReplaceBackupCodes(ctx, accountID, hashes); err != nil {
		return nil, d.internalError("replace backup codes", err, zap.Int64("account_id", accountID))
	}
	d.Metrics.Inc(metrics.MetricBackupCodeRegenerated)
	d.emit(ctx, EventBackupRegenerated, accountID, "", nil, nil)
	return codes, nil
}

func enabledSecret(ctx context.Context, accountID int64, d Deps) (*store.TwoFactorSecret, error) {
	sec, err := d.Store.GetTwoFactor(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, d.Errors.TwoFactorNotEnabled
		}
		return nil, d.internalError("load two-factor secret", err, zap.Int64("account_id", accountID))
	}
	if !sec.Enabled {
		return nil, d.Errors.TwoFactorNotEnabled
	}
	return sec, nil
}

func newBackupBatch(n int) ([]string, []string, error) {
	codes, err := totp.GenerateBackupCodes(n)
	if err != nil {
		return nil, nil, err
	}
	hashes := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = totp.HashBackupCode(c)
	}
	return codes, hashes, nil
}
