package authcore

import "context"

// StartTwoFactorSetup provisions a secret and backup codes. Two-factor stays
// off until ActivateTwoFactor confirms a code.
func (e *Engine) StartTwoFactorSetup(ctx context.Context, accountID int64) (*TwoFactorSetup, error) {
	return e.flows.StartTwoFactorSetup(ctx, accountID)
}

func (e *Engine) ActivateTwoFactor(ctx context.Context, accountID int64, code string) error {
	return e.flows.ActivateTwoFactor(ctx, accountID, code)
}

// DisableTwoFactor accepts a current TOTP code or an unused backup code.
func (e *Engine) DisableTwoFactor(ctx context.Context, accountID int64, code string) error {
	return e.flows.DisableTwoFactor(ctx, accountID, code)
}

// RegenerateBackupCodes replaces the backup codes after checking a TOTP code.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, accountID int64, code string) ([]string, error) {
	return e.flows.RegenerateBackupCodes(ctx, accountID, code)
}
