package authcore

import "context"

// ForgotPassword mails a reset token. It returns nil for unknown addresses.
func (e *Engine) ForgotPassword(ctx context.Context, email string) error {
	return e.flows.ForgotPassword(ctx, email)
}

// ResetPassword consumes a reset token, sets newPassword and revokes every
// outstanding token of the account.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	return e.flows.ResetPassword(ctx, token, newPassword)
}

// ChangePassword replaces the password of a signed-in account. All previous
// tokens are revoked and a fresh pair is returned for the caller's session.
func (e *Engine) ChangePassword(ctx context.Context, accountID int64, current, next string) (*TokenPair, error) {
	return e.flows.ChangePassword(ctx, accountID, current, next)
}
