package authcore

import "context"

// Login authenticates by username or email. When the account has two-factor
// enabled and req.Code is empty, it returns a result with RequiresTwoFactor
// set together with ErrTwoFactorRequired.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	return e.flows.Login(ctx, req)
}

// Register creates an account and sends an email verification code.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	return e.flows.Register(ctx, req)
}

// VerifyEmail consumes a verification code.
func (e *Engine) VerifyEmail(ctx context.Context, email, code string) error {
	return e.flows.VerifyEmail(ctx, email, code)
}

// ResendVerification issues a new code. Unknown or already verified
// addresses succeed silently.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	return e.flows.ResendVerification(ctx, email)
}
