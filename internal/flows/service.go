package flows

import (
	"context"

	"github.com/MrEthical07/authcore/store"
)

// Service binds a normalized Deps to the flow functions. It is built once by
// the root engine and is safe for concurrent use.
type Service struct {
	deps Deps
}

func New(deps Deps) Service {
	return Service{deps: deps.Normalize()}
}

// Initialized reports whether the required collaborators are wired.
func (s Service) Initialized() bool {
	return s.deps.Store != nil && s.deps.Hasher != nil && s.deps.Tokens != nil && s.deps.TOTP != nil
}

func (s Service) Issue(ctx context.Context, accountID int64) (*TokenPair, error) {
	return RunIssue(ctx, accountID, s.deps)
}

func (s Service) VerifyAccess(ctx context.Context, token string) (*Claims, error) {
	return RunVerifyAccess(ctx, token, s.deps)
}

func (s Service) VerifyRefresh(ctx context.Context, token string) (*Claims, error) {
	return RunVerifyRefresh(ctx, token, s.deps)
}

func (s Service) Revoke(ctx context.Context, accountID int64, jti string, kind store.TokenType) error {
	return RunRevoke(ctx, accountID, jti, kind, s.deps)
}

func (s Service) Refresh(ctx context.Context, token string) (*TokenPair, error) {
	return RunRefresh(ctx, token, s.deps)
}

func (s Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	return RunLogout(ctx, accessToken, refreshToken, s.deps)
}

func (s Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	return RunLogin(ctx, req, s.deps)
}

func (s Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	return RunRegister(ctx, req, s.deps)
}

func (s Service) VerifyEmail(ctx context.Context, email, code string) error {
	return RunVerifyEmail(ctx, email, code, s.deps)
}

func (s Service) ResendVerification(ctx context.Context, email string) error {
	return RunResendVerification(ctx, email, s.deps)
}

func (s Service) ForgotPassword(ctx context.Context, email string) error {
	return RunForgotPassword(ctx, email, s.deps)
}

func (s Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	return RunResetPassword(ctx, token, newPassword, s.deps)
}

func (s Service) ChangePassword(ctx context.Context, accountID int64, current, next string) (*TokenPair, error) {
	return RunChangePassword(ctx, accountID, current, next, s.deps)
}

func (s Service) StartTwoFactorSetup(ctx context.Context, accountID int64) (*TwoFactorSetup, error) {
	return RunStartTwoFactorSetup(ctx, accountID, s.deps)
}

func (s Service) ActivateTwoFactor(ctx context.Context, accountID int64, code string) error {
	return RunActivateTwoFactor(ctx, accountID, code, s.deps)
}

func (s Service) DisableTwoFactor(ctx context.Context, accountID int64, code string) error {
	return RunDisableTwoFactor(ctx, accountID, code, s.deps)
}

func (s Service) RegenerateBackupCodes(ctx context.Context, accountID int64, code string) ([]string, error) {
	return RunRegenerateBackupCodes(ctx, accountID, code, s.deps)
}

func (s Service) BeginOAuth(ctx context.Context, provider string) (*OAuthRedirect, error) {
	return RunBeginOAuth(ctx, provider, s.deps)
}

func (s Service) CompleteOAuth(ctx context.Context, provider, state, code string) (*LoginResult, error) {
	return RunCompleteOAuth(ctx, provider, state, code, s.deps)
}
