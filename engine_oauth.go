package authcore

import "context"

// BeginOAuth returns the provider URL to redirect the browser to.
func (e *Engine) BeginOAuth(ctx context.Context, provider string) (*OAuthRedirect, error) {
	return e.flows.BeginOAuth(ctx, provider)
}

// CompleteOAuth handles the provider callback and signs the account in.
func (e *Engine) CompleteOAuth(ctx context.Context, provider, state, code string) (*LoginResult, error) {
	return e.flows.CompleteOAuth(ctx, provider, state, code)
}
