package flows

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/oauth"
	"github.com/MrEthical07/authcore/store"
)

// OAuthRedirect is where to send the browser and the state to expect back.
type OAuthRedirect struct {
	URL   string
	State string
}

// RunBeginOAuth records a pending sign-in for provider.
func RunBeginOAuth(ctx context.Context, provider string, d Deps) (*OAuthRedirect, error) {
	ex, ok := d.Providers[provider]
	if !ok || d.OAuthStates == nil {
		return nil, d.Errors.OAuthProviderUnknown
	}

	state, err := d.NewToken()
	if err != nil {
		return nil, d.internalError("generate oauth state", err)
	}
	nonce, err := d.NewToken()
	if err != nil {
		return nil, d.internalError("generate oauth nonce", err)
	}
	verifier := d.NewVerifier()

	rec := &stores.OAuthState{
		Provider:  provider,
		Nonce:     nonce,
		Verifier:  verifier,
		CreatedAt: d.Now().Unix(),
	}
	if err := d.OAuthStates.Save(ctx, state, rec); err != nil {
		return nil, d.internalError("save oauth state", err, zap.String("provider", provider))
	}
	return &OAuthRedirect{URL: ex.AuthCodeURL(state, nonce, verifier), State: state}, nil
}

// RunCompleteOAuth consumes state, exchanges code and signs the linked
// account in. An unknown identity is linked to the account with the same
// verified email, or to a new account without a password.
func RunCompleteOAuth(ctx context.Context, provider, state, code string, d Deps) (*LoginResult, error) {
	ex, ok := d.Providers[provider]
	if !ok || d.OAuthStates == nil {
		return nil, d.Errors.OAuthProviderUnknown
	}

	rec, err := d.OAuthStates.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, stores.ErrStateNotFound) {
			d.Metrics.Inc(metrics.MetricOAuthFailure)
			return nil, d.Errors.InvalidOAuthState
		}
		return nil, d.internalError("consume oauth state", err)
	}
	if rec.Provider != provider {
		d.Metrics.Inc(metrics.MetricOAuthFailure)
		return nil, d.Errors.InvalidOAuthState
	}

	id, err := ex.Exchange(ctx, code, rec.Nonce, rec.Verifier)
	if err != nil {
		d.Metrics.Inc(metrics.MetricOAuthFailure)
		d.Logger.Info("oauth exchange rejected", zap.String("provider", provider), zap.Error(err))
		return nil, d.Errors.InvalidCredentials
	}

	acct, err := resolveIdentity(ctx, provider, id, d)
	if err != nil {
		return nil, err
	}
	if !acct.Active {
		d.Metrics.Inc(metrics.MetricOAuthFailure)
		return nil, d.Errors.AccountDisabled
	}

	pair, err := RunIssue(ctx, acct.ID, d)
	if err != nil {
		return nil, err
	}
	d.Metrics.Inc(metrics.MetricOAuthSuccess)
	d.emit(ctx, EventOAuthLogin, acct.ID, pair.JTI, nil, map[string]string{"provider": provider})
	return &LoginResult{AccountID: acct.ID, Tokens: pair}, nil
}

func resolveIdentity(ctx context.Context, provider string, id *oauth.Identity, d Deps) (*store.Account, error) {
	link, err := d.Store.GetIdentity(ctx, provider, id.Subject)
	if err == nil {
		acct, err := d.Store.GetAccountByID(ctx, link.AccountID)
		if err != nil {
			return nil, d.internalError("load linked account", err, zap.Int64("account_id", link.AccountID))
		}
		return acct, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, d.internalError("load identity", err)
	}

	email := normalizeEmail(id.Email)
	if email == "" || !id.EmailVerified {
		// An unverified address could claim someone else's account.
		d.Metrics.Inc(metrics.MetricOAuthFailure)
		return nil, d.Errors.InvalidCredentials
	}

	now := d.Now()
	var (
		acct    *store.Account
		created bool
	)
	err = d.Store.WithTx(ctx, func(ctx context.Context, q store.Queries) error {
		existing, err := q.GetAccountByEmail(ctx, email)
		switch {
		case err == nil:
			if !existing.EmailVerified {
				// Whoever registered the address never proved owning it.
				return errUnverifiedMatch
			}
			acct = existing
		case errors.Is(err, store.ErrNotFound):
			acct = &store.Account{
				Email:         email,
				Role:          d.Settings.DefaultRole,
				Active:        true,
				EmailVerified: true,
				CreatedAt:     now,
			}
			if err := q.CreateAccount(ctx, acct); err != nil {
				return err
			}
			created = true
		default:
			return err
		}
		return q.LinkIdentity(ctx, &store.ExternalIdentity{
			Provider:  provider,
			Subject:   id.Subject,
			AccountID: acct.ID,
			Email:     email,
			CreatedAt: now,
		})
	})
	if err != nil {
		if errors.Is(err, errUnverifiedMatch) || errors.Is(err, store.ErrConflict) {
			d.Metrics.Inc(metrics.MetricOAuthFailure)
			return nil, d.Errors.AccountExists
		}
		return nil, d.internalError("link identity", err, zap.String("provider", provider))
	}
	if created {
		d.Metrics.Inc(metrics.MetricRegisterSuccess)
	}
	return acct, nil
}

var errUnverifiedMatch = errors.New("email matches an unverified account")
