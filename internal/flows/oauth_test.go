package flows

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/authcore/oauth"
)

func TestOAuthUnknownProvider(t *testing.T) {
	h := newHarness(t)
	if _, err := RunBeginOAuth(context.Background(), "nope", h.deps); !errors.Is(err, h.deps.Errors.OAuthProviderUnknown) {
		t.Fatalf("expected OAuthProviderUnknown, got %v", err)
	}
	if _, err := RunCompleteOAuth(context.Background(), "nope", "s", "c", h.deps); !errors.Is(err, h.deps.Errors.OAuthProviderUnknown) {
		t.Fatalf("expected OAuthProviderUnknown, got %v", err)
	}
}

func TestOAuthCreatesThenReusesAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.provider.identity = oauth.Identity{Provider: "fake", Subject: "sub-1", Email: "O@Example.com", EmailVerified: true}

	redirect, err := RunBeginOAuth(ctx, "fake", h.deps)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if redirect.State == "" || redirect.URL == "" {
		t.Fatalf("unexpected redirect %+v", redirect)
	}

	if _, err := RunCompleteOAuth(ctx, "fake", "forged", "good-code", h.deps); !errors.Is(err, h.deps.Errors.InvalidOAuthState) {
		t.Fatalf("forged state, got %v", err)
	}
	first, err := RunCompleteOAuth(ctx, "fake", redirect.State, "good-code", h.deps)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := RunCompleteOAuth(ctx, "fake", redirect.State, "good-code", h.deps); !errors.Is(err, h.deps.Errors.InvalidOAuthState) {
		t.Fatalf("state must be single use, got %v", err)
	}

	acct, err := h.store.GetAccountByID(ctx, first.AccountID)
	if err != nil || acct.Email != "o@example.com" || !acct.EmailVerified || acct.PasswordHash != "" {
		t.Fatalf("unexpected account %+v %v", acct, err)
	}

	redirect, err = RunBeginOAuth(ctx, "fake", h.deps)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	second, err := RunCompleteOAuth(ctx, "fake", redirect.State, "good-code", h.deps)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if second.AccountID != first.AccountID {
		t.Fatalf("same subject must map to the same account: %d vs %d", first.AccountID, second.AccountID)
	}
	if _, err := RunVerifyAccess(ctx, second.Tokens.AccessToken, h.deps); err != nil {
		t.Fatalf("oauth tokens must verify: %v", err)
	}

	// A password login for an account created this way always fails.
	if _, err := RunLogin(ctx, LoginRequest{Identifier: "o@example.com", Password: "password1"}, h.deps); !errors.Is(err, h.deps.Errors.InvalidCredentials) {
		t.Fatalf("password login on oauth-only account, got %v", err)
	}
}

func TestOAuthLinksVerifiedAccountOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.register(t, "a@example.com", "alice", "password1")
	h.provider.identity = oauth.Identity{Provider: "fake", Subject: "sub-a", Email: "a@example.com", EmailVerified: true}

	redirect, _ := RunBeginOAuth(ctx, "fake", h.deps)
	if _, err := RunCompleteOAuth(ctx, "fake", redirect.State, "good-code", h.deps); !errors.Is(err, h.deps.Errors.AccountExists) {
		t.Fatalf("unverified local account must not be linked, got %v", err)
	}

	if err := h.store.MarkEmailVerified(ctx, id); err != nil {
		t.Fatalf("mark verified: %v", err)
	}
	redirect, _ = RunBeginOAuth(ctx, "fake", h.deps)
	res, err := RunCompleteOAuth(ctx, "fake", redirect.State, "good-code", h.deps)
	if err != nil || res.AccountID != id {
		t.Fatalf("verified account must be linked, got %+v %v", res, err)
	}
}

func TestOAuthRejectsUnverifiedProviderEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.provider.identity = oauth.Identity{Provider: "fake", Subject: "sub-x", Email: "x@example.com"}

	redirect, _ := RunBeginOAuth(ctx, "fake", h.deps)
	if _, err := RunCompleteOAuth(ctx, "fake", redirect.State, "good-code", h.deps); !errors.Is(err, h.deps.Errors.InvalidCredentials) {
		t.Fatalf("expected InvalidCredentials, got %v", err)
	}
	redirect, _ = RunBeginOAuth(ctx, "fake", h.deps)
	if _, err := RunCompleteOAuth(ctx, "fake", redirect.State, "bad-code", h.deps); !errors.Is(err, h.deps.Errors.InvalidCredentials) {
		t.Fatalf("failed exchange, got %v", err)
	}
}
