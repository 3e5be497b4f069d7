package flows

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/store"
)

func TestLoginByUsernameAndEmail(t *testing.T) {
	h := newHarness(t)
	id := h.register(t, "a@example.com", "alice", "password1")

	for _, ident := range []string{"alice", "A@Example.com"} {
		res, err := RunLogin(context.Background(), LoginRequest{Identifier: ident, Password: "password1"}, h.deps)
		if err != nil {
			t.Fatalf("login %q: %v", ident, err)
		}
		if res.AccountID != id || res.Tokens == nil || res.RequiresTwoFactor {
			t.Fatalf("unexpected result %+v", res)
		}
	}
}

func TestLoginFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "a@example.com", "alice", "password1")

	cases := []struct {
		name  string
		ident string
		pw    string
		want  error
	}{
		{"unknown user", "bob", "password1", h.deps.Errors.InvalidCredentials},
		{"wrong password", "alice", "password2", h.deps.Errors.InvalidCredentials},
		{"empty password", "alice", "", h.deps.Errors.InvalidCredentials},
	}
	for _, tc := range cases {
		_, err := RunLogin(ctx, LoginRequest{Identifier: tc.ident, Password: tc.pw}, h.deps)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	if _, err := RunLogin(ctx, LoginRequest{Identifier: "a b", Password: "password1"}, h.deps); err == nil {
		t.Fatal("malformed username must be rejected")
	}
	if got := h.metrics.Value(metrics.MetricLoginFailure); got != 4 {
		t.Fatalf("expected 4 failures counted, got %d", got)
	}
}

func TestLoginLockoutAfterFiveFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "a@example.com", "alice", "password1")

	for i := 0; i < 5; i++ {
		if _, err := RunLogin(ctx, LoginRequest{Identifier: "alice", Password: "wrong-pass1"}, h.deps); !errors.Is(err, h.deps.Errors.InvalidCredentials) {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	_, err := RunLogin(ctx, LoginRequest{Identifier: "alice", Password: "password1"}, h.deps)
	if !isRateLimited(err) {
		t.Fatalf("correct password must be refused while locked, got %v", err)
	}

	h.mr.FastForward(15 * time.Minute)
	if _, err := RunLogin(ctx, LoginRequest{Identifier: "alice", Password: "password1"}, h.deps); err != nil {
		t.Fatalf("lock must lift after the window: %v", err)
	}
}

func TestLoginConcurrentGuessesCapped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "a@example.com", "alice", "password1")

	var (
		wg          sync.WaitGroup
		evaluated   atomic.Int64
		rateLimited atomic.Int64
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := RunLogin(ctx, LoginRequest{Identifier: "alice", Password: "wrong-pass1"}, h.deps)
			switch {
			case errors.Is(err, h.deps.Errors.InvalidCredentials):
				evaluated.Add(1)
			case isRateLimited(err):
				rateLimited.Add(1)
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	if evaluated.Load() != 5 || rateLimited.Load() != 35 {
		t.Fatalf("expected 5 password checks and 35 rejections, got %d and %d", evaluated.Load(), rateLimited.Load())
	}
	if got := h.metrics.Value(metrics.MetricLoginFailure); got != 5 {
		t.Fatalf("expected 5 counted failures, got %d", got)
	}
}

func TestLoginSuccessClearsFailureCount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "a@example.com", "alice", "password1")

	for round := 0; round < 3; round++ {
		for i := 0; i < 4; i++ {
			_, _ = RunLogin(ctx, LoginRequest{Identifier: "alice", Password: "wrong-pass1"}, h.deps)
		}
		h.login(t, "alice", "password1")
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	acct := &store.Account{Email: "d@example.com", Username: "dora", Role: "user"}
	hash, err := h.deps.Hasher.Hash("password1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	acct.PasswordHash = hash
	if err := h.store.CreateAccount(ctx, acct); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := RunLogin(ctx, LoginRequest{Identifier: "dora", Password: "password1"}, h.deps); !errors.Is(err, h.deps.Errors.AccountDisabled) {
		t.Fatalf("expected AccountDisabled, got %v", err)
	}
	if _, err := RunLogin(ctx, LoginRequest{Identifier: "dora", Password: "nope-nope1"}, h.deps); !errors.Is(err, h.deps.Errors.InvalidCredentials) {
		t.Fatalf("wrong password on a disabled account must look like any other, got %v", err)
	}
}

func enableTwoFactor(t *testing.T, h *harness, id int64) *TwoFactorSetup {
	t.Helper()
	ctx := context.Background()
	setup, err := RunStartTwoFactorSetup(ctx, id, h.deps)
	if err != nil {
		t.Fatalf("start setup: %v", err)
	}
	if err := RunActivateTwoFactor(ctx, id, currentCode(t, setup.Secret), h.deps); err != nil {
		t.Fatalf("activate: %v", err)
	}
	return setup
}

func TestLoginWithTwoFactor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.register(t, "a@example.com", "alice", "password1")
	setup := enableTwoFactor(t, h, id)

	res, err := RunLogin(ctx, LoginRequest{Identifier: "alice", Password: "password1"}, h.deps)
	if !errors.Is(err, h.deps.Errors.TwoFactorRequired) || res == nil || !res.RequiresTwoFactor || res.Tokens != nil {
		t.Fatalf("expected two-factor challenge, got %+v %v", res, err)
	}

	if _, err := RunLogin(ctx, LoginRequest{Identifier: "alice", Password: "password1", Code: wrongCode(currentCode(t, setup.Secret))}, h.deps); !errors.Is(err, h.deps.Errors.Invalid2FACode) {
		t.Fatalf("expected Invalid2FACode, got %v", err)
	}

	res, err = RunLogin(ctx, LoginRequest{Identifier: "alice", Password: "password1", Code: currentCode(t, setup.Secret)}, h.deps)
	if err != nil || res.Tokens == nil || res.UsedBackupCode {
		t.Fatalf("totp login failed: %+v %v", res, err)
	}
}

func TestLoginWithBackupCodeOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.register(t, "a@example.com", "alice", "password1")
	setup := enableTwoFactor(t, h, id)
	code := setup.BackupCodes[0]

	res, err := RunLogin(ctx, LoginRequest{Identifier: "alice", Password: "password1", Code: code}, h.deps)
	if err != nil || !res.UsedBackupCode {
		t.Fatalf("backup code login failed: %+v %v", res, err)
	}
	if _, err := RunLogin(ctx, LoginRequest{Identifier: "alice", Password: "password1", Code: code}, h.deps); !errors.Is(err, h.deps.Errors.Invalid2FACode) {
		t.Fatalf("reused backup code must fail, got %v", err)
	}
	if h.metrics.Value(metrics.MetricBackupCodeUsed) != 1 {
		t.Fatal("expected one backup code use")
	}
}

func TestLoginBackupCodeDisabledByConfig(t *testing.T) {
	h := newHarness(t)
	h.deps.Settings.BackupCodeLogin = false
	id := h.register(t, "a@example.com", "alice", "password1")
	setup := enableTwoFactor(t, h, id)

	_, err := RunLogin(context.Background(), LoginRequest{Identifier: "alice", Password: "password1", Code: setup.BackupCodes[0]}, h.deps)
	if !errors.Is(err, h.deps.Errors.Invalid2FACode) {
		t.Fatalf("backup codes must be refused at login, got %v", err)
	}
}

func TestLoginRehashesLegacyHash(t *testing.T) {
	h := newHarness(t)
	h.deps.Settings.RehashOnLogin = true
	ctx := context.Background()
	id := h.register(t, "a@example.com", "alice", "password1")

	legacy, err := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	acct, _ := h.store.GetAccountByID(ctx, id)
	if err := h.store.UpdatePassword(ctx, id, string(legacy), acct.PasswordChangedAt); err != nil {
		t.Fatalf("seed legacy hash: %v", err)
	}

	h.login(t, "alice", "password1")
	acct, _ = h.store.GetAccountByID(ctx, id)
	if acct.PasswordHash == string(legacy) {
		t.Fatal("legacy hash must be replaced after login")
	}
	if h.metrics.Value(metrics.MetricPasswordRehash) != 1 {
		t.Fatal("expected one rehash")
	}
}

// wrongCode changes the last digit of a valid code.
func wrongCode(code string) string {
	last := code[len(code)-1]
	return code[:len(code)-1] + string(rune('0'+(last-'0'+5)%10))
}
