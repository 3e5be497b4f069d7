package flows

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestTwoFactorSetupStateMachine(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.register(t, "a@example.com", "alice", "password1")

	if err := RunActivateTwoFactor(ctx, id, "123456", h.deps); !errors.Is(err, h.deps.Errors.TwoFactorNotInitialized) {
		t.Fatalf("activate before start, got %v", err)
	}

	setup, err := RunStartTwoFactorSetup(ctx, id, h.deps)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(setup.BackupCodes) != 8 || setup.Secret == "" {
		t.Fatalf("unexpected setup %+v", setup)
	}
	if !strings.HasPrefix(setup.ProvisioningURI, "otpauth://totp/Acme:a@example.com?") {
		t.Fatalf("unexpected uri %s", setup.ProvisioningURI)
	}

	// Restarting before activation replaces the secret.
	again, err := RunStartTwoFactorSetup(ctx, id, h.deps)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if again.Secret == setup.Secret {
		t.Fatal("restart must issue a new secret")
	}

	if err := RunActivateTwoFactor(ctx, id, wrongCode(currentCode(t, again.Secret)), h.deps); !errors.Is(err, h.deps.Errors.Invalid2FACode) {
		t.Fatalf("wrong code, got %v", err)
	}
	if err := RunActivateTwoFactor(ctx, id, currentCode(t, again.Secret), h.deps); err != nil {
		t.Fatalf("activate: %v", err)
	}
	sec, err := h.store.GetTwoFactor(ctx, id)
	if err != nil || !sec.Enabled || sec.EnabledAt.IsZero() {
		t.Fatalf("secret not enabled: %+v %v", sec, err)
	}

	if _, err := RunStartTwoFactorSetup(ctx, id, h.deps); !errors.Is(err, h.deps.Errors.TwoFactorAlreadyEnabled) {
		t.Fatalf("start when enabled, got %v", err)
	}
	if err := RunActivateTwoFactor(ctx, id, currentCode(t, again.Secret), h.deps); !errors.Is(err, h.deps.Errors.TwoFactorAlreadyEnabled) {
		t.Fatalf("activate when enabled, got %v", err)
	}
}

func TestRegenerateBackupCodesInvalidatesOldBatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.register(t, "a@example.com", "alice", "password1")
	setup := enableTwoFactor(t, h, id)

	if _, err := RunRegenerateBackupCodes(ctx, id, setup.BackupCodes[0], h.deps); !errors.Is(err, h.deps.Errors.Invalid2FACode) {
		t.Fatalf("backup code must not authorize regeneration, got %v", err)
	}
	codes, err := RunRegenerateBackupCodes(ctx, id, currentCode(t, setup.Secret), h.deps)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if len(codes) != 8 {
		t.Fatalf("expected 8 codes, got %d", len(codes))
	}

	if _, err := RunLogin(ctx, LoginRequest{Identifier: "alice", Password: "password1", Code: setup.BackupCodes[1]}, h.deps); !errors.Is(err, h.deps.Errors.Invalid2FACode) {
		t.Fatalf("old batch must be dead, got %v", err)
	}
	if _, err := RunLogin(ctx, LoginRequest{Identifier: "alice", Password: "password1", Code: codes[0]}, h.deps); err != nil {
		t.Fatalf("new batch must work: %v", err)
	}
}

func TestDisableTwoFactor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.register(t, "a@example.com", "alice", "password1")

	if err := RunDisableTwoFactor(ctx, id, "123456", h.deps); !errors.Is(err, h.deps.Errors.TwoFactorNotEnabled) {
		t.Fatalf("disable when off, got %v", err)
	}
	setup := enableTwoFactor(t, h, id)

	if err := RunDisableTwoFactor(ctx, id, "0000000000", h.deps); !errors.Is(err, h.deps.Errors.Invalid2FACode) {
		t.Fatalf("unknown backup code, got %v", err)
	}
	if err := RunDisableTwoFactor(ctx, id, setup.BackupCodes[2], h.deps); err != nil {
		t.Fatalf("disable with backup code: %v", err)
	}
	if _, err := RunLogin(ctx, LoginRequest{Identifier: "alice", Password: "password1"}, h.deps); err != nil {
		t.Fatalf("login without code after disable: %v", err)
	}
	if _, err := RunRegenerateBackupCodes(ctx, id, "123456", h.deps); !errors.Is(err, h.deps.Errors.TwoFactorNotEnabled) {
		t.Fatalf("regenerate when off, got %v", err)
	}
}

func TestTwoFactorAttemptsLimited(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.register(t, "a@example.com", "alice", "password1")
	setup := enableTwoFactor(t, h, id)
	h.deps.Limits = newDefaultLimits(t, h)

	for i := 0; i < 5; i++ {
		if err := RunDisableTwoFactor(ctx, id, wrongCode(currentCode(t, setup.Secret)), h.deps); !errors.Is(err, h.deps.Errors.Invalid2FACode) {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	if err := RunDisableTwoFactor(ctx, id, currentCode(t, setup.Secret), h.deps); !isRateLimited(err) {
		t.Fatalf("6th attempt within the window must be limited, got %v", err)
	}
}
