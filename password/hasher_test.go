package password

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func fastConfig() Config {
	return Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func TestHasherVerifiesLegacyBcrypt(t *testing.T) {
	h, err := New(fastConfig())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	legacy, err := bcrypt.GenerateFromPassword([]byte("Legacy-Pass1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error: %v", err)
	}

	ok, err := h.Verify("Legacy-Pass1", string(legacy))
	if err != nil || !ok {
		t.Fatalf("expected bcrypt hash to verify, ok=%v err=%v", ok, err)
	}

	ok, err = h.Verify("Legacy-Pass2", string(legacy))
	if err != nil || ok {
		t.Fatalf("expected mismatch without error, ok=%v err=%v", ok, err)
	}

	upgrade, err := h.NeedsUpgrade(string(legacy))
	if err != nil || !upgrade {
		t.Fatalf("expected bcrypt hash to need upgrade, got %v err=%v", upgrade, err)
	}
}

func TestHasherArgonRoundTrip(t *testing.T) {
	h, err := New(fastConfig())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	hash, err := h.Hash("Correct-Horse1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("unexpected hash prefix: %s", hash)
	}

	ok, err := h.Verify("Correct-Horse1", hash)
	if err != nil || !ok {
		t.Fatalf("expected verify success, ok=%v err=%v", ok, err)
	}

	upgrade, err := h.NeedsUpgrade(hash)
	if err != nil || upgrade {
		t.Fatalf("expected current hash not to need upgrade, got %v err=%v", upgrade, err)
	}
}

func TestHasherRejectsGarbageBcrypt(t *testing.T) {
	h, err := New(fastConfig())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	_, err = h.Verify("whatever-pass", "$2a$10$short")
	if !errors.Is(err, ErrMalformedHash) {
		t.Fatalf("expected ErrMalformedHash, got %v", err)
	}
}

func TestHashLengthBoundsWrapSentinel(t *testing.T) {
	h, err := New(fastConfig())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	if _, err := h.Hash("short"); !errors.Is(err, ErrPasswordLength) {
		t.Fatalf("expected ErrPasswordLength, got %v", err)
	}
}
