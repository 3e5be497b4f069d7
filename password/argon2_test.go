package password

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func boundedConfig(lo, hi int) Config {
	cfg := fastConfig()
	cfg.MinPasswordBytes = lo
	cfg.MaxPasswordBytes = hi
	return cfg
}

func mustArgon2(t *testing.T, cfg Config) *Argon2 {
	t.Helper()
	a, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	return a
}

func TestHashEncodesRawBase64PHC(t *testing.T) {
	a := mustArgon2(t, fastConfig())

	hash, err := a.Hash("encoding-check")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[3] != "m=8192,t=1,p=1" {
		t.Fatalf("unexpected PHC layout: %s", hash)
	}
	if strings.Contains(parts[4], "=") || strings.Contains(parts[5], "=") {
		t.Fatalf("salt and key must be unpadded: %s", hash)
	}
}

func TestLengthBounds(t *testing.T) {
	a := mustArgon2(t, boundedConfig(4, 12))

	cases := []struct {
		name     string
		password string
		ok       bool
	}{
		{"below min", "abc", false},
		{"at min", "abcd", true},
		{"at max", strings.Repeat("x", 12), true},
		{"above max", strings.Repeat("x", 13), false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		_, err := a.Hash(tc.password)
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrPasswordLength) {
			t.Fatalf("%s: expected ErrPasswordLength, got %v", tc.name, err)
		}
	}
}

func TestZeroBoundsUseDefaults(t *testing.T) {
	a := mustArgon2(t, fastConfig())

	if _, err := a.Hash(strings.Repeat("s", DefaultMinPasswordBytes-1)); !errors.Is(err, ErrPasswordLength) {
		t.Fatalf("expected default minimum of %d bytes, got %v", DefaultMinPasswordBytes, err)
	}
	if _, err := a.Hash(strings.Repeat("l", DefaultMaxPasswordBytes+1)); !errors.Is(err, ErrPasswordLength) {
		t.Fatalf("expected default maximum of %d bytes, got %v", DefaultMaxPasswordBytes, err)
	}
	if _, err := a.Hash(strings.Repeat("e", DefaultMaxPasswordBytes)); err != nil {
		t.Fatalf("password of exactly %d bytes must hash: %v", DefaultMaxPasswordBytes, err)
	}
}

func TestVerifyRejectsOversizedBeforeParsing(t *testing.T) {
	a := mustArgon2(t, boundedConfig(4, 12))

	_, err := a.Verify(strings.Repeat("x", 13), "not-a-phc-hash")
	if !errors.Is(err, ErrPasswordLength) {
		t.Fatalf("expected ErrPasswordLength ahead of hash parsing, got %v", err)
	}
}

func TestVerifyIgnoresMinimumForStoredHashes(t *testing.T) {
	lenient := mustArgon2(t, boundedConfig(1, 64))
	hash, err := lenient.Hash("abc")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	strict := mustArgon2(t, boundedConfig(8, 64))
	ok, err := strict.Verify("abc", hash)
	if err != nil || !ok {
		t.Fatalf("raising the minimum must not lock out existing hashes, ok=%v err=%v", ok, err)
	}
}

func TestVerifyAcceptsPaddedBase64(t *testing.T) {
	a := mustArgon2(t, fastConfig())
	hash, err := a.Hash("padding-check")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	parts := strings.Split(hash, "$")
	for i := 4; i <= 5; i++ {
		raw, err := base64.RawStdEncoding.DecodeString(parts[i])
		if err != nil {
			t.Fatalf("decode part %d: %v", i, err)
		}
		parts[i] = base64.StdEncoding.EncodeToString(raw)
	}
	padded := strings.Join(parts, "$")
	if !strings.HasSuffix(padded, "=") {
		t.Fatalf("expected a padded encoding, got %s", padded)
	}

	ok, err := a.Verify("padding-check", padded)
	if err != nil || !ok {
		t.Fatalf("padded hash must verify, ok=%v err=%v", ok, err)
	}
	upgrade, err := a.NeedsUpgrade(padded)
	if err != nil || upgrade {
		t.Fatalf("padded hash with current params must not need upgrade, got %v err=%v", upgrade, err)
	}
}

func TestMalformedHashes(t *testing.T) {
	a := mustArgon2(t, fastConfig())
	good, err := a.Hash("malformed-base")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	parts := strings.Split(good, "$")
	with := func(i int, v string) string {
		p := append([]string(nil), parts...)
		p[i] = v
		return strings.Join(p, "$")
	}

	cases := map[string]string{
		"not phc":         "not-a-phc-hash",
		"wrong algorithm": with(1, "argon2i"),
		"wrong version":   with(2, "v=18"),
		"missing version": with(2, "19"),
		"two params":      with(3, "m=8192,t=1"),
		"unknown param":   with(3, "m=8192,t=1,x=1"),
		"memory too low":  with(3, "m=1024,t=1,p=1"),
		"zero time":       with(3, "m=8192,t=0,p=1"),
		"short salt":      with(4, "AAAA"),
		"salt not base64": with(4, "!!!!"),
		"key not base64":  with(5, "%%%%"),
		"empty key":       with(5, ""),
		"bad padding":     with(5, "a==="),
	}
	for name, hash := range cases {
		if _, err := a.Verify("malformed-base", hash); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("%s: Verify expected ErrMalformedHash, got %v", name, err)
		}
		if _, err := a.NeedsUpgrade(hash); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("%s: NeedsUpgrade expected ErrMalformedHash, got %v", name, err)
		}
	}
}

func TestNeedsUpgradeByParameter(t *testing.T) {
	current := mustArgon2(t, Config{Memory: 16 * 1024, Time: 2, Parallelism: 2, SaltLength: 16, KeyLength: 32})

	cases := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"same", Config{Memory: 16 * 1024, Time: 2, Parallelism: 2, SaltLength: 16, KeyLength: 32}, false},
		{"stronger", Config{Memory: 32 * 1024, Time: 3, Parallelism: 4, SaltLength: 16, KeyLength: 32}, false},
		{"less memory", Config{Memory: 8 * 1024, Time: 2, Parallelism: 2, SaltLength: 16, KeyLength: 32}, true},
		{"fewer passes", Config{Memory: 16 * 1024, Time: 1, Parallelism: 2, SaltLength: 16, KeyLength: 32}, true},
		{"less parallelism", Config{Memory: 16 * 1024, Time: 2, Parallelism: 1, SaltLength: 16, KeyLength: 32}, true},
		{"different key length", Config{Memory: 16 * 1024, Time: 2, Parallelism: 2, SaltLength: 16, KeyLength: 16}, true},
	}
	for _, tc := range cases {
		hash, err := mustArgon2(t, tc.cfg).Hash("upgrade-check")
		if err != nil {
			t.Fatalf("%s: Hash error: %v", tc.name, err)
		}
		got, err := current.NeedsUpgrade(hash)
		if err != nil || got != tc.want {
			t.Fatalf("%s: NeedsUpgrade=%v err=%v, want %v", tc.name, got, err, tc.want)
		}
	}
}

func TestNewArgon2RejectsBadConfig(t *testing.T) {
	cases := map[string]Config{
		"low memory":     {Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16},
		"zero time":      {Memory: 8 * 1024, Time: 0, Parallelism: 1, SaltLength: 16, KeyLength: 16},
		"short salt":     {Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16},
		"short key":      {Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 8},
		"negative min":   boundedConfig(-1, 64),
		"max below min":  boundedConfig(16, 10),
		"max below dflt": boundedConfig(0, 4),
	}
	for name, cfg := range cases {
		if _, err := NewArgon2(cfg); err == nil {
			t.Fatalf("%s: expected config to be rejected", name)
		}
	}
}
