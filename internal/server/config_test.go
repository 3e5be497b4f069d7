package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authd.yaml")
	yaml := `
addr: ":9090"
access_ttl: 30m
refresh_ttl: 240h
trusted_proxies: ["10.0.0.0/8", "192.0.2.1"]
jwt_access_secret: from-file-access-secret-0123456789abcdef
oidc:
  - name: google
    issuer_url: https://accounts.google.com
    client_id: cid
    scopes: [email, profile]
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("AUTHD_JWT_REFRESH_SECRET", "from-env-refresh-secret-0123456789abcdef")
	t.Setenv("AUTHD_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.AccessTTL != 30*time.Minute || cfg.RefreshTTL != 240*time.Hour {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.LogLevel != "debug" || cfg.JWTRefreshSecret != "from-env-refresh-secret-0123456789abcdef" {
		t.Fatalf("env values not applied: %+v", cfg)
	}
	if len(cfg.TrustedProxies) != 2 || cfg.TrustedProxies[0] != "10.0.0.0/8" {
		t.Fatalf("trusted proxies not decoded: %v", cfg.TrustedProxies)
	}
	if len(cfg.OIDC) != 1 || cfg.OIDC[0].Name != "google" || len(cfg.OIDC[0].Scopes) != 2 {
		t.Fatalf("oidc not decoded: %+v", cfg.OIDC)
	}

	ec := cfg.EngineConfig()
	if err := ec.Validate(); err != nil {
		t.Fatalf("engine config invalid: %v", err)
	}
	if ec.Tokens.RevocationTTL != 240*time.Hour {
		t.Fatalf("revocation TTL must follow refresh TTL, got %s", ec.Tokens.RevocationTTL)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}
