package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/mail"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/store/memory"
)

type fixture struct {
	ts     *httptest.Server
	outbox *mail.Outbox
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := authcore.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("access-secret-access-secret-0123456789")
	cfg.JWT.RefreshSecret = []byte("refresh-secret-refresh-secret-0123456789")
	cfg.Password = password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}
	cfg.Metrics.EnableLatencyHistograms = true

	outbox := mail.NewOutbox()
	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(client).
		WithStore(memory.New()).
		WithMailer(outbox).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	ts := httptest.NewServer(New(engine, nil, nil).Handler())
	t.Cleanup(ts.Close)
	return &fixture{ts: ts, outbox: outbox}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, f.ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestAccountLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/register", "", map[string]string{
		"email": "alice@example.com", "username": "alice", "password": "Secret123",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: %d", resp.StatusCode)
	}
	msg, ok := f.outbox.Last("alice@example.com", mail.KindEmailVerification)
	if !ok {
		t.Fatal("no verification mail")
	}
	resp, _ = f.do(t, http.MethodPost, "/verify-email", "", map[string]string{"email": "alice@example.com", "code": msg.Token})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("verify: %d", resp.StatusCode)
	}

	resp, body := f.do(t, http.MethodPost, "/login", "", map[string]string{"identifier": "alice", "password": "Secret123"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: %d %v", resp.StatusCode, body)
	}
	access, _ := body["access_token"].(string)
	refresh, _ := body["refresh_token"].(string)

	resp, body = f.do(t, http.MethodGet, "/me", access, nil)
	if resp.StatusCode != http.StatusOK || body["account_id"] == nil {
		t.Fatalf("me: %d %v", resp.StatusCode, body)
	}

	resp, body = f.do(t, http.MethodPost, "/refresh", "", map[string]string{"refresh_token": refresh})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: %d %v", resp.StatusCode, body)
	}
	access2, _ := body["access_token"].(string)
	refresh2, _ := body["refresh_token"].(string)

	resp, body = f.do(t, http.MethodPost, "/refresh", "", map[string]string{"refresh_token": refresh})
	if resp.StatusCode != http.StatusUnauthorized || body["code"] != authcore.CodeInvalidRefreshToken {
		t.Fatalf("reused refresh: %d %v", resp.StatusCode, body)
	}

	resp, _ = f.do(t, http.MethodPost, "/logout", access2, map[string]string{"refresh_token": refresh2})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout: %d", resp.StatusCode)
	}
	resp, _ = f.do(t, http.MethodGet, "/me", access2, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after logout: %d", resp.StatusCode)
	}
}

func TestLoginErrorsAreCoded(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/register", "", map[string]string{
		"email": "alice@example.com", "username": "alice", "password": "Secret123",
	})

	resp, body := f.do(t, http.MethodPost, "/login", "", map[string]string{"identifier": "alice", "password": "Wrong1"})
	if resp.StatusCode != http.StatusUnauthorized || body["code"] != authcore.CodeInvalidCredentials {
		t.Fatalf("unexpected %d %v", resp.StatusCode, body)
	}

	resp, body = f.do(t, http.MethodPost, "/register", "", map[string]string{
		"email": "not-an-email", "username": "bob", "password": "Secret123",
	})
	if resp.StatusCode != http.StatusBadRequest || body["code"] != authcore.CodeInvalidFormat {
		t.Fatalf("unexpected %d %v", resp.StatusCode, body)
	}
}

func TestUnknownFieldsRejected(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodPost, "/login", "", map[string]string{"user": "alice"})
	if resp.StatusCode != http.StatusBadRequest || body["code"] != authcore.CodeInvalidFormat {
		t.Fatalf("unexpected %d %v", resp.StatusCode, body)
	}
}

func TestUnknownOAuthProvider(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/oauth/nope/start", "", nil)
	if resp.StatusCode != http.StatusNotFound || body["code"] != authcore.CodeOAuthProviderUnknown {
		t.Fatalf("unexpected %d %v", resp.StatusCode, body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/login", "", map[string]string{"identifier": "ghost", "password": "Secret123"})

	resp, err := f.ts.Client().Get(f.ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), "authcore_login_failure_total 1") {
		t.Fatalf("missing login failure counter:\n%s", buf.String())
	}
}
