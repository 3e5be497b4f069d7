package flows

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	pqtotp "github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/internal/totp"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/mail"
	"github.com/MrEthical07/authcore/oauth"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/store/memory"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeExchanger struct {
	mu        sync.Mutex
	identity  oauth.Identity
	lastNonce string
}

func (f *fakeExchanger) AuthCodeURL(state, nonce, verifier string) string {
	f.mu.Lock()
	f.lastNonce = nonce
	f.mu.Unlock()
	return "https://idp.example.com/authorize?state=" + state
}

func (f *fakeExchanger) Exchange(_ context.Context, code, nonce, verifier string) (*oauth.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if code != "good-code" || nonce != f.lastNonce || verifier == "" {
		return nil, oauth.ErrExchange
	}
	id := f.identity
	return &id, nil
}

type harness struct {
	deps     Deps
	store    *memory.Store
	outbox   *mail.Outbox
	clock    *testClock
	mr       *miniredis.Miniredis
	metrics  *metrics.Metrics
	provider *fakeExchanger
}

func testHasher(t *testing.T) *password.Hasher {
	t.Helper()
	h, err := password.New(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("password.New: %v", err)
	}
	return h
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := &testClock{t: time.Now().Truncate(time.Second)}
	tokens, err := jwt.NewManager(jwt.Config{
		AccessSecret:  []byte("access-secret-access-secret-0123456789"),
		RefreshSecret: []byte("refresh-secret-refresh-secret-0123456789"),
		AccessTTL:     time.Hour,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "authcore-test",
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("jwt.NewManager: %v", err)
	}

	policies := limiters.DefaultConfig()
	policies.TwoFactor.Max = 100

	h := &harness{
		store:    memory.New(),
		outbox:   mail.NewOutbox(),
		clock:    clock,
		mr:       mr,
		metrics:  metrics.New(metrics.Config{Enabled: true}),
		provider: &fakeExchanger{},
	}
	h.deps = Deps{
		Store:       h.store,
		Hasher:      testHasher(t),
		Tokens:      tokens,
		Revocations: stores.NewRevocationIndex(client, "t", 8*24*time.Hour, 64, time.Minute),
		Limits:      limiters.New(rate.New(client, rate.Config{Prefix: "t"}), policies),
		TOTP:        totp.New(totp.Config{Issuer: "Acme"}),
		Mail:        h.outbox,
		OAuthStates: stores.NewOAuthStateStore(client, "t", time.Minute),
		Providers:   map[string]oauth.Exchanger{"fake": h.provider},
		Metrics:     h.metrics,
		Now:         clock.Now,
		Settings: Settings{
			RevocationTTL:   8 * 24 * time.Hour,
			BackupCodeLogin: true,
		},
	}.Normalize()
	return h
}

// newDefaultLimits returns the stock policies on h's Redis.
func newDefaultLimits(t *testing.T, h *harness) *limiters.Set {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: h.mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return limiters.New(rate.New(client, rate.Config{Prefix: "strict"}), limiters.DefaultConfig())
}

func (h *harness) register(t *testing.T, email, username, pw string) int64 {
	t.Helper()
	res, err := RunRegister(context.Background(), RegisterRequest{Email: email, Username: username, Password: pw}, h.deps)
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return res.AccountID
}

func (h *harness) login(t *testing.T, ident, pw string) *TokenPair {
	t.Helper()
	res, err := RunLogin(context.Background(), LoginRequest{Identifier: ident, Password: pw}, h.deps)
	if err != nil {
		t.Fatalf("login %s: %v", ident, err)
	}
	return res.Tokens
}

func currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := pqtotp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	return code
}

func isRateLimited(err error) bool {
	return errors.Is(err, limiters.ErrExceeded)
}
