package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrStoreUnavailable wraps Redis failures surfaced by Reset.
var ErrStoreUnavailable = errors.New("rate: store unavailable")

// fixedWindow increments KEYS[1] and starts its window on the first hit.
// A key left without a TTL is repaired so the window always closes.
var fixedWindow = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// Policy is a named ceiling over a fixed window.
type Policy struct {
	Name   string
	Max    int
	Window time.Duration
}

// Result describes the counter state after a call.
type Result struct {
	Allowed   bool
	Count     int64
	Remaining int
	ResetIn   time.Duration
	// FailOpen is set when the store was unreachable and the call was allowed anyway.
	FailOpen bool
}

// Config holds limiter wiring.
type Config struct {
	Prefix string
	Logger *zap.Logger
	// OnFailOpen is invoked whenever a store error is swallowed.
	OnFailOpen func(policy string)
}

// Limiter evaluates policies against Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a Limiter backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "authcore"
	}
	return &Limiter{redis: redisClient, config: cfg}
}

// Key returns the Redis key used for policy p and caller key k.
func (l *Limiter) Key(p Policy, k string) string {
	return l.config.Prefix + ":rl:" + p.Name + ":" + k
}

// Check counts one attempt and reports whether it fits in the window.
func (l *Limiter) Check(ctx context.Context, p Policy, key string) Result {
	raw, err := fixedWindow.Run(ctx, l.redis, []string{l.Key(p, key)}, p.Window.Milliseconds()).Result()
	if err != nil {
		return l.failOpen(p, key, err)
	}

	vals, ok := raw.([]interface{})
	if !ok || len(vals) != 2 {
		return l.failOpen(p, key, fmt.Errorf("unexpected script reply %T", raw))
	}
	count, _ := vals[0].(int64)
	ttl, _ := vals[1].(int64)

	return newResult(p, count, time.Duration(ttl)*time.Millisecond, count <= int64(p.Max))
}

// Reset clears the counter for key.
func (l *Limiter) Reset(ctx context.Context, p Policy, key string) error {
	if err := l.redis.Del(ctx, l.Key(p, key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (l *Limiter) failOpen(p Policy, key string, err error) Result {
	l.config.Logger.Warn("rate limiter store error, allowing request",
		zap.String("policy", p.Name),
		zap.String("key", key),
		zap.Error(err),
	)
	if l.config.OnFailOpen != nil {
		l.config.OnFailOpen(p.Name)
	}
	return Result{Allowed: true, Remaining: p.Max, FailOpen: true}
}

func newResult(p Policy, count int64, resetIn time.Duration, allowed bool) Result {
	remaining := p.Max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: allowed, Count: count, Remaining: remaining, ResetIn: resetIn}
}
