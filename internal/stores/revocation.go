package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// RevocationIndex answers "is this jti revoked" and "when does this account's
// token history start" without touching the relational store.
type RevocationIndex struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	cache  *expirable.LRU[string, struct{}]
}

// NewRevocationIndex keeps entries for ttl. cacheSize <= 0 disables the
// in-process cache of revoked ids.
func NewRevocationIndex(redisClient redis.UniversalClient, prefix string, ttl time.Duration, cacheSize int, cacheTTL time.Duration) *RevocationIndex {
	if prefix == "" {
		prefix = "authcore"
	}
	idx := &RevocationIndex{redis: redisClient, prefix: prefix, ttl: ttl}
	if cacheSize > 0 {
		if cacheTTL <= 0 || cacheTTL > ttl {
			cacheTTL = ttl
		}
		idx.cache = expirable.NewLRU[string, struct{}](cacheSize, nil, cacheTTL)
	}
	return idx
}

func (r *RevocationIndex) jtiKey(jti string) string {
	return r.prefix + ":rv:" + jti
}

func (r *RevocationIndex) sinceKey(accountID int64) string {
	return r.prefix + ":vs:" + strconv.FormatInt(accountID, 10)
}

// MarkRevoked records jtis as revoked.
func (r *RevocationIndex) MarkRevoked(ctx context.Context, jtis ...string) error {
	if len(jtis) == 0 {
		return nil
	}
	pipe := r.redis.Pipeline()
	for _, jti := range jtis {
		pipe.Set(ctx, r.jtiKey(jti), 1, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if r.cache != nil {
		for _, jti := range jtis {
			r.cache.Add(jti, struct{}{})
		}
	}
	return nil
}

// IsRevoked reports whether jti was revoked. Errors must be treated as
// revoked by the caller.
func (r *RevocationIndex) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if r.cache != nil {
		if _, ok := r.cache.Get(jti); ok {
			return true, nil
		}
	}
	n, err := r.redis.Exists(ctx, r.jtiKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if n > 0 && r.cache != nil {
		r.cache.Add(jti, struct{}{})
	}
	return n > 0, nil
}

// SetValidSince invalidates every token of accountID issued before t
// (second precision).
func (r *RevocationIndex) SetValidSince(ctx context.Context, accountID int64, t time.Time) error {
	if err := r.redis.Set(ctx, r.sinceKey(accountID), t.Unix(), r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// ValidSince returns the marker, or the zero time when none is set.
func (r *RevocationIndex) ValidSince(ctx context.Context, accountID int64) (time.Time, error) {
	secs, err := r.redis.Get(ctx, r.sinceKey(accountID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Unix(secs, 0), nil
}
