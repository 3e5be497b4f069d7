package flows

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/store"
)

// TokenPair is the result of every successful sign-in or rotation. Both
// tokens share JTI.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	JTI              string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Claims is the verified view of a token.
type Claims struct {
	AccountID int64
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func claimsFrom(c *jwt.Claims) *Claims {
	out := &Claims{AccountID: c.UID, JTI: c.ID}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}

// RunIssue signs a new access/refresh pair for accountID and persists the
// refresh record. Only the SHA-256 of the refresh token is stored.
func RunIssue(ctx context.Context, accountID int64, d Deps) (*TokenPair, error) {
	return issueWith(ctx, d.Store, accountID, d)
}

func issueWith(ctx context.Context, q store.Queries, accountID int64, d Deps) (*TokenPair, error) {
	jti := d.NewID()
	access, accessExp, err := d.Tokens.Sign(jwt.KindAccess, accountID, jti)
	if err != nil {
		return nil, d.internalError("sign access token", err, zap.Int64("account_id", accountID))
	}
	refresh, refreshExp, err := d.Tokens.Sign(jwt.KindRefresh, accountID, jti)
	if err != nil {
		return nil, d.internalError("sign refresh token", err, zap.Int64("account_id", accountID))
	}

	rec := &store.RefreshToken{
		Token:     internal.HashToken(refresh),
		AccountID: accountID,
		JTI:       jti,
		ExpiresAt: refreshExp,
		CreatedAt: d.Now(),
	}
	if err := q.SaveRefreshToken(ctx, rec); err != nil {
		return nil, d.internalError("save refresh token", err, zap.Int64("account_id", accountID))
	}

	d.Metrics.Inc(metrics.MetricTokenIssued)
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		JTI:              jti,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// RunVerifyAccess checks signature and expiry, then the revocation index and
// the account's valid-since marker. Lookup failures reject the token.
func RunVerifyAccess(ctx context.Context, token string, d Deps) (*Claims, error) {
	start := time.Now()
	defer func() { d.Metrics.Observe(metrics.MetricVerifyAccessLatency, time.Since(start)) }()

	parsed, err := d.Tokens.Parse(jwt.KindAccess, token)
	if err != nil {
		d.Metrics.Inc(metrics.MetricAccessRejected)
		return nil, d.Errors.InvalidToken
	}
	claims := claimsFrom(parsed)

	revoked, err := isRevoked(ctx, claims, d)
	if err != nil {
		d.Logger.Warn("revocation lookup failed, rejecting token", zap.String("jti", claims.JTI), zap.Error(err))
		d.Metrics.Inc(metrics.MetricAccessRejected)
		return nil, d.Errors.InvalidToken
	}
	if revoked {
		d.Metrics.Inc(metrics.MetricAccessRevokedRejected)
		return nil, d.Errors.InvalidToken
	}
	return claims, nil
}

func isRevoked(ctx context.Context, c *Claims, d Deps) (bool, error) {
	if d.Revocations == nil {
		// Without the shared index the relational store is authoritative.
		revoked, err := d.Store.IsTokenRevoked(ctx, c.JTI, d.Now())
		if err != nil || revoked {
			return revoked, err
		}
		acct, err := d.Store.GetAccountByID(ctx, c.AccountID)
		if err != nil {
			return false, err
		}
		return issuedBefore(c.IssuedAt, acct.PasswordChangedAt), nil
	}

	revoked, err := d.Revocations.IsRevoked(ctx, c.JTI)
	if err != nil || revoked {
		return revoked, err
	}
	since, err := d.Revocations.ValidSince(ctx, c.AccountID)
	if err != nil {
		return false, err
	}
	return issuedBefore(c.IssuedAt, since), nil
}

// issuedBefore compares at second precision, the resolution of iat.
func issuedBefore(iat, marker time.Time) bool {
	if marker.IsZero() {
		return false
	}
	return iat.Unix() < marker.Unix()
}

// RunVerifyRefresh checks the token and that its record still exists for the
// same account and jti.
func RunVerifyRefresh(ctx context.Context, token string, d Deps) (*Claims, error) {
	parsed, err := d.Tokens.Parse(jwt.KindRefresh, token)
	if err != nil {
		return nil, d.Errors.InvalidRefreshToken
	}
	claims := claimsFrom(parsed)

	rec, err := d.Store.GetRefreshToken(ctx, internal.HashToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, d.Errors.InvalidRefreshToken
		}
		return nil, d.internalError("load refresh token", err)
	}
	if rec.AccountID != claims.AccountID || rec.JTI != claims.JTI {
		return nil, d.Errors.InvalidRefreshToken
	}
	return claims, nil
}

// RunRevoke records jti as revoked. Repeating the call is harmless.
func RunRevoke(ctx context.Context, accountID int64, jti string, kind store.TokenType, d Deps) error {
	if accountID <= 0 || jti == "" {
		return d.Errors.InvalidFormat("token_id")
	}
	if kind != store.TokenAccess && kind != store.TokenRefresh {
		return d.Errors.InvalidFormat("token_type")
	}
	rec := store.RevokedToken{
		AccountID: accountID,
		TokenID:   jti,
		TokenType: kind,
		ExpiresAt: d.Now().Add(d.Settings.RevocationTTL),
	}
	if err := revoke(ctx, d.Store, []store.RevokedToken{rec}, d); err != nil {
		return err
	}
	d.emit(ctx, EventTokenRevoked, accountID, jti, nil, map[string]string{"type": string(kind)})
	return nil
}

func revoke(ctx context.Context, q store.Queries, recs []store.RevokedToken, d Deps) error {
	if len(recs) == 0 {
		return nil
	}
	if err := q.InsertRevokedTokens(ctx, recs); err != nil {
		return d.internalError("insert revoked tokens", err)
	}
	if err := markRevoked(ctx, recs, d); err != nil {
		return err
	}
	for range recs {
		d.Metrics.Inc(metrics.MetricTokenRevoked)
	}
	return nil
}

func markRevoked(ctx context.Context, recs []store.RevokedToken, d Deps) error {
	if d.Revocations == nil {
		return nil
	}
	jtis := make([]string, 0, len(recs))
	for _, r := range recs {
		jtis = append(jtis, r.TokenID)
	}
	if err := d.Revocations.MarkRevoked(ctx, jtis...); err != nil {
		return d.internalError("index revoked tokens", err)
	}
	return nil
}

// RunRefresh rotates a refresh token. Concurrent calls with the same token
// race on deleting its record; exactly one wins and the rest fail.
func RunRefresh(ctx context.Context, token string, d Deps) (*TokenPair, error) {
	parsed, err := d.Tokens.Parse(jwt.KindRefresh, token)
	if err != nil {
		d.Metrics.Inc(metrics.MetricRefreshFailure)
		return nil, d.Errors.InvalidRefreshToken
	}
	claims := claimsFrom(parsed)

	if err := d.Limits.Refresh(ctx, claims.AccountID); err != nil {
		d.Metrics.Inc(metrics.MetricRefreshRateLimited)
		return nil, d.rateLimited(err)
	}

	if _, err := RunVerifyRefresh(ctx, token, d); err != nil {
		if errors.Is(err, d.Errors.InvalidRefreshToken) {
			d.Metrics.Inc(metrics.MetricRefreshReuseDetected)
			d.emit(ctx, EventRefreshReuse, claims.AccountID, claims.JTI, err, nil)
		}
		d.Metrics.Inc(metrics.MetricRefreshFailure)
		return nil, err
	}

	deleted, err := d.Store.DeleteRefreshToken(ctx, internal.HashToken(token))
	if err != nil {
		return nil, d.internalError("delete refresh token", err, zap.Int64("account_id", claims.AccountID))
	}
	if !deleted {
		d.Metrics.Inc(metrics.MetricRefreshReuseDetected)
		d.Metrics.Inc(metrics.MetricRefreshFailure)
		d.emit(ctx, EventRefreshReuse, claims.AccountID, claims.JTI, d.Errors.InvalidRefreshToken, map[string]string{"reason": "lost_race"})
		return nil, d.Errors.InvalidRefreshToken
	}

	old := store.RevokedToken{
		AccountID: claims.AccountID,
		TokenID:   claims.JTI,
		TokenType: store.TokenRefresh,
		ExpiresAt: d.Now().Add(d.Settings.RevocationTTL),
	}
	if err := revoke(ctx, d.Store, []store.RevokedToken{old}, d); err != nil {
		return nil, err
	}

	pair, err := RunIssue(ctx, claims.AccountID, d)
	if err != nil {
		return nil, err
	}
	d.Metrics.Inc(metrics.MetricRefreshSuccess)
	d.emit(ctx, EventRefreshRotated, claims.AccountID, pair.JTI, nil, map[string]string{"previous_jti": claims.JTI})
	return pair, nil
}

// RunLogout revokes the access token and, when given, the refresh token.
// Problems with the refresh token are logged and do not fail the logout.
func RunLogout(ctx context.Context, accessToken, refreshToken string, d Deps) error {
	claims, err := RunVerifyAccess(ctx, accessToken, d)
	if err != nil {
		return err
	}

	now := d.Now()
	recs := []store.RevokedToken{{
		AccountID: claims.AccountID,
		TokenID:   claims.JTI,
		TokenType: store.TokenAccess,
		ExpiresAt: now.Add(d.Settings.RevocationTTL),
	}}
	if err := revoke(ctx, d.Store, recs, d); err != nil {
		return err
	}

	if refreshToken != "" {
		logoutRefresh(ctx, claims.AccountID, refreshToken, d)
	}

	d.Metrics.Inc(metrics.MetricLogout)
	d.emit(ctx, EventLogout, claims.AccountID, claims.JTI, nil, nil)
	return nil
}

func logoutRefresh(ctx context.Context, accountID int64, token string, d Deps) {
	rc, err := RunVerifyRefresh(ctx, token, d)
	if err != nil {
		d.Logger.Info("logout: refresh token not revoked", zap.Int64("account_id", accountID), zap.Error(err))
		return
	}
	if rc.AccountID != accountID {
		d.Logger.Info("logout: refresh token belongs to another account", zap.Int64("account_id", accountID))
		return
	}
	rec := store.RevokedToken{
		AccountID: accountID,
		TokenID:   rc.JTI,
		TokenType: store.TokenRefresh,
		ExpiresAt: d.Now().Add(d.Settings.RevocationTTL),
	}
	if err := revoke(ctx, d.Store, []store.RevokedToken{rec}, d); err != nil {
		d.Logger.Info("logout: refresh revocation failed", zap.Int64("account_id", accountID), zap.Error(err))
		return
	}
	if _, err := d.Store.DeleteRefreshToken(ctx, internal.HashToken(token)); err != nil {
		d.Logger.Info("logout: refresh record not deleted", zap.Int64("account_id", accountID), zap.Error(err))
	}
}

// revokeAllRefresh enumerates the account's refresh records inside q,
// records a revocation for each and deletes them. It returns the revoked
// records so the caller can index them after commit.
func revokeAllRefresh(ctx context.Context, q store.Queries, accountID int64, d Deps) ([]store.RevokedToken, error) {
	tokens, err := q.ListRefreshTokens(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}
	exp := d.Now().Add(d.Settings.RevocationTTL)
	recs := make([]store.RevokedToken, 0, len(tokens))
	for _, t := range tokens {
		recs = append(recs, store.RevokedToken{
			AccountID: accountID,
			TokenID:   t.JTI,
			TokenType: store.TokenRefresh,
			ExpiresAt: exp,
		})
	}
	if err := q.InsertRevokedTokens(ctx, recs); err != nil {
		return nil, err
	}
	if err := q.DeleteRefreshTokensForAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return recs, nil
}
