package authcore

import (
	"context"

	"go.uber.org/zap"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/store"
)

// Engine runs every authentication flow. It is safe for concurrent use once
// built.
type Engine struct {
	config  Config
	flows   flows.Service
	metrics *metrics.Metrics
	audit   *audit.Dispatcher
	logger  *zap.Logger

	providers []string
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
	e.logger.Debug("engine closed", zap.Uint64("audit_dropped", e.audit.Dropped()))
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the counters and latency histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{}
	}
	return e.metrics.Snapshot()
}

// IssueTokens mints a fresh access/refresh pair for accountID.
func (e *Engine) IssueTokens(ctx context.Context, accountID int64) (*TokenPair, error) {
	return e.flows.Issue(ctx, accountID)
}

// VerifyAccess checks signature, expiry, revocation and the account's
// valid-since marker. Any failure is ErrInvalidToken.
func (e *Engine) VerifyAccess(ctx context.Context, token string) (*Claims, error) {
	return e.flows.VerifyAccess(ctx, token)
}

// VerifyRefresh checks a refresh token against the store without consuming it.
func (e *Engine) VerifyRefresh(ctx context.Context, token string) (*Claims, error) {
	return e.flows.VerifyRefresh(ctx, token)
}

// Refresh consumes a refresh token and returns a new pair. Each refresh token
// works once.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return e.flows.Refresh(ctx, refreshToken)
}

// RevokeToken revokes jti for accountID. Revoking twice is not an error.
func (e *Engine) RevokeToken(ctx context.Context, accountID int64, jti string, kind TokenType) error {
	return e.flows.Revoke(ctx, accountID, jti, store.TokenType(kind))
}

// Logout revokes the pair. The access token is required; the refresh token
// may be empty.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) error {
	return e.flows.Logout(ctx, accessToken, refreshToken)
}
