package flows

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/mail"
	"github.com/MrEthical07/authcore/store"
)

// RunForgotPassword mails a reset link token. The response does not reveal
// whether the address belongs to an account.
func RunForgotPassword(ctx context.Context, email string, d Deps) error {
	email = normalizeEmail(email)
	if err := d.Limits.ForgotPassword(ctx, email); err != nil {
		return d.rateLimited(err)
	}
	if !ValidEmail(email) {
		return d.Errors.InvalidFormat("email")
	}

	acct, err := d.Store.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return d.internalError("load account", err)
	}
	if !acct.Active {
		return nil
	}

	token, err := d.NewToken()
	if err != nil {
		return d.internalError("generate reset token", err)
	}
	now := d.Now()
	if err := d.Store.CreatePasswordReset(ctx, &store.PasswordReset{
		AccountID: acct.ID,
		TokenHash: internal.HashToken(token),
		ExpiresAt: now.Add(d.Settings.ResetTokenTTL),
		CreatedAt: now,
	}); err != nil {
		return d.internalError("create password reset", err, zap.Int64("account_id", acct.ID))
	}

	d.send(ctx, email, mail.KindPasswordReset, token)
	d.Metrics.Inc(metrics.MetricPasswordResetRequest)
	d.emit(ctx, EventPasswordResetRequest, acct.ID, "", nil, nil)
	return nil
}

// RunResetPassword sets a new password from a reset token and invalidates
// every token issued to the account before now.
func RunResetPassword(ctx context.Context, token, newPassword string, d Deps) error {
	tokenHash := internal.HashToken(token)
	if err := d.Limits.ResetPassword(ctx, tokenHash); err != nil {
		return d.rateLimited(err)
	}
	if !ValidPassword(newPassword) {
		return d.Errors.InvalidFormat("password")
	}

	reset, err := d.Store.GetPasswordResetByHash(ctx, tokenHash, d.Now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			d.Metrics.Inc(metrics.MetricPasswordResetFailure)
			return d.Errors.InvalidResetToken
		}
		return d.internalError("load password reset", err)
	}

	hash, err := d.Hasher.Hash(newPassword)
	if err != nil {
		return d.Errors.InvalidFormat("password")
	}

	err = replaceCredentials(ctx, reset.AccountID, hash, d, func(ctx context.Context, q store.Queries) error {
		return q.MarkPasswordResetUsed(ctx, reset.ID)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Consumed by a concurrent reset.
			d.Metrics.Inc(metrics.MetricPasswordResetFailure)
			return d.Errors.InvalidResetToken
		}
		return err
	}

	d.Metrics.Inc(metrics.MetricPasswordResetSuccess)
	d.emit(ctx, EventPasswordReset, reset.AccountID, "", nil, nil)
	return nil
}

// RunChangePassword replaces the password of a signed-in account and returns
// a fresh token pair; all earlier tokens stop verifying.
func RunChangePassword(ctx context.Context, accountID int64, current, next string, d Deps) (*TokenPair, error) {
	if err := d.Limits.PasswordChange(ctx, accountID); err != nil {
		return nil, d.rateLimited(err)
	}
	if !ValidPassword(next) {
		return nil, d.Errors.InvalidFormat("password")
	}

	acct, err := d.Store.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, d.Errors.AccountNotFound
		}
		return nil, d.internalError("load account", err)
	}
	ok, err := d.Hasher.Verify(current, acct.PasswordHash)
	if err != nil || !ok {
		d.Metrics.Inc(metrics.MetricPasswordChangeFailure)
		d.emit(ctx, EventPasswordChanged, accountID, "", d.Errors.InvalidCredentials, nil)
		return nil, d.Errors.InvalidCredentials
	}

	hash, err := d.Hasher.Hash(next)
	if err != nil {
		return nil, d.Errors.InvalidFormat("password")
	}
	if err := replaceCredentials(ctx, accountID, hash, d, nil); err != nil {
		return nil, err
	}

	pair, err := RunIssue(ctx, accountID, d)
	if err != nil {
		return nil, err
	}
	d.Metrics.Inc(metrics.MetricPasswordChangeSuccess)
	d.emit(ctx, EventPasswordChanged, accountID, pair.JTI, nil, nil)
	return pair, nil
}

// replaceCredentials stores hash, revokes and deletes every refresh record
// in one transaction, then moves the valid-since marker to now. extra runs
// inside the same transaction. Store errors other than ErrNotFound are
// mapped to Errors.Internal.
func replaceCredentials(ctx context.Context, accountID int64, hash string, d Deps, extra func(context.Context, store.Queries) error) error {
	now := d.Now()
	var revoked []store.RevokedToken
	err := d.Store.WithTx(ctx, func(ctx context.Context, q store.Queries) error {
		if extra != nil {
			if err := extra(ctx, q); err != nil {
				return err
			}
		}
		if err := q.UpdatePassword(ctx, accountID, hash, now); err != nil {
			return err
		}
		recs, err := revokeAllRefresh(ctx, q, accountID, d)
		if err != nil {
			return err
		}
		revoked = recs
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return d.internalError("replace credentials", err, zap.Int64("account_id", accountID))
	}

	for range revoked {
		d.Metrics.Inc(metrics.MetricTokenRevoked)
	}
	if d.Revocations == nil {
		return nil
	}
	if err := publishRevocations(ctx, accountID, revoked, now, d); err != nil {
		return d.internalError("publish revocations", err, zap.Int64("account_id", accountID))
	}
	return nil
}

const (
	indexWriteTries   = 4
	indexWriteBackoff = 25 * time.Millisecond
)

// publishRevocations copies a committed credential change into the shared
// index. Both writes are idempotent, so the pair is retried as a unit.
func publishRevocations(ctx context.Context, accountID int64, revoked []store.RevokedToken, now time.Time, d Deps) error {
	jtis := make([]string, 0, len(revoked))
	for _, r := range revoked {
		jtis = append(jtis, r.TokenID)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = indexWriteBackoff
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if err := d.Revocations.MarkRevoked(ctx, jtis...); err != nil {
			d.Logger.Warn("revocation index write failed", zap.Int64("account_id", accountID), zap.Int("attempt", attempt), zap.Error(err))
			return struct{}{}, err
		}
		if err := d.Revocations.SetValidSince(ctx, accountID, now); err != nil {
			d.Logger.Warn("valid-since write failed", zap.Int64("account_id", accountID), zap.Int("attempt", attempt), zap.Error(err))
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(indexWriteTries))
	return err
}
