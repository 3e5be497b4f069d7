// Package postgres implements store.Store on PostgreSQL through database/sql
// and the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/MrEthical07/authcore/store"
)

// Schema is the DDL the queries expect. It is idempotent.
//
//go:embed schema.sql
var Schema string

const uniqueViolation = "23505"

// Store is a store.Store over a *sql.DB.
type Store struct {
	queries
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open connects with the pgx driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return New(db), nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store {
	return &Store{queries: queries{db: db}, db: db}
}

// EnsureSchema applies Schema.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside a single database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, q store.Queries) error) error {
	return WithTx(ctx, s.db, nil, func(ctx context.Context, tx DBTX) error {
		return fn(ctx, queries{db: tx})
	})
}

type queries struct {
	db DBTX
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

const accountColumns = `id, email, username, password_hash, role, active, email_verified, password_changed_at, created_at`

func scanAccount(row *sql.Row) (*store.Account, error) {
	var (
		a         store.Account
		username  sql.NullString
		changedAt sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Email, &username, &a.PasswordHash, &a.Role, &a.Active, &a.EmailVerified, &changedAt, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	a.Username = username.String
	a.PasswordChangedAt = changedAt.Time
	return &a, nil
}

func (q queries) CreateAccount(ctx context.Context, a *store.Account) error {
	query := `INSERT INTO accounts (email, username, password_hash, role, active, email_verified)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	role := a.Role
	if role == "" {
		role = "user"
	}
	err := q.db.QueryRowContext(ctx, query,
		strings.TrimSpace(a.Email), nullString(a.Username), a.PasswordHash, role, a.Active, a.EmailVerified,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	a.Role = role
	return nil
}

func (q queries) GetAccountByID(ctx context.Context, id int64) (*store.Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (q queries) GetAccountByUsername(ctx context.Context, username string) (*store.Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username))
}

func (q queries) GetAccountByEmail(ctx context.Context, email string) (*store.Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1)`, email))
}

func (q queries) UpdatePassword(ctx context.Context, accountID int64, hash string, changedAt time.Time) error {
	return q.execOne(ctx, `UPDATE accounts SET password_hash = $2, password_changed_at = $3 WHERE id = $1`, accountID, hash, changedAt)
}

func (q queries) MarkEmailVerified(ctx context.Context, accountID int64) error {
	return q.execOne(ctx, `UPDATE accounts SET email_verified = TRUE WHERE id = $1`, accountID)
}

func (q queries) SaveRefreshToken(ctx context.Context, t *store.RefreshToken) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token, account_id, jti, expires_at) VALUES ($1, $2, $3, $4)`,
		t.Token, t.AccountID, t.JTI, t.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (q queries) GetRefreshToken(ctx context.Context, token string) (*store.RefreshToken, error) {
	var t store.RefreshToken
	err := q.db.QueryRowContext(ctx,
		`SELECT token, account_id, jti, expires_at, created_at FROM refresh_tokens WHERE token = $1`, token,
	).Scan(&t.Token, &t.AccountID, &t.JTI, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &t, nil
}

func (q queries) DeleteRefreshToken(ctx context.Context, token string) (bool, error) {
	n, err := q.exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (q queries) ListRefreshTokens(ctx context.Context, accountID int64) ([]store.RefreshToken, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT token, account_id, jti, expires_at, created_at FROM refresh_tokens WHERE account_id = $1`, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []store.RefreshToken
	for rows.Next() {
		var t store.RefreshToken
		if err := rows.Scan(&t.Token, &t.AccountID, &t.JTI, &t.ExpiresAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (q queries) DeleteRefreshTokensForAccount(ctx context.Context, accountID int64) error {
	_, err := q.exec(ctx, `DELETE FROM refresh_tokens WHERE account_id = $1`, accountID)
	return err
}

func (q queries) InsertRevokedTokens(ctx context.Context, tokens []store.RevokedToken) error {
	for _, t := range tokens {
		_, err := q.db.ExecContext(ctx,
			`INSERT INTO revoked_tokens (account_id, token_id, token_type, expires_at) VALUES ($1, $2, $3, $4)
			ON CONFLICT (account_id, token_id, token_type) DO NOTHING`,
			t.AccountID, t.TokenID, string(t.TokenType), t.ExpiresAt)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

func (q queries) IsTokenRevoked(ctx context.Context, tokenID string, now time.Time) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_id = $1 AND expires_at > $2)`, tokenID, now,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (q queries) GetTwoFactor(ctx context.Context, accountID int64) (*store.TwoFactorSecret, error) {
	var (
		s         store.TwoFactorSecret
		enabledAt sql.NullTime
	)
	err := q.db.QueryRowContext(ctx,
		`SELECT account_id, secret, enabled, enabled_at, created_at FROM two_factor_secrets WHERE account_id = $1`, accountID,
	).Scan(&s.AccountID, &s.Secret, &s.Enabled, &enabledAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	s.EnabledAt = enabledAt.Time
	return &s, nil
}

func (q queries) UpsertTwoFactor(ctx context.Context, s *store.TwoFactorSecret) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO two_factor_secrets (account_id, secret, enabled, enabled_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id) DO UPDATE SET secret = EXCLUDED.secret, enabled = EXCLUDED.enabled, enabled_at = EXCLUDED.enabled_at`,
		s.AccountID, s.Secret, s.Enabled, nullTime(s.EnabledAt))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (q queries) EnableTwoFactor(ctx context.Context, accountID int64, at time.Time) error {
	return q.execOne(ctx, `UPDATE two_factor_secrets SET enabled = TRUE, enabled_at = $2 WHERE account_id = $1`, accountID, at)
}

func (q queries) DisableTwoFactor(ctx context.Context, accountID int64) error {
	if _, err := q.exec(ctx, `DELETE FROM backup_codes WHERE account_id = $1`, accountID); err != nil {
		return err
	}
	return q.execOne(ctx, `DELETE FROM two_factor_secrets WHERE account_id = $1`, accountID)
}

func (q queries) ReplaceBackupCodes(ctx context.Context, accountID int64, hashes []string) error {
	if _, err := q.exec(ctx, `DELETE FROM backup_codes WHERE account_id = $1`, accountID); err != nil {
		return err
	}
	for _, h := range hashes {
		if _, err := q.exec(ctx, `INSERT INTO backup_codes (account_id, code_hash) VALUES ($1, $2)`, accountID, h); err != nil {
			return err
		}
	}
	return nil
}

func (q queries) ConsumeBackupCode(ctx context.Context, accountID int64, hash string, at time.Time) (bool, error) {
	n, err := q.exec(ctx,
		`UPDATE backup_codes SET used = TRUE, used_at = $3 WHERE account_id = $1 AND code_hash = $2 AND used = FALSE`,
		accountID, hash, at)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (q queries) CreateVerification(ctx context.Context, v *store.EmailVerification) error {
	err := q.db.QueryRowContext(ctx,
		`INSERT INTO email_verifications (account_id, code, expires_at) VALUES ($1, $2, $3) RETURNING id, created_at`,
		v.AccountID, v.Code, v.ExpiresAt,
	).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (q queries) GetActiveVerification(ctx context.Context, accountID int64, code string, now time.Time) (*store.EmailVerification, error) {
	var v store.EmailVerification
	err := q.db.QueryRowContext(ctx,
		`SELECT id, account_id, code, expires_at, used, created_at FROM email_verifications
		WHERE account_id = $1 AND code = $2 AND used = FALSE AND expires_at > $3
		ORDER BY id DESC LIMIT 1`,
		accountID, code, now,
	).Scan(&v.ID, &v.AccountID, &v.Code, &v.ExpiresAt, &v.Used, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &v, nil
}

func (q queries) MarkVerificationUsed(ctx context.Context, id int64) error {
	return q.execOne(ctx, `UPDATE email_verifications SET used = TRUE WHERE id = $1 AND used = FALSE`, id)
}

func (q queries) CreatePasswordReset(ctx context.Context, r *store.PasswordReset) error {
	err := q.db.QueryRowContext(ctx,
		`INSERT INTO password_resets (account_id, token_hash, expires_at) VALUES ($1, $2, $3) RETURNING id, created_at`,
		r.AccountID, r.TokenHash, r.ExpiresAt,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (q queries) GetPasswordResetByHash(ctx context.Context, tokenHash string, now time.Time) (*store.PasswordReset, error) {
	var r store.PasswordReset
	err := q.db.QueryRowContext(ctx,
		`SELECT id, account_id, token_hash, expires_at, used, created_at FROM password_resets
		WHERE token_hash = $1 AND used = FALSE AND expires_at > $2`,
		tokenHash, now,
	).Scan(&r.ID, &r.AccountID, &r.TokenHash, &r.ExpiresAt, &r.Used, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &r, nil
}

func (q queries) MarkPasswordResetUsed(ctx context.Context, id int64) error {
	return q.execOne(ctx, `UPDATE password_resets SET used = TRUE WHERE id = $1 AND used = FALSE`, id)
}

func (q queries) GetIdentity(ctx context.Context, provider, subject string) (*store.ExternalIdentity, error) {
	var id store.ExternalIdentity
	err := q.db.QueryRowContext(ctx,
		`SELECT provider, subject, account_id, email, created_at FROM external_identities WHERE provider = $1 AND subject = $2`,
		provider, subject,
	).Scan(&id.Provider, &id.Subject, &id.AccountID, &id.Email, &id.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &id, nil
}

func (q queries) LinkIdentity(ctx context.Context, id *store.ExternalIdentity) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO external_identities (provider, subject, account_id, email) VALUES ($1, $2, $3, $4)`,
		id.Provider, id.Subject, id.AccountID, id.Email)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (q queries) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// execOne maps zero affected rows to store.ErrNotFound.
func (q queries) execOne(ctx context.Context, query string, args ...any) error {
	n, err := q.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
