// Package store defines the relational persistence model consumed by the
// authentication engine, together with the transactional Store contract.
//
// Implementations live in subpackages: store/postgres for production and
// store/memory for tests and local runs.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a unique constraint rejects a write.
	ErrConflict = errors.New("store: conflict")
)

// TokenType distinguishes access from refresh tokens in revocation records.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// Account is a registered principal. Accounts are never physically removed;
// deactivation clears Active.
type Account struct {
	ID                int64
	Email             string
	Username          string
	PasswordHash      string
	Role              string
	Active            bool
	EmailVerified     bool
	PasswordChangedAt time.Time
	CreatedAt         time.Time
}

// RefreshToken exists while the refresh token it describes is valid and unused.
type RefreshToken struct {
	Token     string
	AccountID int64
	JTI       string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// RevokedToken marks a token id as unusable until ExpiresAt.
type RevokedToken struct {
	AccountID int64
	TokenID   string
	TokenType TokenType
	ExpiresAt time.Time
}

// TwoFactorSecret holds the TOTP shared secret of one account.
type TwoFactorSecret struct {
	AccountID int64
	Secret    string
	Enabled   bool
	EnabledAt time.Time
	CreatedAt time.Time
}

// BackupCode is a single-use recovery code, stored as a hex SHA-256 digest.
type BackupCode struct {
	AccountID int64
	CodeHash  string
	Used      bool
	UsedAt    time.Time
}

type EmailVerification struct {
	ID        int64
	AccountID int64
	Code      string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// PasswordReset stores only the hash of the mailed reset token.
type PasswordReset struct {
	ID        int64
	AccountID int64
	TokenHash string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// ExternalIdentity links a third-party provider subject to an account.
type ExternalIdentity struct {
	Provider  string
	Subject   string
	AccountID int64
	Email     string
	CreatedAt time.Time
}

// Queries is the set of persistence operations the engine performs. Every
// method is usable both on the root Store and inside WithTx.
type Queries interface {
	CreateAccount(ctx context.Context, a *Account) error
	GetAccountByID(ctx context.Context, id int64) (*Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	UpdatePassword(ctx context.Context, accountID int64, hash string, changedAt time.Time) error
	MarkEmailVerified(ctx context.Context, accountID int64) error

	SaveRefreshToken(ctx context.Context, t *RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error)
	// DeleteRefreshToken reports whether a row was removed.
	DeleteRefreshToken(ctx context.Context, token string) (bool, error)
	ListRefreshTokens(ctx context.Context, accountID int64) ([]RefreshToken, error)
	DeleteRefreshTokensForAccount(ctx context.Context, accountID int64) error

	// InsertRevokedTokens ignores rows whose (account, token id, type) already exists.
	InsertRevokedTokens(ctx context.Context, tokens []RevokedToken) error
	IsTokenRevoked(ctx context.Context, tokenID string, now time.Time) (bool, error)

	GetTwoFactor(ctx context.Context, accountID int64) (*TwoFactorSecret, error)
	UpsertTwoFactor(ctx context.Context, s *TwoFactorSecret) error
	EnableTwoFactor(ctx context.Context, accountID int64, at time.Time) error
	DisableTwoFactor(ctx context.Context, accountID int64) error
	ReplaceBackupCodes(ctx context.Context, accountID int64, hashes []string) error
	// ConsumeBackupCode atomically flips an unused matching code to used and
	// reports whether it did.
	ConsumeBackupCode(ctx context.Context, accountID int64, hash string, at time.Time) (bool, error)

	CreateVerification(ctx context.Context, v *EmailVerification) error
	GetActiveVerification(ctx context.Context, accountID int64, code string, now time.Time) (*EmailVerification, error)
	// MarkVerificationUsed returns ErrNotFound if the record is already used.
	MarkVerificationUsed(ctx context.Context, id int64) error

	CreatePasswordReset(ctx context.Context, r *PasswordReset) error
	GetPasswordResetByHash(ctx context.Context, tokenHash string, now time.Time) (*PasswordReset, error)
	// MarkPasswordResetUsed returns ErrNotFound if the record is already used.
	MarkPasswordResetUsed(ctx context.Context, id int64) error

	GetIdentity(ctx context.Context, provider, subject string) (*ExternalIdentity, error)
	LinkIdentity(ctx context.Context, id *ExternalIdentity) error
}

// Store is a Queries implementation that can group calls into a transaction.
// fn's Queries must only be used for the lifetime of the call; returning an
// error rolls every write back.
type Store interface {
	Queries
	WithTx(ctx context.Context, fn func(ctx context.Context, q Queries) error) error
}
