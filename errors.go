package authcore

import (
	"errors"
	"fmt"
	"time"
)

// Error is a caller-safe failure with a stable machine-readable code.
// Two *Error values match under errors.Is when their codes are equal.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

const (
	CodeInvalidCredentials      = "INVALID_CREDENTIALS"
	CodeInvalidToken            = "INVALID_TOKEN"
	CodeInvalidRefreshToken     = "INVALID_REFRESH_TOKEN"
	CodeTwoFactorRequired       = "TWO_FACTOR_REQUIRED"
	CodeInvalid2FACode          = "INVALID_2FA_CODE"
	CodeTwoFactorAlreadyEnabled = "TWO_FACTOR_ALREADY_ENABLED"
	CodeTwoFactorNotInitialized = "TWO_FACTOR_NOT_INITIALIZED"
	CodeTwoFactorNotEnabled     = "TWO_FACTOR_NOT_ENABLED"
	CodeInvalidFormat           = "INVALID_FORMAT"
	CodeRateLimitExceeded       = "RATE_LIMIT_EXCEEDED"
	CodeAccountNotFound         = "ACCOUNT_NOT_FOUND"
	CodeAccountExists           = "ACCOUNT_EXISTS"
	CodeAccountDisabled         = "ACCOUNT_DISABLED"
	CodeInvalidResetToken       = "INVALID_RESET_TOKEN"
	CodeInvalidCode             = "INVALID_CODE"
	CodeInvalidOAuthState       = "INVALID_OAUTH_STATE"
	CodeOAuthProviderUnknown    = "OAUTH_PROVIDER_UNKNOWN"
	CodeInternal                = "INTERNAL_ERROR"
)

var (
	// ErrInvalidCredentials covers unknown accounts and wrong passwords alike.
	ErrInvalidCredentials = &Error{Code: CodeInvalidCredentials, Message: "invalid credentials"}
	// ErrInvalidToken is returned for any access token that fails verification.
	ErrInvalidToken = &Error{Code: CodeInvalidToken, Message: "invalid or expired token"}
	// ErrInvalidRefreshToken is returned for refresh tokens that are invalid, expired, already used or logged out.
	ErrInvalidRefreshToken = &Error{Code: CodeInvalidRefreshToken, Message: "invalid or expired refresh token"}
	// ErrTwoFactorRequired means the password was right and a second factor must follow.
	ErrTwoFactorRequired = &Error{Code: CodeTwoFactorRequired, Message: "two-factor code required"}
	ErrInvalid2FACode    = &Error{Code: CodeInvalid2FACode, Message: "invalid two-factor code"}

	ErrTwoFactorAlreadyEnabled = &Error{Code: CodeTwoFactorAlreadyEnabled, Message: "two-factor authentication is already enabled"}
	ErrTwoFactorNotInitialized = &Error{Code: CodeTwoFactorNotInitialized, Message: "two-factor setup has not been started"}
	ErrTwoFactorNotEnabled     = &Error{Code: CodeTwoFactorNotEnabled, Message: "two-factor authentication is not enabled"}

	// ErrInvalidFormat is the sentinel every InvalidFormat error matches.
	ErrInvalidFormat = &Error{Code: CodeInvalidFormat, Message: "invalid format"}
	// ErrRateLimitExceeded is the sentinel every *RateLimitError unwraps to.
	ErrRateLimitExceeded = &Error{Code: CodeRateLimitExceeded, Message: "too many requests"}

	ErrAccountNotFound = &Error{Code: CodeAccountNotFound, Message: "account not found"}
	ErrAccountExists   = &Error{Code: CodeAccountExists, Message: "account already exists"}
	ErrAccountDisabled = &Error{Code: CodeAccountDisabled, Message: "account disabled"}

	ErrInvalidResetToken = &Error{Code: CodeInvalidResetToken, Message: "invalid or expired reset token"}
	ErrInvalidCode       = &Error{Code: CodeInvalidCode, Message: "invalid or expired code"}

	ErrInvalidOAuthState    = &Error{Code: CodeInvalidOAuthState, Message: "invalid or expired sign-in state"}
	ErrOAuthProviderUnknown = &Error{Code: CodeOAuthProviderUnknown, Message: "unknown sign-in provider"}

	// ErrInternal hides every unexpected failure. Details go to the log.
	ErrInternal = &Error{Code: CodeInternal, Message: "internal error"}
)

// FormatError names the request field that failed validation.
type FormatError struct {
	Field string
}

// InvalidFormat returns an error for field that matches ErrInvalidFormat.
func InvalidFormat(field string) error {
	return &FormatError{Field: field}
}

func (e *FormatError) Error() string { return "invalid format: " + e.Field }

func (e *FormatError) Unwrap() error { return ErrInvalidFormat }

// RateLimitError reports a rejected request and when to retry.
type RateLimitError struct {
	Policy     string
	Count      int64
	Remaining  int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many requests (%s), retry in %s", e.Policy, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimitExceeded }

// ErrorCode returns the stable code for err, CodeInternal for anything
// unrecognised, and "" for nil.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	return Public(err).Code
}

// Public maps err to a value safe to show a client. Field names of format
// errors are kept; everything unrecognised becomes ErrInternal.
func Public(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *FormatError
	if errors.As(err, &fe) {
		return &Error{Code: CodeInvalidFormat, Message: fe.Error()}
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return ErrRateLimitExceeded
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal
}
