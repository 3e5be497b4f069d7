package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/MrEthical07/authcore"
)

// StatusFor maps an engine error to an HTTP status.
func StatusFor(err error) int {
	switch authcore.ErrorCode(err) {
	case "":
		return http.StatusOK
	case authcore.CodeInvalidFormat:
		return http.StatusBadRequest
	case authcore.CodeInvalidCredentials, authcore.CodeInvalidToken, authcore.CodeInvalidRefreshToken,
		authcore.CodeTwoFactorRequired, authcore.CodeInvalid2FACode:
		return http.StatusUnauthorized
	case authcore.CodeAccountDisabled:
		return http.StatusForbidden
	case authcore.CodeAccountNotFound, authcore.CodeOAuthProviderUnknown:
		return http.StatusNotFound
	case authcore.CodeAccountExists, authcore.CodeTwoFactorAlreadyEnabled:
		return http.StatusConflict
	case authcore.CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case authcore.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func asRateLimit(err error, target **authcore.RateLimitError) bool {
	return errors.As(err, target)
}

func retryAfterSeconds(e *authcore.RateLimitError) string {
	secs := int64(e.RetryAfter.Seconds())
	if e.RetryAfter%1e9 != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
