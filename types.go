package authcore

import (
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/store"
)

type (
	// TokenPair is an access and refresh token sharing one jti.
	TokenPair = flows.TokenPair
	// Claims is the verified content of a token.
	Claims = flows.Claims

	LoginRequest    = flows.LoginRequest
	LoginResult     = flows.LoginResult
	RegisterRequest = flows.RegisterRequest
	RegisterResult  = flows.RegisterResult

	// TwoFactorSetup holds a pending secret, its otpauth:// URI and the
	// plaintext backup codes. The codes are shown once.
	TwoFactorSetup = flows.TwoFactorSetup
	OAuthRedirect  = flows.OAuthRedirect
)

// TokenType selects which kind of token RevokeToken records.
type TokenType = store.TokenType

const (
	TokenAccess  = store.TokenAccess
	TokenRefresh = store.TokenRefresh
)
