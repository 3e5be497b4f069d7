// Package totp provisions and verifies RFC 6238 time-based codes and the
// single-use backup codes that stand in for them.
package totp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	secretSize       = 20
	backupCodeDigits = 10
	// DefaultBackupCodeCount is the size of a freshly generated batch.
	DefaultBackupCodeCount = 8
)

// Config holds provisioning parameters. Zero values fall back to
// SHA1, 6 digits, a 30 second step and ±1 step of skew.
type Config struct {
	Issuer string
	Period uint
	Skew   uint
}

// Manager generates secrets and checks codes.
type Manager struct {
	config Config
}

// Key is a provisioned secret and its otpauth:// URI.
type Key struct {
	Secret string
	URI    string
}

func New(cfg Config) *Manager {
	if cfg.Issuer == "" {
		cfg.Issuer = "authcore"
	}
	if cfg.Period == 0 {
		cfg.Period = 30
	}
	if cfg.Skew == 0 {
		cfg.Skew = 1
	}
	return &Manager{config: cfg}
}

// GenerateSecret creates a base32 secret for label (usually the account email).
func (m *Manager) GenerateSecret(label string) (Key, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.config.Issuer,
		AccountName: label,
		Period:      m.config.Period,
		SecretSize:  secretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return Key{}, fmt.Errorf("generate totp key: %w", err)
	}
	return Key{Secret: key.Secret(), URI: key.URL()}, nil
}

// VerifyCode checks code against the current time.
func (m *Manager) VerifyCode(secret, code string) bool {
	return m.VerifyAt(secret, code, time.Now())
}

// VerifyAt checks code against t. Malformed input yields false.
func (m *Manager) VerifyAt(secret, code string, t time.Time) bool {
	code = strings.TrimSpace(code)
	if secret == "" || !isDigits(code, 6) {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, t.UTC(), totp.ValidateOpts{
		Period:    m.config.Period,
		Skew:      m.config.Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// GenerateBackupCodes returns n random 10-digit codes in cleartext.
func GenerateBackupCodes(n int) ([]string, error) {
	if n <= 0 {
		n = DefaultBackupCodeCount
	}
	limit := big.NewInt(10_000_000_000)
	codes := make([]string, 0, n)
	for len(codes) < n {
		v, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return nil, fmt.Errorf("generate backup code: %w", err)
		}
		codes = append(codes, fmt.Sprintf("%0*d", backupCodeDigits, v))
	}
	return codes, nil
}

// HashBackupCode returns the lowercase hex SHA-256 of the normalized code.
func HashBackupCode(code string) string {
	sum := sha256.Sum256([]byte(NormalizeBackupCode(code)))
	return hex.EncodeToString(sum[:])
}

// VerifyBackupCode recomputes the hash and compares in constant time.
func VerifyBackupCode(code, hash string) bool {
	if !IsBackupCode(code) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashBackupCode(code)), []byte(strings.ToLower(hash))) == 1
}

// NormalizeBackupCode drops the separators users tend to type.
func NormalizeBackupCode(code string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, code)
}

// IsBackupCode reports whether code is ten digits once normalized.
func IsBackupCode(code string) bool {
	return isDigits(NormalizeBackupCode(code), backupCodeDigits)
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
