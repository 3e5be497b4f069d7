package flows

import (
	"net/mail"
	"strings"
	"unicode"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 32
	minPasswordLen = 8
	maxEmailLen    = 254
	codeLen        = 6
)

// ValidUsername accepts 3-32 characters from [A-Za-z0-9_.-].
func ValidUsername(s string) bool {
	if len(s) < minUsernameLen || len(s) > maxUsernameLen {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '.' || r == '-':
		default:
			return false
		}
	}
	return true
}

// ValidEmail accepts a bare address (no display name).
func ValidEmail(s string) bool {
	if s == "" || len(s) > maxEmailLen {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// ValidPassword requires at least 8 characters with one letter and one digit.
// The hasher enforces the byte ceiling.
func ValidPassword(s string) bool {
	if len([]rune(s)) < minPasswordLen {
		return false
	}
	var letter, digit bool
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}

// ValidCode accepts six ASCII digits.
func ValidCode(s string) bool {
	if len(s) != codeLen {
		return false
	}
	return strings.Trim(s, "0123456789") == ""
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
