package authcore

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestErrorMatchesByCode(t *testing.T) {
	copyOf := &Error{Code: CodeInvalidToken, Message: "different text"}
	if !errors.Is(copyOf, ErrInvalidToken) {
		t.Fatal("errors with the same code must match")
	}
	if errors.Is(ErrInvalidToken, ErrInvalidRefreshToken) {
		t.Fatal("different codes must not match")
	}
	wrapped := fmt.Errorf("verify: %w", ErrInvalidToken)
	if ErrorCode(wrapped) != CodeInvalidToken {
		t.Fatalf("unexpected code %q", ErrorCode(wrapped))
	}
}

func TestFormatErrorKeepsField(t *testing.T) {
	err := InvalidFormat("email")
	if !errors.Is(err, ErrInvalidFormat) {
		t.Fatal("format error must match ErrInvalidFormat")
	}
	pub := Public(err)
	if pub.Code != CodeInvalidFormat || pub.Message != "invalid format: email" {
		t.Fatalf("unexpected public form %+v", pub)
	}
}

func TestPublicHidesUnknownErrors(t *testing.T) {
	if Public(errors.New("pq: connection refused")) != ErrInternal {
		t.Fatal("unknown errors must map to ErrInternal")
	}
	if Public(nil) != nil || ErrorCode(nil) != "" {
		t.Fatal("nil must stay nil")
	}
	rl := &RateLimitError{Policy: "refresh", RetryAfter: 30 * time.Second}
	if Public(rl) != ErrRateLimitExceeded {
		t.Fatal("rate limit errors must map to ErrRateLimitExceeded")
	}
}
