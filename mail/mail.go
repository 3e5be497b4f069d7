// Package mail defines the outbound message hook used for email verification
// codes and password reset links, plus two development dispatchers.
package mail

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Kind selects the message template on the receiving side.
type Kind string

const (
	KindEmailVerification Kind = "email_verification"
	KindPasswordReset     Kind = "password_reset"
)

// Dispatcher delivers token to address. Implementations own templating and
// transport.
type Dispatcher interface {
	Send(ctx context.Context, address string, kind Kind, token string) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, address string, kind Kind, token string) error

func (f DispatcherFunc) Send(ctx context.Context, address string, kind Kind, token string) error {
	return f(ctx, address, kind, token)
}

// LogDispatcher writes messages to a zap logger instead of sending them.
// Tokens are logged in clear; use it only outside production.
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogDispatcher{logger: logger.Named("mail")}
}

func (d *LogDispatcher) Send(_ context.Context, address string, kind Kind, token string) error {
	d.logger.Info("outbound mail",
		zap.String("to", address),
		zap.String("kind", string(kind)),
		zap.String("token", token),
	)
	return nil
}

// Message is one captured send.
type Message struct {
	Address string
	Kind    Kind
	Token   string
}

// Outbox keeps every message in memory. Safe for concurrent use.
type Outbox struct {
	mu   sync.Mutex
	sent []Message
}

func NewOutbox() *Outbox { return &Outbox{} }

func (o *Outbox) Send(_ context.Context, address string, kind Kind, token string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, Message{Address: address, Kind: kind, Token: token})
	return nil
}

// Last returns the most recent message of kind sent to address.
func (o *Outbox) Last(address string, kind Kind) (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.sent) - 1; i >= 0; i-- {
		if m := o.sent[i]; m.Address == address && m.Kind == kind {
			return m, true
		}
	}
	return Message{}, false
}

// Count returns how many messages were sent.
func (o *Outbox) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}
