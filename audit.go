package authcore

import (
	"io"

	"go.uber.org/zap"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/flows"
)

type (
	AuditEvent     = audit.Event
	AuditSink      = audit.Sink
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	ZapSink        = audit.ZapSink
)

// Audit event types.
const (
	AuditLoginSuccess         = flows.EventLoginSuccess
	AuditLoginFailure         = flows.EventLoginFailure
	AuditLoginRateLimited     = flows.EventLoginRateLimited
	AuditTwoFactorRequired    = flows.EventTwoFactorRequired
	AuditTwoFactorFailure     = flows.EventTwoFactorFailure
	AuditBackupCodeUsed       = flows.EventBackupCodeUsed
	AuditTokenRevoked         = flows.EventTokenRevoked
	AuditRefreshRotated       = flows.EventRefreshRotated
	AuditRefreshReuse         = flows.EventRefreshReuse
	AuditLogout               = flows.EventLogout
	AuditAccountRegistered    = flows.EventAccountRegistered
	AuditEmailVerified        = flows.EventEmailVerified
	AuditPasswordResetRequest = flows.EventPasswordResetRequest
	AuditPasswordReset        = flows.EventPasswordReset
	AuditPasswordChanged      = flows.EventPasswordChanged
	AuditTwoFactorSetup       = flows.EventTwoFactorSetup
	AuditTwoFactorEnabled     = flows.EventTwoFactorEnabled
	AuditTwoFactorDisabled    = flows.EventTwoFactorDisabled
	AuditBackupRegenerated    = flows.EventBackupRegenerated
	AuditOAuthLogin           = flows.EventOAuthLogin
)

func NewChannelSink(buffer int) *ChannelSink { return audit.NewChannelSink(buffer) }

func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return audit.NewJSONWriterSink(w) }

// NewZapSink logs audit events through logger under the "audit" name.
func NewZapSink(logger *zap.Logger) *ZapSink { return audit.NewZapSink(logger) }
