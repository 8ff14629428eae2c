// Package audit writes the security audit trail as JSON lines through zap,
// separate from the application log.
package audit

import (
	"context"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Audited actions.
const (
	ActionLoginSucceeded     = "login.succeeded"
	ActionLoginFailed        = "login.failed"
	ActionAccountLocked      = "account.locked"
	ActionAccountInvited     = "account.invited"
	ActionInvitationAccepted = "invitation.accepted"
	ActionPasswordResetAsked = "password_reset.requested"
	ActionPasswordReset      = "password_reset.completed"
	ActionEmailVerified      = "email.verified"
	ActionTenantRegistered   = "tenant.registered"
	ActionPaymentVerified    = "subscription.activated"
	ActionPaymentRejected    = "subscription.payment_rejected"
	ActionPermissionsResync  = "permissions.resynced"
)

type Service struct {
	logger *zap.Logger
}

func NewService(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger}
}

// NewLogger builds the audit sink. output is "stdout", "stderr" or a file path.
func NewLogger(output string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.MessageKey = "action"
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	cfg.Sampling = nil
	if output == "" {
		output = "stdout"
	}
	cfg.OutputPaths = []string{output}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.InitialFields = map[string]interface{}{"stream": "audit"}
	if host, err := os.Hostname(); err == nil {
		cfg.InitialFields["host"] = host
	}
	return cfg.Build()
}

// Entry describes one audited event. Zero ids are omitted.
type Entry struct {
	Action   string
	ActorID  uuid.UUID
	TenantID uuid.UUID
	TargetID uuid.UUID
	Outcome  string
	Reason   string
	Metadata map[string]string
}

type clientKey struct{}

// Client is the caller's network identity attached by the HTTP layer.
type Client struct {
	IP        string
	UserAgent string
	RequestID string
}

func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, clientKey{}, c)
}

func ClientFrom(ctx context.Context) (Client, bool) {
	c, ok := ctx.Value(clientKey{}).(Client)
	return c, ok
}

// Log writes e to the audit trail.
func (s *Service) Log(ctx context.Context, e Entry) {
	fields := make([]zap.Field, 0, 8+len(e.Metadata))
	if e.ActorID != uuid.Nil {
		fields = append(fields, zap.String("actor_id", e.ActorID.String()))
	}
	if e.TenantID != uuid.Nil {
		fields = append(fields, zap.String("tenant_id", e.TenantID.String()))
	}
	if e.TargetID != uuid.Nil {
		fields = append(fields, zap.String("target_id", e.TargetID.String()))
	}
	if e.Outcome != "" {
		fields = append(fields, zap.String("outcome", e.Outcome))
	}
	if e.Reason != "" {
		fields = append(fields, zap.String("reason", e.Reason))
	}
	if c, ok := ClientFrom(ctx); ok {
		fields = append(fields,
			zap.String("ip", c.IP),
			zap.String("user_agent", c.UserAgent),
			zap.String("request_id", c.RequestID),
		)
	}
	for k, v := range e.Metadata {
		fields = append(fields, zap.String(k, v))
	}

	s.logger.Info(e.Action, fields...)
}

func (s *Service) Sync() error {
	return s.logger.Sync()
}
