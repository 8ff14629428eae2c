package email

import (
	"context"
	"time"
)

// Mail templates.
const (
	TemplateInvitation          = "invitation"
	TemplatePasswordReset       = "password_reset"
	TemplateVerification        = "verification"
	TemplatePaymentConfirmation = "payment_confirmation"
)

// Service sends the transactional mails of the account lifecycle.
type Service interface {
	SendInvitation(ctx context.Context, to string, data InvitationData) error
	SendPasswordReset(ctx context.Context, to string, data LinkData) error
	SendVerification(ctx context.Context, to string, data LinkData) error
	SendPaymentConfirmation(ctx context.Context, to string, data PaymentConfirmationData) error
}

type InvitationData struct {
	Name       string
	TenantName string
	RoleName   string
	Link       string
	ExpiresAt  time.Time
}

type LinkData struct {
	Name      string
	Link      string
	ExpiresAt time.Time
}

type PaymentConfirmationData struct {
	Name       string
	TenantName string
	Plan       string
	Amount     string
	Currency   string
	PaymentID  string
	PeriodEnd  time.Time
}
