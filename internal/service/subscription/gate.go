package subscription

import (
	"time"

	"github.com/jwalitptl/hire-api/internal/model"
	apperrors "github.com/jwalitptl/hire-api/pkg/errors"
)

// Gate decision codes.
const (
	CodeAllowed               = "ALLOWED"
	CodeTenantInactive        = "TENANT_INACTIVE"
	CodePaymentPending        = "PAYMENT_PENDING"
	CodeSubscriptionSuspended = "SUBSCRIPTION_SUSPENDED"
	CodeSubscriptionCancelled = "SUBSCRIPTION_CANCELLED"
	CodeSubscriptionInactive  = "SUBSCRIPTION_INACTIVE"
	CodeSubscriptionExpired   = "SUBSCRIPTION_EXPIRED"
)

// Decision is the outcome of evaluating a tenant's subscription.
type Decision struct {
	Allowed bool
	Reason  string
	Code    string
}

// Err returns nil for an allowed decision and a PaymentRequired error otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apperrors.PaymentRequired(d.Reason).WithDetails(d.Code)
}

func deny(code, reason string) Decision {
	return Decision{Reason: reason, Code: code}
}

// Evaluate decides whether accounts of t may sign in at now. The first
// matching rule wins.
func Evaluate(t *model.Tenant, now time.Time) Decision {
	if !t.IsActive {
		return deny(CodeTenantInactive, "company account is inactive")
	}

	switch t.Status {
	case model.SubscriptionActive:
	case model.SubscriptionPendingPayment:
		return deny(CodePaymentPending, "payment verification required")
	case model.SubscriptionSuspended:
		return deny(CodeSubscriptionSuspended, "subscription suspended")
	case model.SubscriptionCancelled:
		return deny(CodeSubscriptionCancelled, "subscription cancelled")
	default:
		return deny(CodeSubscriptionInactive, "subscription inactive")
	}

	if t.EndDate != nil && !t.EndDate.After(now) {
		return deny(CodeSubscriptionExpired, "subscription expired")
	}

	return Decision{Allowed: true, Code: CodeAllowed}
}
