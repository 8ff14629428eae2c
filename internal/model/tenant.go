package model

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	SubscriptionPendingPayment SubscriptionStatus = "pending_payment"
	SubscriptionActive         SubscriptionStatus = "active"
	SubscriptionSuspended      SubscriptionStatus = "suspended"
	SubscriptionCancelled      SubscriptionStatus = "cancelled"
	SubscriptionInactive       SubscriptionStatus = "inactive"
)

type BillingInterval string

const (
	BillingMonthly BillingInterval = "month"
	BillingYearly  BillingInterval = "year"
)

// Next returns from advanced by one billing interval.
func (i BillingInterval) Next(from time.Time) time.Time {
	if i == BillingYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

func (i BillingInterval) Valid() bool {
	return i == BillingMonthly || i == BillingYearly
}

// PaymentDetails is the gateway metadata of the last applied payment.
type PaymentDetails struct {
	OrderID       *string    `json:"order_id,omitempty" db:"payment_order_id"`
	PaymentID     *string    `json:"payment_id,omitempty" db:"payment_id"`
	Signature     *string    `json:"-" db:"payment_signature"`
	LastPaymentAt *time.Time `json:"last_payment_at,omitempty" db:"last_payment_at"`
	NextPaymentAt *time.Time `json:"next_payment_at,omitempty" db:"next_payment_at"`
}

type Subscription struct {
	Plan            string             `json:"plan" db:"plan"`
	Status          SubscriptionStatus `json:"status" db:"subscription_status"`
	BillingInterval BillingInterval    `json:"billing_interval" db:"billing_interval"`
	StartDate       *time.Time         `json:"start_date,omitempty" db:"subscription_start"`
	EndDate         *time.Time         `json:"end_date,omitempty" db:"subscription_end"`
	PaymentDetails  `json:"payment"`
}

// Tenant is a customer company. Every account belongs to exactly one tenant.
type Tenant struct {
	Base
	Name           string    `json:"name" db:"name"`
	Domain         *string   `json:"domain,omitempty" db:"domain"`
	AccountPrefix  string    `json:"account_prefix" db:"account_prefix"`
	OwnerAccountID uuid.UUID `json:"owner_account_id" db:"owner_account_id"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	Subscription   `json:"subscription"`
}

type TenantSummary struct {
	ID           uuid.UUID    `json:"id"`
	Name         string       `json:"name"`
	Domain       *string      `json:"domain,omitempty"`
	IsActive     bool         `json:"is_active"`
	Subscription Subscription `json:"subscription"`
}

func (t *Tenant) Summary() TenantSummary {
	return TenantSummary{
		ID:           t.ID,
		Name:         t.Name,
		Domain:       t.Domain,
		IsActive:     t.IsActive,
		Subscription: t.Subscription,
	}
}
