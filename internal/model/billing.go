package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusCreated OrderStatus = "created"
	OrderStatusPaid    OrderStatus = "paid"
)

// PaymentOrder maps a gateway order to the tenant that requested it.
type PaymentOrder struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	OrderID         string          `json:"order_id" db:"order_id"`
	TenantID        uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	Plan            string          `json:"plan" db:"plan"`
	BillingInterval BillingInterval `json:"billing_interval" db:"billing_interval"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Currency        string          `json:"currency" db:"currency"`
	Status          OrderStatus     `json:"status" db:"status"`
	PaymentID       *string         `json:"payment_id,omitempty" db:"payment_id"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderSummary is what a client needs to open the gateway checkout.
type OrderSummary struct {
	OrderID         string          `json:"order_id"`
	KeyID           string          `json:"key_id"`
	Plan            string          `json:"plan"`
	BillingInterval BillingInterval `json:"billing_interval"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
}

func (o *PaymentOrder) Summary(keyID string) OrderSummary {
	return OrderSummary{
		OrderID:         o.OrderID,
		KeyID:           keyID,
		Plan:            o.Plan,
		BillingInterval: o.BillingInterval,
		Amount:          o.Amount,
		Currency:        o.Currency,
	}
}

// BillingRecord is one applied payment in a tenant's billing history.
type BillingRecord struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	TenantID    uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	OrderID     string          `json:"order_id" db:"order_id"`
	PaymentID   string          `json:"payment_id" db:"payment_id"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Currency    string          `json:"currency" db:"currency"`
	PeriodStart time.Time       `json:"period_start" db:"period_start"`
	PeriodEnd   time.Time       `json:"period_end" db:"period_end"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Activation describes a verified payment to be applied to a tenant.
type Activation struct {
	Order     *PaymentOrder
	PaymentID string
	Signature string
	PaidAt    time.Time
}
