package model

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Request types
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	CompanyName     string          `json:"company_name" binding:"required,min=2,max=120"`
	Domain          *string         `json:"domain" binding:"omitempty,tenant_domain"`
	Name            string          `json:"name" binding:"required,max=120"`
	Email           string          `json:"email" binding:"required,email"`
	Password        string          `json:"password" binding:"required"`
	Plan            string          `json:"plan" binding:"required"`
	BillingInterval BillingInterval `json:"billing_interval" binding:"required,billing_interval"`
}

type InviteRequest struct {
	Email  string    `json:"email" binding:"required,email"`
	RoleID uuid.UUID `json:"role_id" binding:"required"`
	Name   string    `json:"name" binding:"omitempty,max=120"`
}

type AcceptInvitationRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

type ResendVerificationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type VerifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id" binding:"required"`
	PaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature string `json:"razorpay_signature" binding:"required"`
}

type RenewalOrderRequest struct {
	Plan            string          `json:"plan"`
	BillingInterval BillingInterval `json:"billing_interval" binding:"omitempty,billing_interval"`
}

// Response types
type SessionResponse struct {
	Account   AccountSummary `json:"account"`
	Tenant    TenantSummary  `json:"tenant"`
	Token     string         `json:"token"`
	ExpiresIn string         `json:"expiresIn"`
}

type RegisterResponse struct {
	Tenant  TenantSummary  `json:"tenant"`
	Account AccountSummary `json:"account"`
	Order   OrderSummary   `json:"order"`
}

type ActivationResponse struct {
	Tenant TenantSummary `json:"tenant"`
	// Token is empty while the owner has not verified their email.
	Token     string `json:"token,omitempty"`
	ExpiresIn string `json:"expiresIn,omitempty"`
	// Applied is false when the payment had already been applied.
	Applied bool `json:"applied"`
}

// SessionClaims are the claims carried by a session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	AccountID   uuid.UUID        `json:"account_id"`
	TenantID    uuid.UUID        `json:"tenant_id"`
	RoleID      uuid.UUID        `json:"role_id"`
	Permissions PermissionMatrix `json:"permissions"`
}

// Principal is the authenticated caller of a request.
type Principal struct {
	AccountID   uuid.UUID
	TenantID    uuid.UUID
	RoleID      uuid.UUID
	Permissions PermissionMatrix
}

func (p Principal) Can(resource, action string) bool {
	return p.Permissions.Allows(resource, action)
}

// PrincipalFromClaims builds the caller identity from validated claims.
func PrincipalFromClaims(c *SessionClaims) Principal {
	return Principal{
		AccountID:   c.AccountID,
		TenantID:    c.TenantID,
		RoleID:      c.RoleID,
		Permissions: c.Permissions,
	}
}
