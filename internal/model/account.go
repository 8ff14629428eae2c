package model

import (
	"time"

	"github.com/google/uuid"
)

// Account is a tenant scoped login identity.
type Account struct {
	Base
	TenantID            uuid.UUID        `json:"tenant_id" db:"tenant_id"`
	Code                string           `json:"code" db:"code"`
	Email               string           `json:"email" db:"email"`
	Name                string           `json:"name" db:"name"`
	PasswordHash        string           `json:"-" db:"password_hash"`
	RoleID              uuid.UUID        `json:"role_id" db:"role_id"`
	Permissions         PermissionMatrix `json:"permissions" db:"permissions"`
	PermissionsSyncedAt time.Time        `json:"permissions_synced_at" db:"permissions_synced_at"`
	IsActive            bool             `json:"is_active" db:"is_active"`
	IsEmailVerified     bool             `json:"is_email_verified" db:"is_email_verified"`
	FailedLoginAttempts int              `json:"failed_login_attempts" db:"failed_login_attempts"`
	LockoutExpiresAt    *time.Time       `json:"lockout_expires_at,omitempty" db:"lockout_expires_at"`
	LastLoginAt         *time.Time       `json:"last_login_at,omitempty" db:"last_login_at"`

	PasswordResetToken     *string    `json:"-" db:"password_reset_token"`
	PasswordResetExpiresAt *time.Time `json:"-" db:"password_reset_expires_at"`

	InviteToken      *string    `json:"-" db:"invite_token"`
	InviteExpiresAt  *time.Time `json:"-" db:"invite_expires_at"`
	InvitedBy        *uuid.UUID `json:"invited_by,omitempty" db:"invited_by"`
	InviteAcceptedAt *time.Time `json:"invite_accepted_at,omitempty" db:"invite_accepted_at"`

	EmailVerificationToken     *string    `json:"-" db:"email_verification_token"`
	EmailVerificationExpiresAt *time.Time `json:"-" db:"email_verification_expires_at"`
}

// IsInvited reports whether the account is waiting for its invitation to be accepted.
func (a *Account) IsInvited() bool {
	return !a.IsActive && a.InviteToken != nil
}

// AccountSummary is the public view of an account, never carrying secrets.
type AccountSummary struct {
	ID              uuid.UUID        `json:"id"`
	TenantID        uuid.UUID        `json:"tenant_id"`
	Code            string           `json:"code"`
	Email           string           `json:"email"`
	Name            string           `json:"name"`
	RoleID          uuid.UUID        `json:"role_id"`
	Permissions     PermissionMatrix `json:"permissions"`
	IsActive        bool             `json:"is_active"`
	IsEmailVerified bool             `json:"is_email_verified"`
	LastLoginAt     *time.Time       `json:"last_login_at,omitempty"`
}

func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		ID:              a.ID,
		TenantID:        a.TenantID,
		Code:            a.Code,
		Email:           a.Email,
		Name:            a.Name,
		RoleID:          a.RoleID,
		Permissions:     a.Permissions,
		IsActive:        a.IsActive,
		IsEmailVerified: a.IsEmailVerified,
		LastLoginAt:     a.LastLoginAt,
	}
}
