package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hire-api/internal/model"
)

var (
	// ErrNotFound is returned when no live record matches a lookup.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate record")
)

// All repository interfaces in one file
type (
	TenantRepository interface {
		Create(ctx context.Context, tenant *model.Tenant) error
		Get(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
		ExistsByDomain(ctx context.Context, domain string) (bool, error)
		ExistsByPrefix(ctx context.Context, prefix string) (bool, error)
		// Delete removes the tenant row. Only used to compensate a failed registration.
		Delete(ctx context.Context, id uuid.UUID) error
		// ActivateSubscription applies a verified payment. It is a no-op returning
		// applied=false when the payment id has already been applied.
		ActivateSubscription(ctx context.Context, activation model.Activation) (tenant *model.Tenant, applied bool, err error)
		ListBillingRecords(ctx context.Context, tenantID uuid.UUID) ([]*model.BillingRecord, error)
	}

	AccountRepository interface {
		Create(ctx context.Context, account *model.Account) error
		Get(ctx context.Context, id uuid.UUID) (*model.Account, error)
		GetByEmail(ctx context.Context, email string) (*model.Account, error)
		// GetByInviteToken only matches inactive accounts whose invitation is unexpired at now.
		GetByInviteToken(ctx context.Context, token string, now time.Time) (*model.Account, error)
		GetByResetToken(ctx context.Context, token string, now time.Time) (*model.Account, error)
		GetByVerificationToken(ctx context.Context, token string, now time.Time) (*model.Account, error)
		// SetResetToken replaces the pending reset token of an active account.
		SetResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) (bool, error)
		// SetVerificationToken replaces the pending verification token. It reports
		// false when the email is already verified.
		SetVerificationToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) (bool, error)
		UpdatePermissions(ctx context.Context, id uuid.UUID, permissions model.PermissionMatrix, syncedAt time.Time) error
		// Delete hard deletes. Only used to compensate a failed registration.
		Delete(ctx context.Context, id uuid.UUID) error
		// DeleteExpiredInvitation removes an invited account whose invitation
		// lapsed at now without being accepted.
		DeleteExpiredInvitation(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
		ExistsByCode(ctx context.Context, tenantID uuid.UUID, code string) (bool, error)
		CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error)

		// RecordLoginFailure increments the failure counter and sets the lockout
		// expiry to lockUntil once the counter reaches threshold. It returns the
		// stored counter and lockout expiry after the update.
		RecordLoginFailure(ctx context.Context, id uuid.UUID, threshold int, lockUntil time.Time) (int, *time.Time, error)
		// RecordLoginSuccess resets the counter, clears the lockout and stamps the login time.
		RecordLoginSuccess(ctx context.Context, id uuid.UUID, at time.Time) error
		// ActivateInvited sets the password, activates the account and consumes the
		// invitation. It reports false when the token was consumed concurrently.
		ActivateInvited(ctx context.Context, id uuid.UUID, token, passwordHash string, at time.Time) (bool, error)
		// MarkEmailVerified consumes the verification token.
		MarkEmailVerified(ctx context.Context, id uuid.UUID, token string) (bool, error)
		// ResetPassword replaces the hash, consumes the reset token and clears any lockout.
		// It reports false when the token was consumed concurrently.
		ResetPassword(ctx context.Context, id uuid.UUID, token, passwordHash string) (bool, error)
	}

	RoleRepository interface {
		Create(ctx context.Context, role *model.Role) error
		Get(ctx context.Context, tenantID, id uuid.UUID) (*model.Role, error)
		GetByName(ctx context.Context, tenantID uuid.UUID, name string) (*model.Role, error)
		List(ctx context.Context, tenantID uuid.UUID) ([]*model.Role, error)
		DeleteByTenant(ctx context.Context, tenantID uuid.UUID) error
	}

	PaymentOrderRepository interface {
		Create(ctx context.Context, order *model.PaymentOrder) error
		GetByOrderID(ctx context.Context, orderID string) (*model.PaymentOrder, error)
		DeleteByTenant(ctx context.Context, tenantID uuid.UUID) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ClaimPending leases up to limit due events so that concurrent workers
		// do not pick them up again before lease has elapsed.
		ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
