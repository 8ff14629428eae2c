package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/repository"
)

const accountColumns = `id, tenant_id, code, email, name, password_hash, role_id,
	permissions, permissions_synced_at, is_active, is_email_verified,
	failed_login_attempts, lockout_expires_at, last_login_at,
	password_reset_token, password_reset_expires_at,
	invite_token, invite_expires_at, invited_by, invite_accepted_at,
	email_verification_token, email_verification_expires_at,
	created_at, updated_at, deleted_at`

type accountRepository struct {
	BaseRepository
}

func NewAccountRepository(base BaseRepository) repository.AccountRepository {
	return &accountRepository{base}
}

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	query := `
		INSERT INTO accounts (
			id, tenant_id, code, email, name, password_hash, role_id,
			permissions, permissions_synced_at, is_active, is_email_verified,
			invite_token, invite_expires_at, invited_by,
			email_verification_token, email_verification_expires_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.TenantID,
		account.Code,
		account.Email,
		account.Name,
		account.PasswordHash,
		account.RoleID,
		account.Permissions,
		account.PermissionsSyncedAt,
		account.IsActive,
		account.IsEmailVerified,
		account.InviteToken,
		account.InviteExpiresAt,
		account.InvitedBy,
		account.EmailVerificationToken,
		account.EmailVerificationExpiresAt,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", mapError(err))
	}
	return nil
}

func (r *accountRepository) getOne(ctx context.Context, where string, args ...interface{}) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + where + ` AND deleted_at IS NULL`

	var account model.Account
	if err := r.db.GetContext(ctx, &account, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get account: %w", mapError(err))
	}
	return &account, nil
}

func (r *accountRepository) Get(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	return r.getOne(ctx, `lower(email) = lower($1)`, email)
}

func (r *accountRepository) GetByInviteToken(ctx context.Context, token string, now time.Time) (*model.Account, error) {
	return r.getOne(ctx, `invite_token = $1 AND invite_expires_at > $2 AND is_active = FALSE`, token, now)
}

func (r *accountRepository) GetByResetToken(ctx context.Context, token string, now time.Time) (*model.Account, error) {
	return r.getOne(ctx, `password_reset_token = $1 AND password_reset_expires_at > $2`, token, now)
}

func (r *accountRepository) GetByVerificationToken(ctx context.Context, token string, now time.Time) (*model.Account, error) {
	return r.getOne(ctx, `email_verification_token = $1 AND email_verification_expires_at > $2`, token, now)
}

func (r *accountRepository) SetResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) (bool, error) {
	query := `
		UPDATE accounts
		SET password_reset_token = $2,
			password_reset_expires_at = $3,
			updated_at = NOW()
		WHERE id = $1 AND is_active = TRUE AND deleted_at IS NULL
	`
	return r.consume(ctx, "store reset token", query, id, token, expiresAt)
}

func (r *accountRepository) SetVerificationToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) (bool, error) {
	query := `
		UPDATE accounts
		SET email_verification_token = $2,
			email_verification_expires_at = $3,
			updated_at = NOW()
		WHERE id = $1 AND is_email_verified = FALSE AND deleted_at IS NULL
	`
	return r.consume(ctx, "store verification token", query, id, token, expiresAt)
}

func (r *accountRepository) UpdatePermissions(ctx context.Context, id uuid.UUID, permissions model.PermissionMatrix, syncedAt time.Time) error {
	query := `
		UPDATE accounts
		SET permissions = $2,
			permissions_synced_at = $3,
			updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, id, permissions, syncedAt)
	if err != nil {
		return fmt.Errorf("failed to update permissions: %w", mapError(err))
	}
	if err := expectOne(result); err != nil {
		return fmt.Errorf("failed to update permissions: %w", err)
	}
	return nil
}

func (r *accountRepository) DeleteExpiredInvitation(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query := `
		DELETE FROM accounts
		WHERE id = $1
			AND is_active = FALSE
			AND invite_accepted_at IS NULL
			AND invite_expires_at <= $2
			AND deleted_at IS NULL
	`
	return r.consume(ctx, "delete expired invitation", query, id, now)
}

func (r *accountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if err := expectOne(result); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

func (r *accountRepository) ExistsByCode(ctx context.Context, tenantID uuid.UUID, code string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE tenant_id = $1 AND code = $2)`, tenantID, code)
	if err != nil {
		return false, fmt.Errorf("failed to check account code: %w", err)
	}
	return exists, nil
}

func (r *accountRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM accounts WHERE tenant_id = $1`, tenantID); err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}

func (r *accountRepository) RecordLoginFailure(ctx context.Context, id uuid.UUID, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	query := `
		UPDATE accounts
		SET failed_login_attempts = failed_login_attempts + 1,
			lockout_expires_at = CASE
				WHEN failed_login_attempts + 1 >= $2 THEN $3
				ELSE lockout_expires_at
			END,
			updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING failed_login_attempts, lockout_expires_at
	`
	var attempts int
	var lockout *time.Time
	if err := r.db.QueryRowxContext(ctx, query, id, threshold, lockUntil).Scan(&attempts, &lockout); err != nil {
		return 0, nil, fmt.Errorf("failed to record login failure: %w", mapError(err))
	}
	return attempts, lockout, nil
}

func (r *accountRepository) RecordLoginSuccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE accounts
		SET failed_login_attempts = 0,
			lockout_expires_at = NULL,
			last_login_at = $2,
			updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to record login success: %w", err)
	}
	if err := expectOne(result); err != nil {
		return fmt.Errorf("failed to record login success: %w", err)
	}
	return nil
}

func (r *accountRepository) ActivateInvited(ctx context.Context, id uuid.UUID, token, passwordHash string, at time.Time) (bool, error) {
	query := `
		UPDATE accounts
		SET password_hash = $3,
			is_active = TRUE,
			is_email_verified = TRUE,
			invite_token = NULL,
			invite_expires_at = NULL,
			invite_accepted_at = $4,
			updated_at = $4
		WHERE id = $1 AND invite_token = $2 AND is_active = FALSE AND deleted_at IS NULL
	`
	return r.consume(ctx, "accept invitation", query, id, token, passwordHash, at)
}

func (r *accountRepository) MarkEmailVerified(ctx context.Context, id uuid.UUID, token string) (bool, error) {
	query := `
		UPDATE accounts
		SET is_email_verified = TRUE,
			email_verification_token = NULL,
			email_verification_expires_at = NULL,
			updated_at = NOW()
		WHERE id = $1 AND email_verification_token = $2 AND deleted_at IS NULL
	`
	return r.consume(ctx, "verify email", query, id, token)
}

func (r *accountRepository) ResetPassword(ctx context.Context, id uuid.UUID, token, passwordHash string) (bool, error) {
	query := `
		UPDATE accounts
		SET password_hash = $3,
			password_reset_token = NULL,
			password_reset_expires_at = NULL,
			failed_login_attempts = 0,
			lockout_expires_at = NULL,
			updated_at = NOW()
		WHERE id = $1 AND password_reset_token = $2 AND deleted_at IS NULL
	`
	return r.consume(ctx, "reset password", query, id, token, passwordHash)
}

// consume runs a guarded statement and reports whether it matched a row.
func (r *accountRepository) consume(ctx context.Context, op, query string, args ...interface{}) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to %s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to %s: %w", op, err)
	}
	return rows == 1, nil
}
