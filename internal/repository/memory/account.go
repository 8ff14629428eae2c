package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/repository"
)

type accountRepository struct {
	*Store
}

func NewAccountRepository(s *Store) repository.AccountRepository {
	return &accountRepository{s}
}

func (r *accountRepository) Create(_ context.Context, account *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if a.IsDeleted() {
			continue
		}
		if strings.EqualFold(a.Email, account.Email) {
			return repository.ErrDuplicate
		}
		if a.TenantID == account.TenantID && a.Code == account.Code {
			return repository.ErrDuplicate
		}
	}
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	r.accounts[account.ID] = copyAccount(account)
	return nil
}

// find returns the live stored account matching fn. Callers hold the lock.
func (r *accountRepository) find(fn func(a *model.Account) bool) (*model.Account, error) {
	for _, a := range r.accounts {
		if !a.IsDeleted() && fn(a) {
			return a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *accountRepository) lookup(fn func(a *model.Account) bool) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, err := r.find(fn)
	if err != nil {
		return nil, err
	}
	return copyAccount(a), nil
}

func (r *accountRepository) Get(_ context.Context, id uuid.UUID) (*model.Account, error) {
	return r.lookup(func(a *model.Account) bool { return a.ID == id })
}

func (r *accountRepository) GetByEmail(_ context.Context, email string) (*model.Account, error) {
	return r.lookup(func(a *model.Account) bool { return strings.EqualFold(a.Email, email) })
}

func (r *accountRepository) GetByInviteToken(_ context.Context, token string, now time.Time) (*model.Account, error) {
	return r.lookup(func(a *model.Account) bool {
		return !a.IsActive && matches(a.InviteToken, a.InviteExpiresAt, token, now)
	})
}

func (r *accountRepository) GetByResetToken(_ context.Context, token string, now time.Time) (*model.Account, error) {
	return r.lookup(func(a *model.Account) bool {
		return matches(a.PasswordResetToken, a.PasswordResetExpiresAt, token, now)
	})
}

func (r *accountRepository) GetByVerificationToken(_ context.Context, token string, now time.Time) (*model.Account, error) {
	return r.lookup(func(a *model.Account) bool {
		return matches(a.EmailVerificationToken, a.EmailVerificationExpiresAt, token, now)
	})
}

func matches(stored *string, expiresAt *time.Time, token string, now time.Time) bool {
	return stored != nil && *stored == token && expiresAt != nil && expiresAt.After(now)
}

func (r *accountRepository) SetResetToken(_ context.Context, id uuid.UUID, token string, expiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, err := r.find(func(a *model.Account) bool { return a.ID == id && a.IsActive })
	if err != nil {
		return false, nil
	}
	a.PasswordResetToken = &token
	a.PasswordResetExpiresAt = &expiresAt
	a.UpdatedAt = time.Now()
	return true, nil
}

func (r *accountRepository) SetVerificationToken(_ context.Context, id uuid.UUID, token string, expiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, err := r.find(func(a *model.Account) bool { return a.ID == id && !a.IsEmailVerified })
	if err != nil {
		return false, nil
	}
	a.EmailVerificationToken = &token
	a.EmailVerificationExpiresAt = &expiresAt
	a.UpdatedAt = time.Now()
	return true, nil
}

func (r *accountRepository) UpdatePermissions(_ context.Context, id uuid.UUID, permissions model.PermissionMatrix, syncedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, err := r.find(func(a *model.Account) bool { return a.ID == id })
	if err != nil {
		return err
	}
	a.Permissions = permissions.Clone()
	a.PermissionsSyncedAt = syncedAt
	a.UpdatedAt = syncedAt
	return nil
}

func (r *accountRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.accounts, id)
	return nil
}

func (r *accountRepository) DeleteExpiredInvitation(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, err := r.find(func(a *model.Account) bool {
		return a.ID == id && !a.IsActive && a.InviteAcceptedAt == nil &&
			a.InviteExpiresAt != nil && !a.InviteExpiresAt.After(now)
	})
	if err != nil {
		return false, nil
	}
	delete(r.accounts, a.ID)
	return true, nil
}

func (r *accountRepository) ExistsByCode(_ context.Context, tenantID uuid.UUID, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if a.TenantID == tenantID && a.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *accountRepository) CountByTenant(_ context.Context, tenantID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, a := range r.accounts {
		if a.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

func (r *accountRepository) RecordLoginFailure(_ context.Context, id uuid.UUID, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, err := r.find(func(a *model.Account) bool { return a.ID == id })
	if err != nil {
		return 0, nil, err
	}
	a.FailedLoginAttempts++
	if a.FailedLoginAttempts >= threshold {
		until := lockUntil
		a.LockoutExpiresAt = &until
	}
	a.UpdatedAt = time.Now()

	var lockout *time.Time
	if a.LockoutExpiresAt != nil {
		l := *a.LockoutExpiresAt
		lockout = &l
	}
	return a.FailedLoginAttempts, lockout, nil
}

func (r *accountRepository) RecordLoginSuccess(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, err := r.find(func(a *model.Account) bool { return a.ID == id })
	if err != nil {
		return err
	}
	a.FailedLoginAttempts = 0
	a.LockoutExpiresAt = nil
	a.LastLoginAt = &at
	a.UpdatedAt = at
	return nil
}

func (r *accountRepository) ActivateInvited(_ context.Context, id uuid.UUID, token, passwordHash string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, err := r.find(func(a *model.Account) bool {
		return a.ID == id && !a.IsActive && a.InviteToken != nil && *a.InviteToken == token
	})
	if err != nil {
		return false, nil
	}
	a.PasswordHash = passwordHash
	a.IsActive = true
	a.IsEmailVerified = true
	a.InviteToken = nil
	a.InviteExpiresAt = nil
	a.InviteAcceptedAt = &at
	a.UpdatedAt = at
	return true, nil
}

func (r *accountRepository) MarkEmailVerified(_ context.Context, id uuid.UUID, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, err := r.find(func(a *model.Account) bool {
		return a.ID == id && a.EmailVerificationToken != nil && *a.EmailVerificationToken == token
	})
	if err != nil {
		return false, nil
	}
	a.IsEmailVerified = true
	a.EmailVerificationToken = nil
	a.EmailVerificationExpiresAt = nil
	a.UpdatedAt = time.Now()
	return true, nil
}

func (r *accountRepository) ResetPassword(_ context.Context, id uuid.UUID, token, passwordHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, err := r.find(func(a *model.Account) bool {
		return a.ID == id && a.PasswordResetToken != nil && *a.PasswordResetToken == token
	})
	if err != nil {
		return false, nil
	}
	a.PasswordHash = passwordHash
	a.PasswordResetToken = nil
	a.PasswordResetExpiresAt = nil
	a.FailedLoginAttempts = 0
	a.LockoutExpiresAt = nil
	a.UpdatedAt = time.Now()
	return true, nil
}
