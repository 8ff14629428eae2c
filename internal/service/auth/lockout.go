package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/repository"
)

// LockoutPolicy locks an account for Duration once Threshold consecutive
// failed logins have been recorded.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: MaxFailedLoginAttempts, Duration: LockoutDuration}
}

// IsLocked reports whether a's lockout is still running at now.
func (p LockoutPolicy) IsLocked(a *model.Account, now time.Time) bool {
	return a.LockoutExpiresAt != nil && a.LockoutExpiresAt.After(now)
}

// Remaining is the number of failures left before the account locks.
func (p LockoutPolicy) Remaining(attempts int) int {
	if r := p.Threshold - attempts; r > 0 {
		return r
	}
	return 0
}

type FailureOutcome struct {
	Attempts    int
	Remaining   int
	Locked      bool
	LockedUntil *time.Time
}

// LockoutTracker persists login outcomes. The counter is only reset by a
// successful login or a password reset, never by the lockout running out.
type LockoutTracker struct {
	policy   LockoutPolicy
	accounts repository.AccountRepository
}

func NewLockoutTracker(policy LockoutPolicy, accounts repository.AccountRepository) *LockoutTracker {
	return &LockoutTracker{policy: policy, accounts: accounts}
}

func (t *LockoutTracker) Policy() LockoutPolicy {
	return t.policy
}

func (t *LockoutTracker) IsLocked(a *model.Account, now time.Time) bool {
	return t.policy.IsLocked(a, now)
}

// RegisterFailure records a failed password check and updates a in place.
func (t *LockoutTracker) RegisterFailure(ctx context.Context, a *model.Account, now time.Time) (FailureOutcome, error) {
	attempts, lockedUntil, err := t.accounts.RecordLoginFailure(ctx, a.ID, t.policy.Threshold, now.Add(t.policy.Duration))
	if err != nil {
		return FailureOutcome{}, fmt.Errorf("failed to record login failure: %w", err)
	}
	a.FailedLoginAttempts = attempts
	a.LockoutExpiresAt = lockedUntil

	return FailureOutcome{
		Attempts:    attempts,
		Remaining:   t.policy.Remaining(attempts),
		Locked:      t.policy.IsLocked(a, now),
		LockedUntil: lockedUntil,
	}, nil
}

// RegisterSuccess clears the counter and lockout and stamps the login time.
func (t *LockoutTracker) RegisterSuccess(ctx context.Context, a *model.Account, now time.Time) error {
	if err := t.accounts.RecordLoginSuccess(ctx, a.ID, now); err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	a.FailedLoginAttempts = 0
	a.LockoutExpiresAt = nil
	a.LastLoginAt = &now
	return nil
}
