package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/repository"
	"github.com/jwalitptl/hire-api/internal/service/audit"
	"github.com/jwalitptl/hire-api/internal/service/subscription"
	apperrors "github.com/jwalitptl/hire-api/pkg/errors"
	"github.com/jwalitptl/hire-api/pkg/metrics"
)

// Login verifies credentials and issues a session. Account state and the
// tenant's subscription are checked before the password, and a running
// lockout rejects even the correct password.
func (s *Service) Login(ctx context.Context, req model.LoginRequest) (*model.SessionResponse, error) {
	now := s.now()

	account, err := s.accounts.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.loginRejected(ctx, nil, metrics.LoginInvalidCredentials, "unknown_email")
			return nil, apperrors.Authentication("invalid credentials")
		}
		s.metrics.LoginAttempts.WithLabelValues(metrics.LoginError).Inc()
		return nil, apperrors.Internal(fmt.Errorf("failed to load account: %w", err))
	}

	if !account.IsActive {
		s.loginRejected(ctx, account, metrics.LoginInactive, "account_inactive")
		return nil, apperrors.AccountInactive("account is not active")
	}
	if !account.IsEmailVerified {
		s.loginRejected(ctx, account, metrics.LoginUnverified, "email_unverified")
		return nil, apperrors.EmailVerificationRequired("email address has not been verified")
	}

	tenant, err := s.loadTenant(ctx, account)
	if err != nil {
		s.loginRejected(ctx, account, metrics.LoginInactive, "tenant_unavailable")
		return nil, err
	}
	if d := subscription.Evaluate(tenant, now); !d.Allowed {
		s.loginRejected(ctx, account, metrics.LoginPaymentRequired, d.Code)
		return nil, d.Err()
	}

	if s.lockout.IsLocked(account, now) {
		s.loginRejected(ctx, account, metrics.LoginLocked, "locked")
		return nil, apperrors.AccountLocked(fmt.Sprintf("account is locked until %s", account.LockoutExpiresAt.UTC().Format("15:04 MST")))
	}

	if err := s.hasher.Compare(account.PasswordHash, req.Password); err != nil {
		outcome, ferr := s.lockout.RegisterFailure(ctx, account, now)
		if ferr != nil {
			s.metrics.LoginAttempts.WithLabelValues(metrics.LoginError).Inc()
			return nil, apperrors.Internal(ferr)
		}
		if outcome.Locked {
			s.metrics.Lockouts.Inc()
			s.loginRejected(ctx, account, metrics.LoginLocked, "too_many_attempts")
			s.auditor.Log(ctx, audit.Entry{
				Action:   audit.ActionAccountLocked,
				TenantID: account.TenantID,
				TargetID: account.ID,
				Outcome:  "locked",
				Metadata: map[string]string{"attempts": fmt.Sprint(outcome.Attempts)},
			})
			return nil, apperrors.AccountLocked(fmt.Sprintf(
				"account locked after too many failed attempts, try again in %s", s.lockout.Policy().Duration))
		}
		s.loginRejected(ctx, account, metrics.LoginInvalidCredentials, "bad_password")
		return nil, apperrors.Authentication(fmt.Sprintf("invalid credentials, %d attempts remaining", outcome.Remaining))
	}

	if err := s.lockout.RegisterSuccess(ctx, account, now); err != nil {
		s.metrics.LoginAttempts.WithLabelValues(metrics.LoginError).Inc()
		return nil, apperrors.Internal(err)
	}

	resp, err := s.session(account, tenant, flowLogin)
	if err != nil {
		return nil, err
	}

	s.metrics.LoginAttempts.WithLabelValues(metrics.LoginSuccess).Inc()
	log.Info().
		Str("account_id", account.ID.String()).
		Str("tenant_id", account.TenantID.String()).
		Msg("login succeeded")
	s.auditor.Log(ctx, audit.Entry{
		Action:   audit.ActionLoginSucceeded,
		ActorID:  account.ID,
		TenantID: account.TenantID,
		Outcome:  metrics.LoginSuccess,
	})

	return resp, nil
}

func (s *Service) loginRejected(ctx context.Context, account *model.Account, result, reason string) {
	s.metrics.LoginAttempts.WithLabelValues(result).Inc()

	event := log.Info()
	if result == metrics.LoginLocked {
		event = log.Warn()
	}
	entry := audit.Entry{
		Action:  audit.ActionLoginFailed,
		Outcome: result,
		Reason:  reason,
	}
	event = event.Str("result", result).Str("reason", reason)
	if account != nil {
		event = event.Dict("account", zerolog.Dict().
			Str("id", account.ID.String()).
			Str("tenant_id", account.TenantID.String()).
			Int("failed_attempts", account.FailedLoginAttempts))
		entry.TargetID = account.ID
		entry.TenantID = account.TenantID
	}
	event.Msg("login rejected")
	s.auditor.Log(ctx, entry)
}
