package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/hire-api/internal/email"
	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/repository"
	"github.com/jwalitptl/hire-api/internal/service/audit"
	apperrors "github.com/jwalitptl/hire-api/pkg/errors"
	"github.com/jwalitptl/hire-api/pkg/security"
)

// ForgotPassword mails a reset link. It succeeds for unknown addresses so
// callers cannot probe which emails are registered.
func (s *Service) ForgotPassword(ctx context.Context, req model.ForgotPasswordRequest) error {
	account, err := s.accounts.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Debug().Msg("password reset requested for unknown email")
			return nil
		}
		return apperrors.Internal(err)
	}
	if !account.IsActive {
		return nil
	}

	token, err := security.NewToken()
	if err != nil {
		return apperrors.Internal(err)
	}
	expires := s.now().Add(ResetTokenTTL)
	stored, err := s.accounts.SetResetToken(ctx, account.ID, token, expires)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("failed to store reset token: %w", err))
	}
	if !stored {
		return nil
	}

	s.auditor.Log(ctx, audit.Entry{
		Action:   audit.ActionPasswordResetAsked,
		TenantID: account.TenantID,
		TargetID: account.ID,
	})

	err = s.emailSvc.SendPasswordReset(ctx, account.Email, email.LinkData{
		Name:      account.Name,
		Link:      s.link("/reset-password", token),
		ExpiresAt: expires,
	})
	if err != nil {
		warnMail(err, email.TemplatePasswordReset, account)
	}
	return nil
}

// ResetPassword replaces the password using a reset token. It also clears
// any lockout so the owner can sign in right away.
func (s *Service) ResetPassword(ctx context.Context, req model.ResetPasswordRequest) error {
	account, err := s.accounts.GetByResetToken(ctx, req.Token, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.InvalidToken("invalid or expired reset token")
		}
		return apperrors.Internal(err)
	}

	if err := s.checkPassword(req.Password); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return apperrors.Internal(err)
	}

	ok, err := s.accounts.ResetPassword(ctx, account.ID, req.Token, hash)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("failed to reset password: %w", err))
	}
	if !ok {
		return apperrors.InvalidToken("invalid or expired reset token")
	}

	log.Info().
		Str("account_id", account.ID.String()).
		Str("tenant_id", account.TenantID.String()).
		Msg("password reset")
	s.auditor.Log(ctx, audit.Entry{
		Action:   audit.ActionPasswordReset,
		ActorID:  account.ID,
		TenantID: account.TenantID,
	})
	return nil
}
