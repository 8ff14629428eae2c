package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/hire-api/internal/email"
	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/repository"
	"github.com/jwalitptl/hire-api/internal/service/audit"
	"github.com/jwalitptl/hire-api/internal/service/event"
	"github.com/jwalitptl/hire-api/internal/service/subscription"
	apperrors "github.com/jwalitptl/hire-api/pkg/errors"
	"github.com/jwalitptl/hire-api/pkg/security"
)

const maxCodeAttempts = 5

// Invite creates an inactive account in the inviter's tenant carrying a copy
// of the role's permissions, and mails the invitation link.
func (s *Service) Invite(ctx context.Context, inviter model.Principal, req model.InviteRequest) (*model.Account, error) {
	if !inviter.Can(model.ResourceAccounts, model.ActionCreate) {
		return nil, apperrors.Forbidden("insufficient permissions to invite accounts")
	}

	now := s.now()
	addr := normalizeEmail(req.Email)
	lapsed, err := s.accounts.GetByEmail(ctx, addr)
	switch {
	case err == nil:
		if !invitationLapsed(lapsed, now) {
			return nil, apperrors.Conflict("an account with this email already exists")
		}
	case errors.Is(err, repository.ErrNotFound):
		lapsed = nil
	default:
		return nil, apperrors.Internal(err)
	}

	role, err := s.roles.Get(ctx, inviter.TenantID, req.RoleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("role", err)
		}
		return nil, apperrors.Internal(err)
	}

	tenant, err := s.tenants.Get(ctx, inviter.TenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("tenant", err)
		}
		return nil, apperrors.Internal(err)
	}

	// A lapsed invitation no longer holds the email.
	if lapsed != nil {
		removed, err := s.accounts.DeleteExpiredInvitation(ctx, lapsed.ID, now)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		if !removed {
			return nil, apperrors.Conflict("an account with this email already exists")
		}
		log.Info().
			Str("account_id", lapsed.ID.String()).
			Str("tenant_id", lapsed.TenantID.String()).
			Msg("expired invitation replaced")
	}

	token, err := security.NewToken()
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	code, err := s.nextAccountCode(ctx, tenant)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	expires := now.Add(InvitationTTL)
	invitedBy := inviter.AccountID
	account := &model.Account{
		TenantID:            tenant.ID,
		Code:                code,
		Email:               addr,
		Name:                req.Name,
		RoleID:              role.ID,
		Permissions:         role.Permissions.Clone(),
		PermissionsSyncedAt: now,
		InviteToken:         &token,
		InviteExpiresAt:     &expires,
		InvitedBy:           &invitedBy,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("an account with this email already exists")
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to create account: %w", err))
	}

	log.Info().
		Str("account_id", account.ID.String()).
		Str("tenant_id", tenant.ID.String()).
		Str("role", role.Name).
		Msg("account invited")
	s.auditor.Log(ctx, audit.Entry{
		Action:   audit.ActionAccountInvited,
		ActorID:  inviter.AccountID,
		TenantID: tenant.ID,
		TargetID: account.ID,
		Metadata: map[string]string{"role": role.Name, "code": code},
	})
	err = s.events.Emit(ctx, model.EventAccountInvited, event.AccountInvited{
		TenantID:  tenant.ID,
		AccountID: account.ID,
		Code:      code,
		RoleID:    role.ID,
		InvitedBy: inviter.AccountID,
	})
	if err != nil {
		log.Warn().Err(err).Str("account_id", account.ID.String()).Msg("failed to queue invitation event")
	}

	err = s.emailSvc.SendInvitation(ctx, account.Email, email.InvitationData{
		Name:       account.Name,
		TenantName: tenant.Name,
		RoleName:   role.Name,
		Link:       s.link("/accept-invitation", token),
		ExpiresAt:  expires,
	})
	if err != nil {
		warnMail(err, email.TemplateInvitation, account)
	}

	return account, nil
}

// invitationLapsed reports whether a is an invitation that expired unaccepted.
func invitationLapsed(a *model.Account, now time.Time) bool {
	return !a.IsActive && a.InviteAcceptedAt == nil &&
		a.InviteExpiresAt != nil && !a.InviteExpiresAt.After(now)
}

// nextAccountCode returns the next free "<PREFIX>-<NNNN>" code of tenant.
func (s *Service) nextAccountCode(ctx context.Context, tenant *model.Tenant) (string, error) {
	count, err := s.accounts.CountByTenant(ctx, tenant.ID)
	if err != nil {
		return "", fmt.Errorf("failed to count accounts: %w", err)
	}

	for i := 1; i <= maxCodeAttempts; i++ {
		code := fmt.Sprintf("%s-%04d", tenant.AccountPrefix, count+i)
		exists, err := s.accounts.ExistsByCode(ctx, tenant.ID, code)
		if err != nil {
			return "", fmt.Errorf("failed to check account code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return fmt.Sprintf("%s-%d", tenant.AccountPrefix, s.now().UnixMilli()), nil
}

// AcceptInvitation sets the password of an invited account, activates it
// and signs it in. The invitation token can only be used once.
func (s *Service) AcceptInvitation(ctx context.Context, req model.AcceptInvitationRequest) (*model.SessionResponse, error) {
	now := s.now()

	account, err := s.accounts.GetByInviteToken(ctx, req.Token, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.InvalidToken("invalid or expired invitation")
		}
		return nil, apperrors.Internal(err)
	}

	tenant, err := s.loadTenant(ctx, account)
	if err != nil {
		return nil, err
	}
	if err := subscription.Evaluate(tenant, now).Err(); err != nil {
		return nil, err
	}

	if err := s.checkPassword(req.Password); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	ok, err := s.accounts.ActivateInvited(ctx, account.ID, req.Token, hash, now)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to activate account: %w", err))
	}
	if !ok {
		return nil, apperrors.InvalidToken("invalid or expired invitation")
	}

	account.PasswordHash = hash
	account.IsActive = true
	account.IsEmailVerified = true
	account.InviteToken = nil
	account.InviteExpiresAt = nil
	account.InviteAcceptedAt = &now

	s.auditor.Log(ctx, audit.Entry{
		Action:   audit.ActionInvitationAccepted,
		ActorID:  account.ID,
		TenantID: account.TenantID,
	})
	log.Info().
		Str("account_id", account.ID.String()).
		Str("tenant_id", account.TenantID.String()).
		Msg("invitation accepted")

	return s.session(account, tenant, flowInvitation)
}

// ResyncPermissions replaces an account's permission snapshot with the
// current permissions of its role.
func (s *Service) ResyncPermissions(ctx context.Context, actor model.Principal, accountID uuid.UUID) (*model.AccountSummary, error) {
	if !actor.Can(model.ResourceRoles, model.ActionUpdate) {
		return nil, apperrors.Forbidden("insufficient permissions to update account permissions")
	}

	account, err := s.accounts.Get(ctx, accountID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Internal(err)
	}
	if err != nil || account.TenantID != actor.TenantID {
		return nil, apperrors.NotFound("account", err)
	}

	role, err := s.roles.Get(ctx, account.TenantID, account.RoleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("role", err)
		}
		return nil, apperrors.Internal(err)
	}

	account.Permissions = role.Permissions.Clone()
	account.PermissionsSyncedAt = s.now()
	if err := s.accounts.UpdatePermissions(ctx, account.ID, account.Permissions, account.PermissionsSyncedAt); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to update permissions: %w", err))
	}
	if account, err = s.accounts.Get(ctx, accountID); err != nil {
		return nil, apperrors.Internal(err)
	}

	s.auditor.Log(ctx, audit.Entry{
		Action:   audit.ActionPermissionsResync,
		ActorID:  actor.AccountID,
		TenantID: account.TenantID,
		TargetID: account.ID,
		Metadata: map[string]string{"role": role.Name},
	})

	summary := account.Summary()
	return &summary, nil
}

// ListRoles returns the roles of the caller's tenant, for picking the role of
// an invitation.
func (s *Service) ListRoles(ctx context.Context, caller model.Principal) ([]*model.Role, error) {
	if !caller.Can(model.ResourceRoles, model.ActionRead) {
		return nil, apperrors.Forbidden("insufficient permissions to view roles")
	}
	roles, err := s.roles.List(ctx, caller.TenantID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return roles, nil
}
