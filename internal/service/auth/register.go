package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/hire-api/internal/email"
	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/repository"
	"github.com/jwalitptl/hire-api/internal/service/audit"
	apperrors "github.com/jwalitptl/hire-api/pkg/errors"
	"github.com/jwalitptl/hire-api/pkg/security"
)

const (
	maxPrefixLength   = 4
	maxPrefixAttempts = 20
	maxTenantAttempts = 2
)

// Register creates a tenant awaiting payment together with its default roles,
// an unverified administrator and the first payment order. A failure at any
// step removes what was already created.
func (s *Service) Register(ctx context.Context, req model.RegisterRequest) (*model.RegisterResponse, error) {
	if err := s.checkPassword(req.Password); err != nil {
		return nil, err
	}
	if err := s.subs.ValidatePlan(req.Plan, req.BillingInterval); err != nil {
		return nil, err
	}

	addr := normalizeEmail(req.Email)
	if _, err := s.accounts.GetByEmail(ctx, addr); err == nil {
		return nil, apperrors.Conflict("email is already registered")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Internal(err)
	}

	var domain *string
	if req.Domain != nil && strings.TrimSpace(*req.Domain) != "" {
		d := strings.ToLower(strings.TrimSpace(*req.Domain))
		exists, err := s.tenants.ExistsByDomain(ctx, d)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		if exists {
			return nil, apperrors.Conflict("domain is already registered")
		}
		domain = &d
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	verifyToken, err := security.NewToken()
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	now := s.now()
	adminID := uuid.New()
	tenant := &model.Tenant{
		Name:           strings.TrimSpace(req.CompanyName),
		Domain:         domain,
		OwnerAccountID: adminID,
		IsActive:       true,
		Subscription: model.Subscription{
			Plan:            req.Plan,
			Status:          model.SubscriptionPendingPayment,
			BillingInterval: req.BillingInterval,
		},
	}
	tenant.ID = uuid.New()

	var undo []func(context.Context) error
	fail := func(cause error) error {
		s.compensate(ctx, tenant.ID, undo)
		return cause
	}

	if err := s.createTenant(ctx, tenant, req.CompanyName); err != nil {
		return nil, err
	}
	prefix := tenant.AccountPrefix
	undo = append(undo, func(ctx context.Context) error { return s.tenants.Delete(ctx, tenant.ID) })

	undo = append(undo, func(ctx context.Context) error { return s.roles.DeleteByTenant(ctx, tenant.ID) })
	var adminRole *model.Role
	for _, role := range model.DefaultRoles(tenant.ID) {
		if err := s.roles.Create(ctx, role); err != nil {
			return nil, fail(apperrors.Internal(fmt.Errorf("failed to create role %s: %w", role.Name, err)))
		}
		if role.Name == model.RoleAdmin {
			adminRole = role
		}
	}
	if adminRole == nil {
		return nil, fail(apperrors.Internal(errors.New("default roles carry no admin role")))
	}

	verifyExpires := now.Add(VerificationTTL)
	admin := &model.Account{
		TenantID:                   tenant.ID,
		Code:                       fmt.Sprintf("%s-%04d", prefix, 1),
		Email:                      addr,
		Name:                       req.Name,
		PasswordHash:               hash,
		RoleID:                     adminRole.ID,
		Permissions:                adminRole.Permissions.Clone(),
		PermissionsSyncedAt:        now,
		IsActive:                   true,
		EmailVerificationToken:     &verifyToken,
		EmailVerificationExpiresAt: &verifyExpires,
	}
	admin.ID = adminID
	if err := s.accounts.Create(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fail(apperrors.Conflict("email is already registered"))
		}
		return nil, fail(apperrors.Internal(fmt.Errorf("failed to create account: %w", err)))
	}
	undo = append(undo, func(ctx context.Context) error { return s.accounts.Delete(ctx, admin.ID) })

	order, err := s.subs.CreateOrder(ctx, tenant, req.Plan, req.BillingInterval)
	if err != nil {
		return nil, fail(err)
	}

	log.Info().
		Str("tenant_id", tenant.ID.String()).
		Str("account_id", admin.ID.String()).
		Str("plan", req.Plan).
		Msg("tenant registered")
	s.auditor.Log(ctx, audit.Entry{
		Action:   audit.ActionTenantRegistered,
		ActorID:  admin.ID,
		TenantID: tenant.ID,
		Metadata: map[string]string{"plan": req.Plan, "order_id": order.OrderID},
	})

	s.sendVerification(ctx, admin, verifyToken)

	return &model.RegisterResponse{
		Tenant:  tenant.Summary(),
		Account: admin.Summary(),
		Order:   order.Summary(s.subs.KeyID()),
	}, nil
}

// createTenant stores tenant under a freshly derived account prefix. A
// duplicate on the prefix alone means a concurrent registration took it, so
// the prefix is derived again.
func (s *Service) createTenant(ctx context.Context, tenant *model.Tenant, company string) error {
	for attempt := 1; attempt <= maxTenantAttempts; attempt++ {
		prefix, err := s.accountPrefix(ctx, company)
		if err != nil {
			return apperrors.Internal(err)
		}
		tenant.AccountPrefix = prefix

		err = s.tenants.Create(ctx, tenant)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return apperrors.Internal(fmt.Errorf("failed to create tenant: %w", err))
		}
		if tenant.Domain != nil {
			taken, derr := s.tenants.ExistsByDomain(ctx, *tenant.Domain)
			if derr != nil {
				return apperrors.Internal(derr)
			}
			if taken {
				return apperrors.Conflict("domain is already registered")
			}
		}
		log.Warn().Str("account_prefix", prefix).Int("attempt", attempt).Msg("account prefix taken concurrently")
	}
	return apperrors.Conflict("registration collided with a concurrent request, please retry")
}

// compensate runs undo in reverse order. It ignores cancellation of ctx so a
// client disconnect does not leave a half registered tenant behind.
func (s *Service) compensate(ctx context.Context, tenantID uuid.UUID, undo []func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	for i := len(undo) - 1; i >= 0; i-- {
		if err := undo[i](ctx); err != nil && !errors.Is(err, repository.ErrNotFound) {
			log.Error().Err(err).
				Str("tenant_id", tenantID.String()).
				Msg("failed to roll back registration")
		}
	}
}

// accountPrefix derives a unique account code prefix from the company name,
// e.g. "Acme Corp" becomes "ACME", then "ACME2" if taken.
func (s *Service) accountPrefix(ctx context.Context, company string) (string, error) {
	var b strings.Builder
	for _, r := range company {
		if b.Len() == maxPrefixLength {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	base := b.String()
	if base == "" {
		base = "ORG"
	}

	candidate := base
	for i := 2; i <= maxPrefixAttempts+1; i++ {
		exists, err := s.tenants.ExistsByPrefix(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check account prefix: %w", err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = base + strconv.Itoa(i)
	}
	return base + strconv.FormatInt(s.now().UnixMilli()%1e6, 36), nil
}

// VerifyEmail confirms the mailbox of an account. Tokens are single use.
func (s *Service) VerifyEmail(ctx context.Context, req model.VerifyEmailRequest) error {
	account, err := s.accounts.GetByVerificationToken(ctx, req.Token, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.InvalidToken("invalid or expired verification token")
		}
		return apperrors.Internal(err)
	}

	ok, err := s.accounts.MarkEmailVerified(ctx, account.ID, req.Token)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("failed to verify email: %w", err))
	}
	if !ok {
		return apperrors.InvalidToken("invalid or expired verification token")
	}

	s.auditor.Log(ctx, audit.Entry{
		Action:   audit.ActionEmailVerified,
		ActorID:  account.ID,
		TenantID: account.TenantID,
	})
	return nil
}

// ResendVerification issues a fresh verification link. Like ForgotPassword it
// reports success for unknown or already verified addresses.
func (s *Service) ResendVerification(ctx context.Context, req model.ResendVerificationRequest) error {
	account, err := s.accounts.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return apperrors.Internal(err)
	}
	if account.IsEmailVerified || !account.IsActive {
		return nil
	}

	token, err := security.NewToken()
	if err != nil {
		return apperrors.Internal(err)
	}
	expires := s.now().Add(VerificationTTL)
	stored, err := s.accounts.SetVerificationToken(ctx, account.ID, token, expires)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("failed to store verification token: %w", err))
	}
	if !stored {
		return nil
	}
	account.EmailVerificationExpiresAt = &expires

	s.sendVerification(ctx, account, token)
	return nil
}

func (s *Service) sendVerification(ctx context.Context, account *model.Account, token string) {
	expires := s.now().Add(VerificationTTL)
	if account.EmailVerificationExpiresAt != nil {
		expires = *account.EmailVerificationExpiresAt
	}
	err := s.emailSvc.SendVerification(ctx, account.Email, email.LinkData{
		Name:      account.Name,
		Link:      s.link("/verify-email", token),
		ExpiresAt: expires,
	})
	if err != nil {
		warnMail(err, email.TemplateVerification, account)
	}
}
