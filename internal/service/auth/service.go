package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/hire-api/internal/email"
	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/repository"
	"github.com/jwalitptl/hire-api/internal/service/audit"
	"github.com/jwalitptl/hire-api/internal/service/event"
	"github.com/jwalitptl/hire-api/internal/service/subscription"
	"github.com/jwalitptl/hire-api/pkg/auth"
	apperrors "github.com/jwalitptl/hire-api/pkg/errors"
	"github.com/jwalitptl/hire-api/pkg/metrics"
	"github.com/jwalitptl/hire-api/pkg/security"
)

const (
	InvitationTTL          = 7 * 24 * time.Hour
	ResetTokenTTL          = 1 * time.Hour
	VerificationTTL        = 48 * time.Hour
	MaxFailedLoginAttempts = 5
	LockoutDuration        = 15 * time.Minute
	BcryptCost             = 12
)

// Token flows recorded in metrics.
const (
	flowLogin      = "login"
	flowInvitation = "invitation"
)

type Config struct {
	// AppBaseURL prefixes the links sent in mails.
	AppBaseURL string
	Policy     *security.PasswordPolicy
	Lockout    *LockoutPolicy
	Now        func() time.Time
}

type Service struct {
	tenants  repository.TenantRepository
	accounts repository.AccountRepository
	roles    repository.RoleRepository
	jwtSvc   auth.JWTService
	hasher   security.PasswordHasher
	emailSvc email.Service
	subs     *subscription.Service
	auditor  *audit.Service
	events   *event.Service
	metrics  *metrics.Metrics
	policy   security.PasswordPolicy
	lockout  *LockoutTracker
	baseURL  string
	now      func() time.Time
}

func NewService(repos repository.Repositories, jwtSvc auth.JWTService, hasher security.PasswordHasher,
	emailSvc email.Service, subs *subscription.Service, auditor *audit.Service, m *metrics.Metrics, cfg Config) *Service {
	if hasher == nil {
		hasher = security.NewBcryptHasher(BcryptCost)
	}
	if m == nil {
		m = metrics.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	policy := security.DefaultPasswordPolicy()
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}
	lockout := DefaultLockoutPolicy()
	if cfg.Lockout != nil {
		lockout = *cfg.Lockout
	}

	return &Service{
		tenants:  repos.Tenants,
		accounts: repos.Accounts,
		roles:    repos.Roles,
		jwtSvc:   jwtSvc,
		hasher:   hasher,
		emailSvc: emailSvc,
		subs:     subs,
		auditor:  auditor,
		events:   event.NewService(repos.Outbox),
		metrics:  m,
		policy:   policy,
		lockout:  NewLockoutTracker(lockout, repos.Accounts),
		baseURL:  strings.TrimRight(cfg.AppBaseURL, "/"),
		now:      cfg.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) link(path, token string) string {
	return s.baseURL + path + "?token=" + url.QueryEscape(token)
}

// checkPassword applies the password policy, reporting every violated rule.
func (s *Service) checkPassword(password string) error {
	if violations := s.policy.Validate(password); len(violations) > 0 {
		details := make([]string, len(violations))
		for i, v := range violations {
			details[i] = "password " + v
		}
		return apperrors.Validation("password does not meet requirements", details...)
	}
	return nil
}

// loadTenant returns the tenant of an account, treating a missing tenant as inactive.
func (s *Service) loadTenant(ctx context.Context, account *model.Account) (*model.Tenant, error) {
	tenant, err := s.tenants.Get(ctx, account.TenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.AccountInactive("company account is inactive")
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to load tenant: %w", err))
	}
	return tenant, nil
}

// session issues a token for account and builds the login response.
func (s *Service) session(account *model.Account, tenant *model.Tenant, flow string) (*model.SessionResponse, error) {
	token, err := s.jwtSvc.GenerateSessionToken(account)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to generate token: %w", err))
	}
	s.metrics.TokensIssued.WithLabelValues(flow).Inc()

	return &model.SessionResponse{
		Account:   account.Summary(),
		Tenant:    tenant.Summary(),
		Token:     token,
		ExpiresIn: auth.SessionExpiresIn,
	}, nil
}

func warnMail(err error, kind string, account *model.Account) {
	log.Warn().Err(err).
		Str("account_id", account.ID.String()).
		Str("tenant_id", account.TenantID.String()).
		Str("mail", kind).
		Msg("failed to queue mail")
}
