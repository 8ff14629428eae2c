package subscription

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
	"github.com/jwalitptl/hire-api/pkg/auth"
	apperrors "github.com/jwalitptl/hire-api/pkg/errors"
	"github.com/jwalitptl/hire-api/pkg/metrics"
	"github.com/jwalitptl/hire-api/pkg/payment/razorpay"
)

// Activation outcomes recorded in metrics.
const (
	ActivationApplied   = "applied"
	ActivationDuplicate = "duplicate"
	ActivationRejected  = "rejected"
)

// Gateway is the part of the payment provider the service needs.
type Gateway interface {
	CreateOrder(ctx context.Context, req razorpay.OrderRequest) (*razorpay.Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error)
	VerifySignature(orderID, paymentID, signature string) bool
	KeyID() string
}

type Config struct {
	Currency string
	Catalog  Catalog
	Now      func() time.Time
}

type Service struct {
	tenants  repository.TenantRepository
	accounts repository.AccountRepository
	orders   repository.PaymentOrderRepository
	gateway  Gateway
	jwtSvc   auth.JWTService
	emailSvc email.Service
	auditor  *audit.Service
	events   *event.Service
	metrics  *metrics.Metrics
	currency string
	catalog  Catalog
	now      func() time.Time
}

func NewService(repos repository.Repositories, gateway Gateway, jwtSvc auth.JWTService,
	emailSvc email.Service, auditor *audit.Service, m *metrics.Metrics, cfg Config) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if cfg.Catalog == nil {
		cfg.Catalog = DefaultCatalog()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Service{
		tenants:  repos.Tenants,
		accounts: repos.Accounts,
		orders:   repos.Orders,
		gateway:  gateway,
		jwtSvc:   jwtSvc,
		emailSvc: emailSvc,
		auditor:  auditor,
		events:   event.NewService(repos.Outbox),
		metrics:  m,
		currency: cfg.Currency,
		catalog:  cfg.Catalog,
		now:      cfg.Now,
	}
}

// KeyID is the public gateway key handed to checkout clients.
func (s *Service) KeyID() string {
	return s.gateway.KeyID()
}

// Catalog lists the plans on offer.
func (s *Service) Catalog() Catalog {
	return s.catalog
}

// Currency is the currency every order is billed in.
func (s *Service) Currency() string {
	return s.currency
}

// ValidatePlan checks that plan is offered for interval.
func (s *Service) ValidatePlan(plan string, interval model.BillingInterval) error {
	if _, err := s.catalog.Price(plan, interval); err != nil {
		return apperrors.Validation("invalid plan", err.Error())
	}
	return nil
}

// CreateOrder opens a gateway order for one interval of plan and records
// which tenant it belongs to.
func (s *Service) CreateOrder(ctx context.Context, tenant *model.Tenant, plan string, interval model.BillingInterval) (*model.PaymentOrder, error) {
	amount, err := s.catalog.Price(plan, interval)
	if err != nil {
		return nil, apperrors.Validation("invalid plan", err.Error())
	}

	start := time.Now()
	gwOrder, err := s.gateway.CreateOrder(ctx, razorpay.OrderRequest{
		Amount:   amount,
		Currency: s.currency,
		Receipt:  receipt(tenant.ID, s.now()),
		Notes: map[string]string{
			"tenant_id": tenant.ID.String(),
			"plan":      plan,
			"interval":  string(interval),
		},
	})
	s.metrics.GatewayLatency.WithLabelValues("create_order").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	order := &model.PaymentOrder{
		OrderID:         gwOrder.ID,
		TenantID:        tenant.ID,
		Plan:            plan,
		BillingInterval: interval,
		Amount:          amount,
		Currency:        s.currency,
		Status:          model.OrderStatusCreated,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to store payment order: %w", err))
	}

	log.Info().
		Str("tenant_id", tenant.ID.String()).
		Str("order_id", order.OrderID).
		Str("amount", amount.StringFixed(2)).
		Msg("payment order created")

	return order, nil
}

// receipt is at most 40 characters as required by the gateway.
func receipt(tenantID uuid.UUID, now time.Time) string {
	return fmt.Sprintf("t_%s_%d", tenantID.String()[:8], now.Unix())
}

// CreateRenewalOrder opens an order for the caller's own tenant. An empty
// plan or interval keeps the current one.
func (s *Service) CreateRenewalOrder(ctx context.Context, caller model.Principal, req model.RenewalOrderRequest) (*model.OrderSummary, error) {
	if !caller.Can(model.ResourceSettings, model.ActionUpdate) {
		return nil, apperrors.Forbidden("insufficient permissions to manage billing")
	}

	tenant, err := s.tenants.Get(ctx, caller.TenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("tenant", err)
		}
		return nil, apperrors.Internal(err)
	}

	plan, interval := req.Plan, req.BillingInterval
	if plan == "" {
		plan = tenant.Plan
	}
	if interval == "" {
		interval = tenant.BillingInterval
	}

	order, err := s.CreateOrder(ctx, tenant, plan, interval)
	if err != nil {
		return nil, err
	}
	summary := order.Summary(s.gateway.KeyID())
	return &summary, nil
}

// VerifyPayment applies a checkout callback. The tenant is resolved from the
// stored order only. Repeated delivery of the same payment leaves the
// subscription unchanged and reports Applied=false.
func (s *Service) VerifyPayment(ctx context.Context, req model.VerifyPaymentRequest) (*model.ActivationResponse, error) {
	order, err := s.orders.GetByOrderID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("payment order", err)
		}
		return nil, apperrors.Internal(err)
	}

	if !s.gateway.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
		s.reject(ctx, order, req.PaymentID, "signature_mismatch")
		return nil, apperrors.Validation("invalid payment signature")
	}

	if order.Status == model.OrderStatusPaid && order.PaymentID != nil && *order.PaymentID != req.PaymentID {
		s.reject(ctx, order, req.PaymentID, "order_already_paid")
		return nil, apperrors.Conflict("order has already been paid")
	}

	start := time.Now()
	payment, err := s.gateway.FetchPayment(ctx, req.PaymentID)
	s.metrics.GatewayLatency.WithLabelValues("fetch_payment").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if !payment.IsCaptured(order.OrderID) {
		reason := "payment_" + payment.Status
		if payment.OrderID != order.OrderID {
			reason = "payment_order_mismatch"
		}
		s.reject(ctx, order, req.PaymentID, reason)
		return nil, apperrors.PaymentRequired("payment not captured")
	}

	now := s.now()
	tenant, applied, err := s.tenants.ActivateSubscription(ctx, model.Activation{
		Order:     order,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
		PaidAt:    now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("tenant", err)
		}
		return nil, apperrors.Internal(err)
	}

	logger := log.With().
		Str("tenant_id", tenant.ID.String()).
		Str("order_id", order.OrderID).
		Str("payment_id", req.PaymentID).
		Logger()

	owner, err := s.accounts.Get(ctx, tenant.OwnerAccountID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Internal(err)
	}

	if applied {
		s.metrics.Activations.WithLabelValues(ActivationApplied).Inc()
		logger.Info().Msg("subscription activated")
		s.auditor.Log(ctx, audit.Entry{
			Action:   audit.ActionPaymentVerified,
			TenantID: tenant.ID,
			Outcome:  ActivationApplied,
			Metadata: map[string]string{
				"order_id":   order.OrderID,
				"payment_id": req.PaymentID,
				"plan":       order.Plan,
			},
		})
		err := s.events.Emit(ctx, model.EventSubscriptionActivated, event.SubscriptionActivated{
			TenantID:        tenant.ID,
			Plan:            order.Plan,
			BillingInterval: order.BillingInterval,
			OrderID:         order.OrderID,
			PaymentID:       req.PaymentID,
			EndDate:         tenant.EndDate,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("failed to queue activation event")
		}
		if owner != nil {
			s.sendConfirmation(ctx, owner, tenant, order, req.PaymentID)
		}
	} else {
		s.metrics.Activations.WithLabelValues(ActivationDuplicate).Inc()
		logger.Info().Msg("payment already applied")
	}

	resp := &model.ActivationResponse{
		Tenant:  tenant.Summary(),
		Applied: applied,
	}

	// A session is only handed out for an owner who could also log in.
	if owner != nil && owner.IsActive && owner.IsEmailVerified {
		token, err := s.jwtSvc.GenerateSessionToken(owner)
		if err != nil {
			return nil, apperrors.Internal(fmt.Errorf("failed to generate token: %w", err))
		}
		s.metrics.TokensIssued.WithLabelValues("activation").Inc()
		resp.Token = token
		resp.ExpiresIn = auth.SessionExpiresIn
	}

	return resp, nil
}

func (s *Service) reject(ctx context.Context, order *model.PaymentOrder, paymentID, reason string) {
	s.metrics.Activations.WithLabelValues(ActivationRejected).Inc()
	log.Warn().
		Str("tenant_id", order.TenantID.String()).
		Str("order_id", order.OrderID).
		Str("payment_id", paymentID).
		Str("reason", reason).
		Msg("payment rejected")
	s.auditor.Log(ctx, audit.Entry{
		Action:   audit.ActionPaymentRejected,
		TenantID: order.TenantID,
		Outcome:  ActivationRejected,
		Reason:   reason,
		Metadata: map[string]string{
			"order_id":   order.OrderID,
			"payment_id": paymentID,
		},
	})
}

func (s *Service) sendConfirmation(ctx context.Context, owner *model.Account, tenant *model.Tenant, order *model.PaymentOrder, paymentID string) {
	data := email.PaymentConfirmationData{
		Name:       owner.Name,
		TenantName: tenant.Name,
		Plan:       order.Plan,
		Amount:     order.Amount.StringFixed(2),
		Currency:   order.Currency,
		PaymentID:  paymentID,
	}
	if tenant.EndDate != nil {
		data.PeriodEnd = *tenant.EndDate
	}
	if err := s.emailSvc.SendPaymentConfirmation(ctx, owner.Email, data); err != nil {
		log.Warn().Err(err).
			Str("tenant_id", tenant.ID.String()).
			Msg("failed to queue payment confirmation")
	}
}

// BillingHistory lists the applied payments of the caller's tenant.
func (s *Service) BillingHistory(ctx context.Context, caller model.Principal) ([]*model.BillingRecord, error) {
	if !caller.Can(model.ResourceSettings, model.ActionRead) {
		return nil, apperrors.Forbidden("insufficient permissions to view billing")
	}
	records, err := s.tenants.ListBillingRecords(ctx, caller.TenantID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return records, nil
}
