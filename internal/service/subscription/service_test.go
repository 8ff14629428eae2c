package subscription

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hire-api/internal/email"
	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/repository"
	"github.com/jwalitptl/hire-api/internal/repository/memory"
	"github.com/jwalitptl/hire-api/internal/service/audit"
	"github.com/jwalitptl/hire-api/pkg/auth"
	apperrors "github.com/jwalitptl/hire-api/pkg/errors"
	"github.com/jwalitptl/hire-api/pkg/payment/razorpay"
)

const gatewaySecret = "rzp_secret"

func decimalTwelve() decimal.Decimal { return decimal.NewFromInt(12) }

type fakeGateway struct {
	mu       sync.Mutex
	payments map[string]*razorpay.Payment
	created  []razorpay.OrderRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: map[string]*razorpay.Payment{}}
}

func (g *fakeGateway) CreateOrder(_ context.Context, req razorpay.OrderRequest) (*razorpay.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, req)
	return &razorpay.Order{
		ID:       fmt.Sprintf("order_%d", len(g.created)),
		Amount:   razorpay.ToMinorUnits(req.Amount),
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

func (g *fakeGateway) FetchPayment(_ context.Context, id string) (*razorpay.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[id]
	if !ok {
		return nil, fmt.Errorf("%w: payment %s not found", razorpay.ErrGateway, id)
	}
	return p, nil
}

func (g *fakeGateway) VerifySignature(orderID, paymentID, sig string) bool {
	return razorpay.VerifySignature(gatewaySecret, orderID, paymentID, sig)
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) capture(orderID, paymentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[paymentID] = &razorpay.Payment{ID: paymentID, OrderID: orderID, Status: razorpay.PaymentCaptured, Captured: true}
}

type mockEmail struct {
	mock.Mock
}

func (m *mockEmail) SendInvitation(ctx context.Context, to string, data email.InvitationData) error {
	return m.Called(ctx, to, data).Error(0)
}

func (m *mockEmail) SendPasswordReset(ctx context.Context, to string, data email.LinkData) error {
	return m.Called(ctx, to, data).Error(0)
}

func (m *mockEmail) SendVerification(ctx context.Context, to string, data email.LinkData) error {
	return m.Called(ctx, to, data).Error(0)
}

func (m *mockEmail) SendPaymentConfirmation(ctx context.Context, to string, data email.PaymentConfirmationData) error {
	return m.Called(ctx, to, data).Error(0)
}

type fixture struct {
	svc     *Service
	repos   repository.Repositories
	gateway *fakeGateway
	mail    *mockEmail
	jwt     auth.JWTService
	tenant  *model.Tenant
	owner   *model.Account
	now     time.Time
}

func newFixture(t *testing.T, ownerVerified bool) *fixture {
	t.Helper()
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repos := memory.NewStore().Repositories()
	gateway := newFakeGateway()
	mail := &mockEmail{}
	jwtSvc := auth.NewJWTService("test-secret", "hire-api", auth.WithClock(func() time.Time { return now }))

	ownerID := uuid.New()
	tenant := &model.Tenant{Name: "Acme", AccountPrefix: "ACME", IsActive: true, OwnerAccountID: ownerID}
	tenant.Plan = "growth"
	tenant.Status = model.SubscriptionPendingPayment
	tenant.BillingInterval = model.BillingMonthly
	require.NoError(t, repos.Tenants.Create(ctx, tenant))

	owner := &model.Account{
		TenantID:        tenant.ID,
		Code:            "ACME-0001",
		Email:           "alice@acme.test",
		Name:            "Alice",
		PasswordHash:    "hash",
		IsActive:        true,
		IsEmailVerified: ownerVerified,
		Permissions:     model.PermissionMatrix{model.ResourceSettings: {model.ActionUpdate: true}},
	}
	owner.ID = ownerID
	require.NoError(t, repos.Accounts.Create(ctx, owner))

	svc := NewService(repos, gateway, jwtSvc, mail, audit.NewService(nil), nil, Config{
		Now: func() time.Time { return now },
	})

	return &fixture{svc: svc, repos: repos, gateway: gateway, mail: mail, jwt: jwtSvc, tenant: tenant, owner: owner, now: now}
}

func (f *fixture) order(t *testing.T) *model.PaymentOrder {
	t.Helper()
	order, err := f.svc.CreateOrder(context.Background(), f.tenant, "growth", model.BillingMonthly)
	require.NoError(t, err)
	return order
}

func callback(orderID, paymentID string) model.VerifyPaymentRequest {
	return model.VerifyPaymentRequest{
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: razorpay.Sign(gatewaySecret, orderID, paymentID),
	}
}

func TestCreateOrderUsesCatalogPrice(t *testing.T) {
	f := newFixture(t, true)

	order := f.order(t)

	assert.Equal(t, "order_1", order.OrderID)
	assert.Equal(t, f.tenant.ID, order.TenantID)
	assert.True(t, decimal.RequireFromString("7999").Equal(order.Amount))
	assert.Equal(t, "INR", order.Currency)
	require.Len(t, f.gateway.created, 1)
	assert.Equal(t, f.tenant.ID.String(), f.gateway.created[0].Notes["tenant_id"])
	assert.LessOrEqual(t, len(f.gateway.created[0].Receipt), 40)

	stored, err := f.repos.Orders.GetByOrderID(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCreated, stored.Status)
}

func TestCreateOrderRejectsUnknownPlan(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.svc.CreateOrder(context.Background(), f.tenant, "platinum", model.BillingMonthly)

	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	assert.Empty(t, f.gateway.created)
}

func TestVerifyPaymentActivatesTenant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	order := f.order(t)
	f.gateway.capture(order.OrderID, "pay_1")
	f.mail.On("SendPaymentConfirmation", mock.Anything, "alice@acme.test", mock.MatchedBy(func(d email.PaymentConfirmationData) bool {
		return d.PaymentID == "pay_1" && d.Amount == "7999.00" && d.TenantName == "Acme"
	})).Return(nil).Once()

	resp, err := f.svc.VerifyPayment(ctx, callback(order.OrderID, "pay_1"))
	require.NoError(t, err)

	assert.True(t, resp.Applied)
	assert.Equal(t, model.SubscriptionActive, resp.Tenant.Subscription.Status)
	require.NotNil(t, resp.Tenant.Subscription.EndDate)
	assert.Equal(t, f.now.AddDate(0, 1, 0), *resp.Tenant.Subscription.EndDate)
	assert.Equal(t, "7d", resp.ExpiresIn)

	claims, err := f.jwt.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, f.owner.ID, claims.AccountID)
	assert.Equal(t, f.tenant.ID, claims.TenantID)

	stored, err := f.repos.Orders.GetByOrderID(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, stored.Status)

	tenant, err := f.repos.Tenants.Get(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.True(t, Evaluate(tenant, f.now).Allowed)
	f.mail.AssertExpectations(t)
}

func TestVerifyPaymentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	order := f.order(t)
	f.gateway.capture(order.OrderID, "pay_1")
	f.mail.On("SendPaymentConfirmation", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	first, err := f.svc.VerifyPayment(ctx, callback(order.OrderID, "pay_1"))
	require.NoError(t, err)

	f.svc.now = func() time.Time { return f.now.Add(48 * time.Hour) }
	second, err := f.svc.VerifyPayment(ctx, callback(order.OrderID, "pay_1"))
	require.NoError(t, err)

	assert.True(t, first.Applied)
	assert.False(t, second.Applied)
	assert.Equal(t, *first.Tenant.Subscription.EndDate, *second.Tenant.Subscription.EndDate)
	assert.NotEmpty(t, second.Token)

	records, err := f.repos.Tenants.ListBillingRecords(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	f.mail.AssertNumberOfCalls(t, "SendPaymentConfirmation", 1)

	events, err := f.repos.Outbox.ClaimPending(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventSubscriptionActivated, events[0].EventType)
}

func TestVerifyPaymentConcurrentDelivery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	order := f.order(t)
	f.gateway.capture(order.OrderID, "pay_1")
	f.mail.On("SendPaymentConfirmation", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var applied int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.svc.VerifyPayment(ctx, callback(order.OrderID, "pay_1"))
			if assert.NoError(t, err) && resp.Applied {
				atomic.AddInt32(&applied, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), applied)
	f.mail.AssertNumberOfCalls(t, "SendPaymentConfirmation", 1)
}

func TestVerifyPaymentRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown order", func(t *testing.T) {
		f := newFixture(t, true)
		_, err := f.svc.VerifyPayment(ctx, callback("order_missing", "pay_1"))
		assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	})

	t.Run("bad signature", func(t *testing.T) {
		f := newFixture(t, true)
		order := f.order(t)
		f.gateway.capture(order.OrderID, "pay_1")

		req := callback(order.OrderID, "pay_1")
		req.Signature = razorpay.Sign("wrong", order.OrderID, "pay_1")
		_, err := f.svc.VerifyPayment(ctx, req)

		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, appErr.StatusCode())
		assert.Equal(t, "invalid payment signature", appErr.Message)
	})

	t.Run("not captured", func(t *testing.T) {
		f := newFixture(t, true)
		order := f.order(t)
		f.gateway.payments["pay_1"] = &razorpay.Payment{ID: "pay_1", OrderID: order.OrderID, Status: "authorized"}

		_, err := f.svc.VerifyPayment(ctx, callback(order.OrderID, "pay_1"))
		assert.True(t, apperrors.Is(err, apperrors.KindPaymentRequired))

		tenant, err := f.repos.Tenants.Get(ctx, f.tenant.ID)
		require.NoError(t, err)
		assert.Equal(t, model.SubscriptionPendingPayment, tenant.Status)
	})

	t.Run("payment for another order", func(t *testing.T) {
		f := newFixture(t, true)
		order := f.order(t)
		f.gateway.capture("order_other", "pay_1")

		_, err := f.svc.VerifyPayment(ctx, callback(order.OrderID, "pay_1"))
		assert.True(t, apperrors.Is(err, apperrors.KindPaymentRequired))
	})

	t.Run("second payment for a paid order", func(t *testing.T) {
		f := newFixture(t, true)
		order := f.order(t)
		f.gateway.capture(order.OrderID, "pay_1")
		f.gateway.capture(order.OrderID, "pay_2")
		f.mail.On("SendPaymentConfirmation", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		_, err := f.svc.VerifyPayment(ctx, callback(order.OrderID, "pay_1"))
		require.NoError(t, err)
		_, err = f.svc.VerifyPayment(ctx, callback(order.OrderID, "pay_2"))
		assert.True(t, apperrors.Is(err, apperrors.KindConflict))
	})
}

func TestVerifyPaymentWithholdsTokenFromUnverifiedOwner(t *testing.T) {
	f := newFixture(t, false)
	order := f.order(t)
	f.gateway.capture(order.OrderID, "pay_1")
	f.mail.On("SendPaymentConfirmation", mock.Anything, mock.Anything, mock.Anything).Return(fmt.Errorf("smtp down"))

	resp, err := f.svc.VerifyPayment(context.Background(), callback(order.OrderID, "pay_1"))
	require.NoError(t, err)

	assert.True(t, resp.Applied)
	assert.Empty(t, resp.Token)
	assert.Equal(t, model.SubscriptionActive, resp.Tenant.Subscription.Status)
}

func TestCreateRenewalOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	caller := model.Principal{AccountID: f.owner.ID, TenantID: f.tenant.ID, Permissions: f.owner.Permissions}
	summary, err := f.svc.CreateRenewalOrder(ctx, caller, model.RenewalOrderRequest{BillingInterval: model.BillingYearly})
	require.NoError(t, err)

	assert.Equal(t, "growth", summary.Plan)
	assert.Equal(t, model.BillingYearly, summary.BillingInterval)
	assert.Equal(t, "rzp_test_key", summary.KeyID)

	_, err = f.svc.CreateRenewalOrder(ctx, model.Principal{TenantID: f.tenant.ID}, model.RenewalOrderRequest{})
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
}
