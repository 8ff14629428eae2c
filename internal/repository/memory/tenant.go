package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/repository"
)

type tenantRepository struct {
	*Store
}

func NewTenantRepository(s *Store) repository.TenantRepository {
	return &tenantRepository{s}
}

func (r *tenantRepository) Create(_ context.Context, tenant *model.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tenants {
		if t.AccountPrefix == tenant.AccountPrefix {
			return repository.ErrDuplicate
		}
		if tenant.Domain != nil && t.Domain != nil && *t.Domain == *tenant.Domain && !t.IsDeleted() {
			return repository.ErrDuplicate
		}
	}
	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}
	now := time.Now()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now
	r.tenants[tenant.ID] = copyTenant(tenant)
	return nil
}

func (r *tenantRepository) Get(_ context.Context, id uuid.UUID) (*model.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tenants[id]
	if !ok || t.IsDeleted() {
		return nil, repository.ErrNotFound
	}
	return copyTenant(t), nil
}

func (r *tenantRepository) ExistsByDomain(_ context.Context, domain string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tenants {
		if t.Domain != nil && *t.Domain == domain && !t.IsDeleted() {
			return true, nil
		}
	}
	return false, nil
}

func (r *tenantRepository) ExistsByPrefix(_ context.Context, prefix string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tenants {
		if t.AccountPrefix == prefix {
			return true, nil
		}
	}
	return false, nil
}

func (r *tenantRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tenants[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.tenants, id)
	return nil
}

func (r *tenantRepository) ActivateSubscription(_ context.Context, a model.Activation) (*model.Tenant, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tenants[a.Order.TenantID]
	if !ok || t.IsDeleted() {
		return nil, false, repository.ErrNotFound
	}
	if _, seen := r.billing[a.PaymentID]; seen {
		return copyTenant(t), false, nil
	}

	start := a.PaidAt
	end := a.Order.BillingInterval.Next(start)
	r.billing[a.PaymentID] = &model.BillingRecord{
		ID:          uuid.New(),
		TenantID:    t.ID,
		OrderID:     a.Order.OrderID,
		PaymentID:   a.PaymentID,
		Amount:      a.Order.Amount,
		Currency:    a.Order.Currency,
		PeriodStart: start,
		PeriodEnd:   end,
		CreatedAt:   a.PaidAt,
	}

	orderID, paymentID, signature := a.Order.OrderID, a.PaymentID, a.Signature
	t.Status = model.SubscriptionActive
	t.Plan = a.Order.Plan
	t.BillingInterval = a.Order.BillingInterval
	if t.StartDate == nil {
		t.StartDate = &start
	}
	t.EndDate = &end
	t.PaymentDetails = model.PaymentDetails{
		OrderID:       &orderID,
		PaymentID:     &paymentID,
		Signature:     &signature,
		LastPaymentAt: &start,
		NextPaymentAt: &end,
	}
	t.UpdatedAt = a.PaidAt

	if o, ok := r.orders[a.Order.OrderID]; ok {
		o.Status = model.OrderStatusPaid
		o.PaymentID = &paymentID
		o.UpdatedAt = a.PaidAt
	}
	return copyTenant(t), true, nil
}

func (r *tenantRepository) ListBillingRecords(_ context.Context, tenantID uuid.UUID) ([]*model.BillingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var records []*model.BillingRecord
	for _, b := range r.billing {
		if b.TenantID == tenantID {
			c := *b
			records = append(records, &c)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].PeriodStart.After(records[j].PeriodStart)
	})
	return records, nil
}
