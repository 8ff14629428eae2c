package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/repository"
)

type paymentOrderRepository struct {
	*Store
}

func NewPaymentOrderRepository(s *Store) repository.PaymentOrderRepository {
	return &paymentOrderRepository{s}
}

func (r *paymentOrderRepository) Create(_ context.Context, order *model.PaymentOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[order.OrderID]; ok {
		return repository.ErrDuplicate
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.Status == "" {
		order.Status = model.OrderStatusCreated
	}
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	r.orders[order.OrderID] = copyOrder(order)
	return nil
}

func (r *paymentOrderRepository) GetByOrderID(_ context.Context, orderID string) (*model.PaymentOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyOrder(o), nil
}

func (r *paymentOrderRepository) DeleteByTenant(_ context.Context, tenantID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, o := range r.orders {
		if o.TenantID == tenantID {
			delete(r.orders, id)
		}
	}
	return nil
}
