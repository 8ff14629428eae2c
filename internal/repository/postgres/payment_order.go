package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/repository"
)

type paymentOrderRepository struct {
	BaseRepository
}

func NewPaymentOrderRepository(base BaseRepository) repository.PaymentOrderRepository {
	return &paymentOrderRepository{base}
}

func (r *paymentOrderRepository) Create(ctx context.Context, order *model.PaymentOrder) error {
	query := `
		INSERT INTO payment_orders (
			id, order_id, tenant_id, plan, billing_interval, amount, currency, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.Status == "" {
		order.Status = model.OrderStatusCreated
	}
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		order.ID,
		order.OrderID,
		order.TenantID,
		order.Plan,
		order.BillingInterval,
		order.Amount,
		order.Currency,
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment order: %w", mapError(err))
	}
	return nil
}

func (r *paymentOrderRepository) GetByOrderID(ctx context.Context, orderID string) (*model.PaymentOrder, error) {
	query := `
		SELECT id, order_id, tenant_id, plan, billing_interval, amount, currency, status, payment_id, created_at, updated_at
		FROM payment_orders
		WHERE order_id = $1
	`
	var order model.PaymentOrder
	if err := r.db.GetContext(ctx, &order, query, orderID); err != nil {
		return nil, fmt.Errorf("failed to get payment order: %w", mapError(err))
	}
	return &order, nil
}

func (r *paymentOrderRepository) DeleteByTenant(ctx context.Context, tenantID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM payment_orders WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("failed to delete payment orders: %w", err)
	}
	return nil
}
