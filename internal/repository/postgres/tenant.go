package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/repository"
)

const tenantColumns = `id, name, domain, account_prefix, owner_account_id, is_active,
	plan, subscription_status, billing_interval, subscription_start, subscription_end,
	payment_order_id, payment_id, payment_signature, last_payment_at, next_payment_at,
	created_at, updated_at, deleted_at`

type tenantRepository struct {
	BaseRepository
}

func NewTenantRepository(base BaseRepository) repository.TenantRepository {
	return &tenantRepository{base}
}

func (r *tenantRepository) Create(ctx context.Context, tenant *model.Tenant) error {
	query := `
		INSERT INTO tenants (
			id, name, domain, account_prefix, owner_account_id, is_active,
			plan, subscription_status, billing_interval, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}
	now := time.Now()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		tenant.ID,
		tenant.Name,
		tenant.Domain,
		tenant.AccountPrefix,
		tenant.OwnerAccountID,
		tenant.IsActive,
		tenant.Plan,
		tenant.Status,
		tenant.BillingInterval,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", mapError(err))
	}
	return nil
}

func (r *tenantRepository) Get(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1 AND deleted_at IS NULL`

	var tenant model.Tenant
	if err := r.db.GetContext(ctx, &tenant, query, id); err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", mapError(err))
	}
	return &tenant, nil
}

func (r *tenantRepository) ExistsByDomain(ctx context.Context, domain string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM tenants WHERE domain = $1 AND deleted_at IS NULL)`, domain)
	if err != nil {
		return false, fmt.Errorf("failed to check tenant domain: %w", err)
	}
	return exists, nil
}

func (r *tenantRepository) ExistsByPrefix(ctx context.Context, prefix string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM tenants WHERE account_prefix = $1)`, prefix)
	if err != nil {
		return false, fmt.Errorf("failed to check account prefix: %w", err)
	}
	return exists, nil
}

func (r *tenantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	if err := expectOne(result); err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	return nil
}

func (r *tenantRepository) ActivateSubscription(ctx context.Context, a model.Activation) (*model.Tenant, bool, error) {
	var (
		tenant  model.Tenant
		applied bool
	)

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		lock := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`
		if err := tx.GetContext(ctx, &tenant, lock, a.Order.TenantID); err != nil {
			return mapError(err)
		}

		periodStart := a.PaidAt
		periodEnd := a.Order.BillingInterval.Next(periodStart)

		record := `
			INSERT INTO billing_records (
				id, tenant_id, order_id, payment_id, amount, currency,
				period_start, period_end, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (payment_id) DO NOTHING
		`
		result, err := tx.ExecContext(ctx, record,
			uuid.New(),
			a.Order.TenantID,
			a.Order.OrderID,
			a.PaymentID,
			a.Order.Amount,
			a.Order.Currency,
			periodStart,
			periodEnd,
			a.PaidAt,
		)
		if err != nil {
			return err
		}
		if rows, err := result.RowsAffected(); err != nil {
			return err
		} else if rows == 0 {
			return nil
		}

		update := `
			UPDATE tenants
			SET subscription_status = $2,
				plan = $3,
				billing_interval = $4,
				subscription_start = COALESCE(subscription_start, $5),
				subscription_end = $6,
				payment_order_id = $7,
				payment_id = $8,
				payment_signature = $9,
				last_payment_at = $5,
				next_payment_at = $6,
				updated_at = $5
			WHERE id = $1 AND payment_id IS DISTINCT FROM $8
			RETURNING ` + tenantColumns
		if err := tx.GetContext(ctx, &tenant, update,
			a.Order.TenantID,
			model.SubscriptionActive,
			a.Order.Plan,
			a.Order.BillingInterval,
			periodStart,
			periodEnd,
			a.Order.OrderID,
			a.PaymentID,
			a.Signature,
		); err != nil {
			return mapError(err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE payment_orders SET status = $2, payment_id = $3, updated_at = $4 WHERE order_id = $1`,
			a.Order.OrderID, model.OrderStatusPaid, a.PaymentID, a.PaidAt,
		); err != nil {
			return err
		}

		applied = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to activate subscription: %w", err)
	}
	return &tenant, applied, nil
}

func (r *tenantRepository) ListBillingRecords(ctx context.Context, tenantID uuid.UUID) ([]*model.BillingRecord, error) {
	query := `
		SELECT id, tenant_id, order_id, payment_id, amount, currency, period_start, period_end, created_at
		FROM billing_records
		WHERE tenant_id = $1
		ORDER BY period_start DESC
	`
	var records []*model.BillingRecord
	if err := r.db.SelectContext(ctx, &records, query, tenantID); err != nil {
		return nil, fmt.Errorf("failed to list billing records: %w", err)
	}
	return records, nil
}
