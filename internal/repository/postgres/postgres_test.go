package postgres

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/repository"
)

func setupMockDB(t *testing.T) (BaseRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewBaseRepository(sqlx.NewDb(db, "postgres")), mock
}

func columns(list string) []string {
	parts := strings.Split(list, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func tenantRow(id uuid.UUID, status model.SubscriptionStatus, paymentID interface{}) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(columns(tenantColumns)).AddRow(
		id.String(), "Acme", nil, "ACME", uuid.New().String(), true,
		"starter", string(status), "month", nil, nil,
		"order_1", paymentID, nil, nil, nil,
		now, now, nil,
	)
}

func TestAccountGetByEmailNotFound(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewAccountRepository(base)

	mock.ExpectQuery(`FROM accounts WHERE lower\(email\) = lower\(\$1\) AND deleted_at IS NULL`).
		WithArgs("ghost@acme.test").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ghost@acme.test")

	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountCreateDuplicate(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewAccountRepository(base)

	mock.ExpectExec(`INSERT INTO accounts`).
		WillReturnError(&pq.Error{Code: uniqueViolation})

	err := repo.Create(context.Background(), &model.Account{
		TenantID:    uuid.New(),
		Email:       "bob@acme.test",
		Permissions: model.PermissionMatrix{},
	})

	assert.ErrorIs(t, err, repository.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordLoginFailure(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewAccountRepository(base)

	id := uuid.New()
	lockUntil := time.Now().Add(15 * time.Minute).UTC()

	mock.ExpectQuery(`UPDATE accounts SET failed_login_attempts = failed_login_attempts \+ 1`).
		WithArgs(id, 5, lockUntil).
		WillReturnRows(sqlmock.NewRows([]string{"failed_login_attempts", "lockout_expires_at"}).
			AddRow(5, lockUntil))

	attempts, lockout, err := repo.RecordLoginFailure(context.Background(), id, 5, lockUntil)

	require.NoError(t, err)
	assert.Equal(t, 5, attempts)
	require.NotNil(t, lockout)
	assert.True(t, lockout.Equal(lockUntil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetPasswordConsumedToken(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewAccountRepository(base)

	id := uuid.New()
	mock.ExpectExec(`UPDATE accounts SET password_hash = \$3`).
		WithArgs(id, "token", "hash").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.ResetPassword(context.Background(), id, "token", "hash")

	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetVerificationTokenSkipsVerifiedAccount(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewAccountRepository(base)

	id := uuid.New()
	expires := time.Now().Add(48 * time.Hour)
	mock.ExpectExec(`UPDATE accounts SET email_verification_token = \$2, email_verification_expires_at = \$3, updated_at = NOW\(\) WHERE id = \$1 AND is_email_verified = FALSE`).
		WithArgs(id, "token", expires).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.SetVerificationToken(context.Background(), id, "token", expires)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteExpiredInvitation(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewAccountRepository(base)

	id := uuid.New()
	now := time.Now()
	mock.ExpectExec(`DELETE FROM accounts WHERE id = \$1 AND is_active = FALSE AND invite_accepted_at IS NULL AND invite_expires_at <= \$2`).
		WithArgs(id, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.DeleteExpiredInvitation(context.Background(), id, now)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func testActivation(tenantID uuid.UUID) model.Activation {
	return model.Activation{
		Order: &model.PaymentOrder{
			OrderID:         "order_1",
			TenantID:        tenantID,
			Plan:            "starter",
			BillingInterval: model.BillingMonthly,
			Amount:          decimal.RequireFromString("49.00"),
			Currency:        "INR",
		},
		PaymentID: "pay_1",
		Signature: "sig",
		PaidAt:    time.Now(),
	}
}

func TestActivateSubscriptionApplies(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewTenantRepository(base)

	tenantID := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM tenants WHERE id = \$1 AND deleted_at IS NULL FOR UPDATE`).
		WithArgs(tenantID).
		WillReturnRows(tenantRow(tenantID, model.SubscriptionPendingPayment, nil))
	mock.ExpectExec(`INSERT INTO billing_records`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`UPDATE tenants SET subscription_status = \$2`).
		WillReturnRows(tenantRow(tenantID, model.SubscriptionActive, "pay_1"))
	mock.ExpectExec(`UPDATE payment_orders SET status = \$2`).
		WithArgs("order_1", model.OrderStatusPaid, "pay_1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tenant, applied, err := repo.ActivateSubscription(context.Background(), testActivation(tenantID))

	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, model.SubscriptionActive, tenant.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivateSubscriptionDuplicatePayment(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewTenantRepository(base)

	tenantID := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(tenantID).
		WillReturnRows(tenantRow(tenantID, model.SubscriptionActive, "pay_1"))
	mock.ExpectExec(`INSERT INTO billing_records`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	tenant, applied, err := repo.ActivateSubscription(context.Background(), testActivation(tenantID))

	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, model.SubscriptionActive, tenant.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivateSubscriptionRollsBackOnError(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewTenantRepository(base)

	tenantID := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(tenantID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, _, err := repo.ActivateSubscription(context.Background(), testActivation(tenantID))

	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxClaimPending(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewOutboxRepository(base)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "event_type", "payload", "status", "error_message", "retry_count", "retry_at",
		"created_at", "updated_at", "processed_at",
	}).AddRow(uuid.New().String(), model.EventMailInvitation, []byte(`{"to":"bob@acme.test"}`),
		"pending", nil, 0, now, now, now, nil)

	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WithArgs(10, sqlmock.AnyArg()).
		WillReturnRows(rows)

	events, err := repo.ClaimPending(context.Background(), 10, time.Minute)

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventMailInvitation, events[0].EventType)
	assert.NoError(t, mock.ExpectationsWereMet())
}
