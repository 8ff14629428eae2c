package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/hire-api/internal/repository"
)

// NewRepositories returns every postgres repository sharing db.
func NewRepositories(db *sqlx.DB) repository.Repositories {
	base := NewBaseRepository(db)
	return repository.Repositories{
		Tenants:  NewTenantRepository(base),
		Accounts: NewAccountRepository(base),
		Roles:    NewRoleRepository(base),
		Orders:   NewPaymentOrderRepository(base),
		Outbox:   NewOutboxRepository(base),
	}
}
