// Package memory keeps every repository in process memory. It backs the
// "memory" storage driver and the service tests.
package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/repository"
)

// Store is the shared state behind the memory repositories. A single mutex
// guards it so that each repository call is atomic.
type Store struct {
	mu       sync.Mutex
	tenants  map[uuid.UUID]*model.Tenant
	accounts map[uuid.UUID]*model.Account
	roles    map[uuid.UUID]*model.Role
	orders   map[string]*model.PaymentOrder
	billing  map[string]*model.BillingRecord
	outbox   []*model.OutboxEvent
}

func NewStore() *Store {
	return &Store{
		tenants:  map[uuid.UUID]*model.Tenant{},
		accounts: map[uuid.UUID]*model.Account{},
		roles:    map[uuid.UUID]*model.Role{},
		orders:   map[string]*model.PaymentOrder{},
		billing:  map[string]*model.BillingRecord{},
	}
}

func copyTenant(t *model.Tenant) *model.Tenant {
	c := *t
	return &c
}

func copyAccount(a *model.Account) *model.Account {
	c := *a
	c.Permissions = a.Permissions.Clone()
	return &c
}

func copyRole(r *model.Role) *model.Role {
	c := *r
	c.Permissions = r.Permissions.Clone()
	return &c
}

func copyOrder(o *model.PaymentOrder) *model.PaymentOrder {
	c := *o
	return &c
}

// Repositories returns every memory repository backed by s.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Tenants:  NewTenantRepository(s),
		Accounts: NewAccountRepository(s),
		Roles:    NewRoleRepository(s),
		Orders:   NewPaymentOrderRepository(s),
		Outbox:   NewOutboxRepository(s),
	}
}
