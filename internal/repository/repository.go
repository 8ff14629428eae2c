package repository

// Repositories bundles the stores of one storage driver.
type Repositories struct {
	Tenants  TenantRepository
	Accounts AccountRepository
	Roles    RoleRepository
	Orders   PaymentOrderRepository
	Outbox   OutboxRepository
}
