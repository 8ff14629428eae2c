package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/repository"
)

type roleRepository struct {
	*Store
}

func NewRoleRepository(s *Store) repository.RoleRepository {
	return &roleRepository{s}
}

func (r *roleRepository) Create(_ context.Context, role *model.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.roles {
		if existing.TenantID == role.TenantID && existing.Name == role.Name {
			return repository.ErrDuplicate
		}
	}
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	now := time.Now()
	role.CreatedAt = now
	role.UpdatedAt = now
	r.roles[role.ID] = copyRole(role)
	return nil
}

func (r *roleRepository) Get(_ context.Context, tenantID, id uuid.UUID) (*model.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	role, ok := r.roles[id]
	if !ok || role.TenantID != tenantID || role.IsDeleted() {
		return nil, repository.ErrNotFound
	}
	return copyRole(role), nil
}

func (r *roleRepository) GetByName(_ context.Context, tenantID uuid.UUID, name string) (*model.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, role := range r.roles {
		if role.TenantID == tenantID && role.Name == name && !role.IsDeleted() {
			return copyRole(role), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *roleRepository) List(_ context.Context, tenantID uuid.UUID) ([]*model.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var roles []*model.Role
	for _, role := range r.roles {
		if role.TenantID == tenantID && !role.IsDeleted() {
			roles = append(roles, copyRole(role))
		}
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func (r *roleRepository) DeleteByTenant(_ context.Context, tenantID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, role := range r.roles {
		if role.TenantID == tenantID {
			delete(r.roles, id)
		}
	}
	return nil
}

// UpdateRolePermissions replaces a role's matrix.
func (s *Store) UpdateRolePermissions(id uuid.UUID, permissions model.PermissionMatrix) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.roles[id]
	if !ok {
		return repository.ErrNotFound
	}
	role.Permissions = permissions.Clone()
	role.UpdatedAt = time.Now()
	return nil
}
