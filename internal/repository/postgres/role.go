package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/repository"
)

const roleColumns = `id, tenant_id, name, description, permissions, is_system, created_at, updated_at, deleted_at`

type roleRepository struct {
	BaseRepository
}

func NewRoleRepository(base BaseRepository) repository.RoleRepository {
	return &roleRepository{base}
}

func (r *roleRepository) Create(ctx context.Context, role *model.Role) error {
	query := `
		INSERT INTO roles (id, tenant_id, name, description, permissions, is_system, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	now := time.Now()
	role.CreatedAt = now
	role.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		role.ID,
		role.TenantID,
		role.Name,
		role.Description,
		role.Permissions,
		role.IsSystem,
		role.CreatedAt,
		role.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", mapError(err))
	}
	return nil
}

func (r *roleRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*model.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`

	var role model.Role
	if err := r.db.GetContext(ctx, &role, query, tenantID, id); err != nil {
		return nil, fmt.Errorf("failed to get role: %w", mapError(err))
	}
	return &role, nil
}

func (r *roleRepository) GetByName(ctx context.Context, tenantID uuid.UUID, name string) (*model.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE tenant_id = $1 AND name = $2 AND deleted_at IS NULL`

	var role model.Role
	if err := r.db.GetContext(ctx, &role, query, tenantID, name); err != nil {
		return nil, fmt.Errorf("failed to get role: %w", mapError(err))
	}
	return &role, nil
}

func (r *roleRepository) List(ctx context.Context, tenantID uuid.UUID) ([]*model.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE tenant_id = $1 AND deleted_at IS NULL ORDER BY name`

	var roles []*model.Role
	if err := r.db.SelectContext(ctx, &roles, query, tenantID); err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}

func (r *roleRepository) DeleteByTenant(ctx context.Context, tenantID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("failed to delete roles: %w", err)
	}
	return nil
}
