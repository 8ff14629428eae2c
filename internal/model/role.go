package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Resources guarded by the permission matrix.
const (
	ResourceJobs       = "jobs"
	ResourceCandidates = "candidates"
	ResourceInterviews = "interviews"
	ResourceWorkflows  = "workflows"
	ResourceAccounts   = "accounts"
	ResourceRoles      = "roles"
	ResourceSettings   = "settings"
	ResourceReports    = "reports"
)

// Actions available on resources. Settings only know read/update and
// reports only read/export.
const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionExport = "export"
)

// System role names seeded for every tenant.
const (
	RoleAdmin         = "admin"
	RoleRecruiter     = "recruiter"
	RoleHiringManager = "hiring_manager"
	RoleInterviewer   = "interviewer"
)

var crudResources = []string{
	ResourceJobs, ResourceCandidates, ResourceInterviews,
	ResourceWorkflows, ResourceAccounts, ResourceRoles,
}

// ResourceActions lists the actions each resource supports.
func ResourceActions() map[string][]string {
	actions := make(map[string][]string, len(crudResources)+2)
	for _, r := range crudResources {
		actions[r] = []string{ActionCreate, ActionRead, ActionUpdate, ActionDelete}
	}
	actions[ResourceSettings] = []string{ActionRead, ActionUpdate}
	actions[ResourceReports] = []string{ActionRead, ActionExport}
	return actions
}

// PermissionMatrix maps resource -> action -> granted.
type PermissionMatrix map[string]map[string]bool

func (m PermissionMatrix) Allows(resource, action string) bool {
	if m == nil {
		return false
	}
	return m[resource][action]
}

// Clone returns a deep copy so snapshots never alias a role's matrix.
func (m PermissionMatrix) Clone() PermissionMatrix {
	if m == nil {
		return nil
	}
	out := make(PermissionMatrix, len(m))
	for resource, actions := range m {
		copied := make(map[string]bool, len(actions))
		for action, granted := range actions {
			copied[action] = granted
		}
		out[resource] = copied
	}
	return out
}

func (m PermissionMatrix) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *PermissionMatrix) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = PermissionMatrix{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported permission matrix type %T", src)
	}
	return json.Unmarshal(data, m)
}

// Role is a tenant scoped, named permission matrix.
type Role struct {
	Base
	TenantID    uuid.UUID        `db:"tenant_id" json:"tenant_id"`
	Name        string           `db:"name" json:"name"`
	Description string           `db:"description" json:"description"`
	Permissions PermissionMatrix `db:"permissions" json:"permissions"`
	IsSystem    bool             `db:"is_system" json:"is_system"`
}

func grantAll() PermissionMatrix {
	m := PermissionMatrix{}
	for resource, actions := range ResourceActions() {
		m[resource] = map[string]bool{}
		for _, a := range actions {
			m[resource][a] = true
		}
	}
	return m
}

func grant(resources []string, actions ...string) PermissionMatrix {
	m := PermissionMatrix{}
	for _, r := range resources {
		m[r] = map[string]bool{}
		for _, a := range actions {
			m[r][a] = true
		}
	}
	return m
}

func merge(parts ...PermissionMatrix) PermissionMatrix {
	out := PermissionMatrix{}
	for _, p := range parts {
		for resource, actions := range p {
			if out[resource] == nil {
				out[resource] = map[string]bool{}
			}
			for a, ok := range actions {
				out[resource][a] = out[resource][a] || ok
			}
		}
	}
	return out
}

// DefaultRoles returns the system roles created with every tenant.
func DefaultRoles(tenantID uuid.UUID) []*Role {
	recruiting := []string{ResourceJobs, ResourceCandidates, ResourceInterviews}
	return []*Role{
		{
			TenantID:    tenantID,
			Name:        RoleAdmin,
			Description: "Full access to the company workspace",
			Permissions: grantAll(),
			IsSystem:    true,
		},
		{
			TenantID:    tenantID,
			Name:        RoleRecruiter,
			Description: "Manages jobs, candidates and interviews",
			Permissions: merge(
				grant(recruiting, ActionCreate, ActionRead, ActionUpdate, ActionDelete),
				grant([]string{ResourceWorkflows}, ActionRead),
				grant([]string{ResourceReports}, ActionRead),
			),
			IsSystem: true,
		},
		{
			TenantID:    tenantID,
			Name:        RoleHiringManager,
			Description: "Reviews candidates and runs hiring workflows",
			Permissions: merge(
				grant(recruiting, ActionRead, ActionUpdate),
				grant([]string{ResourceWorkflows}, ActionCreate, ActionRead, ActionUpdate),
				grant([]string{ResourceReports}, ActionRead, ActionExport),
			),
			IsSystem: true,
		},
		{
			TenantID:    tenantID,
			Name:        RoleInterviewer,
			Description: "Reads assigned candidates and records interview feedback",
			Permissions: merge(
				grant([]string{ResourceCandidates}, ActionRead),
				grant([]string{ResourceInterviews}, ActionRead, ActionUpdate),
			),
			IsSystem: true,
		},
	}
}
