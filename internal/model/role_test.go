package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionMatrixClone(t *testing.T) {
	original := PermissionMatrix{ResourceJobs: {ActionRead: true}}
	clone := original.Clone()

	original[ResourceJobs][ActionDelete] = true

	assert.False(t, clone.Allows(ResourceJobs, ActionDelete))
	assert.True(t, clone.Allows(ResourceJobs, ActionRead))
}

func TestPermissionMatrixValueScan(t *testing.T) {
	m := PermissionMatrix{ResourceReports: {ActionExport: true}}

	v, err := m.Value()
	require.NoError(t, err)

	var scanned PermissionMatrix
	require.NoError(t, scanned.Scan(v))
	assert.True(t, scanned.Allows(ResourceReports, ActionExport))

	require.NoError(t, scanned.Scan(nil))
	assert.False(t, scanned.Allows(ResourceReports, ActionExport))

	assert.Error(t, scanned.Scan(42))
}

func TestNilMatrixAllowsNothing(t *testing.T) {
	var m PermissionMatrix
	assert.False(t, m.Allows(ResourceJobs, ActionRead))
}

func TestDefaultRoles(t *testing.T) {
	tenantID := uuid.New()
	roles := DefaultRoles(tenantID)
	require.Len(t, roles, 4)

	byName := map[string]*Role{}
	for _, r := range roles {
		assert.Equal(t, tenantID, r.TenantID)
		assert.True(t, r.IsSystem)
		byName[r.Name] = r
	}

	admin := byName[RoleAdmin]
	for resource, actions := range ResourceActions() {
		for _, a := range actions {
			assert.True(t, admin.Permissions.Allows(resource, a), "%s.%s", resource, a)
		}
	}
	assert.False(t, admin.Permissions.Allows(ResourceSettings, ActionDelete))

	recruiter := byName[RoleRecruiter]
	assert.True(t, recruiter.Permissions.Allows(ResourceCandidates, ActionCreate))
	assert.False(t, recruiter.Permissions.Allows(ResourceAccounts, ActionCreate))

	interviewer := byName[RoleInterviewer]
	assert.True(t, interviewer.Permissions.Allows(ResourceInterviews, ActionUpdate))
	assert.False(t, interviewer.Permissions.Allows(ResourceJobs, ActionRead))
}

func TestBillingIntervalNext(t *testing.T) {
	from := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 2, 15, 10, 0, 0, 0, time.UTC), BillingMonthly.Next(from))
	assert.Equal(t, time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC), BillingYearly.Next(from))
	assert.False(t, BillingInterval("week").Valid())
}
