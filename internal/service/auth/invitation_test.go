package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hire-api/internal/email"
	"github.com/jwalitptl/hire-api/internal/model"
	apperrors "github.com/jwalitptl/hire-api/pkg/errors"
)

func adminPrincipal(reg *model.RegisterResponse) model.Principal {
	return model.Principal{
		AccountID:   reg.Account.ID,
		TenantID:    reg.Tenant.ID,
		RoleID:      reg.Account.RoleID,
		Permissions: reg.Account.Permissions,
	}
}

func (f *fixture) role(t *testing.T, tenantID uuid.UUID, name string) *model.Role {
	t.Helper()
	role, err := f.repos.Roles.GetByName(context.Background(), tenantID, name)
	require.NoError(t, err)
	return role
}

func TestInviteBobAsRecruiterKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mail.On("SendInvitation", mock.Anything, "bob@acme.test", mock.MatchedBy(func(d email.InvitationData) bool {
		return d.RoleName == model.RoleRecruiter && d.TenantName == "Acme" &&
			strings.HasPrefix(d.Link, "https://app.hire.test/accept-invitation?token=")
	})).Return(nil).Once()
	f.allowMail()
	reg := f.onboard(t, "Acme", "alice@acme.test")
	recruiter := f.role(t, reg.Tenant.ID, model.RoleRecruiter)
	original := recruiter.Permissions.Clone()

	bob, err := f.svc.Invite(ctx, adminPrincipal(reg), model.InviteRequest{Email: "Bob@Acme.test", RoleID: recruiter.ID, Name: "Bob"})
	require.NoError(t, err)
	assert.Equal(t, "ACME-0002", bob.Code)
	assert.Equal(t, "bob@acme.test", bob.Email)
	assert.False(t, bob.IsActive)
	assert.False(t, bob.IsEmailVerified)
	require.NotNil(t, bob.InviteExpiresAt)
	assert.Equal(t, f.now().Add(InvitationTTL), *bob.InviteExpiresAt)
	assert.Equal(t, original, bob.Permissions)

	edited := recruiter.Permissions.Clone()
	edited[model.ResourceAccounts] = map[string]bool{model.ActionDelete: true}
	require.NoError(t, f.store.UpdateRolePermissions(recruiter.ID, edited))

	session, err := f.svc.AcceptInvitation(ctx, model.AcceptInvitationRequest{Token: *bob.InviteToken, Password: "Bob#Pass2026"})
	require.NoError(t, err)
	assert.True(t, session.Account.IsActive)
	assert.True(t, session.Account.IsEmailVerified)

	claims, err := f.jwt.ValidateToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, original, claims.Permissions)
	assert.False(t, claims.Permissions.Allows(model.ResourceAccounts, model.ActionDelete))

	summary, err := f.svc.ResyncPermissions(ctx, adminPrincipal(reg), bob.ID)
	require.NoError(t, err)
	assert.True(t, summary.Permissions.Allows(model.ResourceAccounts, model.ActionDelete))

	relogin, err := f.login("bob@acme.test", "Bob#Pass2026")
	require.NoError(t, err)
	assert.True(t, relogin.Account.Permissions.Allows(model.ResourceAccounts, model.ActionDelete))

	f.mail.AssertExpectations(t)
}

func TestInviteRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.allowMail()
	acme := f.onboard(t, "Acme", "alice@acme.test")
	globex := f.onboard(t, "Globex", "hank@globex.test")
	recruiter := f.role(t, acme.Tenant.ID, model.RoleRecruiter)

	t.Run("missing permission", func(t *testing.T) {
		caller := adminPrincipal(acme)
		caller.Permissions = model.PermissionMatrix{model.ResourceAccounts: {model.ActionRead: true}}
		_, err := f.svc.Invite(ctx, caller, model.InviteRequest{Email: "bob@acme.test", RoleID: recruiter.ID})
		assert.Equal(t, http.StatusForbidden, statusOf(t, err))
	})

	t.Run("existing account", func(t *testing.T) {
		_, err := f.svc.Invite(ctx, adminPrincipal(acme), model.InviteRequest{Email: "ALICE@acme.test", RoleID: recruiter.ID})
		assert.Equal(t, http.StatusConflict, statusOf(t, err))
	})

	t.Run("pending invitation", func(t *testing.T) {
		_, err := f.svc.Invite(ctx, adminPrincipal(acme), model.InviteRequest{Email: "pat@acme.test", RoleID: recruiter.ID})
		require.NoError(t, err)
		_, err = f.svc.Invite(ctx, adminPrincipal(acme), model.InviteRequest{Email: "pat@acme.test", RoleID: recruiter.ID})
		assert.Equal(t, http.StatusConflict, statusOf(t, err))
	})

	t.Run("role of another tenant", func(t *testing.T) {
		_, err := f.svc.Invite(ctx, adminPrincipal(globex), model.InviteRequest{Email: "bob@globex.test", RoleID: recruiter.ID})
		assert.Equal(t, http.StatusNotFound, statusOf(t, err))
	})
}

func TestInviteSucceedsWhenMailFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mail.On("SendInvitation", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))
	f.allowMail()
	reg := f.onboard(t, "Acme", "alice@acme.test")

	bob, err := f.svc.Invite(ctx, adminPrincipal(reg), model.InviteRequest{Email: "bob@acme.test", RoleID: reg.Account.RoleID})
	require.NoError(t, err)
	assert.NotNil(t, bob.InviteToken)
}

func TestAccountCodesAreSequential(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.allowMail()
	reg := f.onboard(t, "Acme", "alice@acme.test")

	var codes []string
	for _, addr := range []string{"a@acme.test", "b@acme.test", "c@acme.test"} {
		account, err := f.svc.Invite(ctx, adminPrincipal(reg), model.InviteRequest{Email: addr, RoleID: reg.Account.RoleID})
		require.NoError(t, err)
		codes = append(codes, account.Code)
	}
	assert.Equal(t, []string{"ACME-0002", "ACME-0003", "ACME-0004"}, codes)
}

func TestAcceptInvitation(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, string) {
		f := newFixture(t)
		f.allowMail()
		reg := f.onboard(t, "Acme", "alice@acme.test")
		bob, err := f.svc.Invite(ctx, adminPrincipal(reg), model.InviteRequest{Email: "bob@acme.test", RoleID: reg.Account.RoleID})
		require.NoError(t, err)
		return f, *bob.InviteToken
	}

	t.Run("token is single use", func(t *testing.T) {
		f, token := setup(t)
		_, err := f.svc.AcceptInvitation(ctx, model.AcceptInvitationRequest{Token: token, Password: "Bob#Pass2026"})
		require.NoError(t, err)

		_, err = f.svc.AcceptInvitation(ctx, model.AcceptInvitationRequest{Token: token, Password: "Other#Pass2026"})
		assert.Equal(t, http.StatusNotFound, statusOf(t, err))

		_, err = f.login("bob@acme.test", "Bob#Pass2026")
		assert.NoError(t, err)
	})

	t.Run("expired invitation", func(t *testing.T) {
		f, token := setup(t)
		f.advance(InvitationTTL + time.Minute)
		_, err := f.svc.AcceptInvitation(ctx, model.AcceptInvitationRequest{Token: token, Password: "Bob#Pass2026"})
		assert.Equal(t, http.StatusNotFound, statusOf(t, err))
	})

	t.Run("weak password keeps the invitation open", func(t *testing.T) {
		f, token := setup(t)
		_, err := f.svc.AcceptInvitation(ctx, model.AcceptInvitationRequest{Token: token, Password: "bobbobbob"})
		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, appErr.StatusCode())
		assert.Contains(t, appErr.Details, "password must contain an uppercase letter")
		assert.Contains(t, appErr.Details, "password must contain a digit")

		_, err = f.svc.AcceptInvitation(ctx, model.AcceptInvitationRequest{Token: token, Password: "Bob#Pass2026"})
		assert.NoError(t, err)
	})

}

func TestAcceptInvitationBlockedByExpiredSubscription(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.allowMail()
	reg := f.onboard(t, "Acme", "alice@acme.test")

	// Invite close to the end of the paid month so the invitation outlives the subscription.
	f.advance(29 * 24 * time.Hour)
	bob, err := f.svc.Invite(ctx, adminPrincipal(reg), model.InviteRequest{Email: "bob@acme.test", RoleID: reg.Account.RoleID})
	require.NoError(t, err)
	f.advance(3 * 24 * time.Hour)

	_, err = f.svc.AcceptInvitation(ctx, model.AcceptInvitationRequest{Token: *bob.InviteToken, Password: "Bob#Pass2026"})
	assert.Equal(t, http.StatusPaymentRequired, statusOf(t, err))
}

func TestResyncPermissionsScopedToTenant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.allowMail()
	acme := f.onboard(t, "Acme", "alice@acme.test")
	globex := f.onboard(t, "Globex", "hank@globex.test")

	_, err := f.svc.ResyncPermissions(ctx, adminPrincipal(globex), acme.Account.ID)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	caller := adminPrincipal(acme)
	caller.Permissions = model.PermissionMatrix{}
	_, err = f.svc.ResyncPermissions(ctx, caller, acme.Account.ID)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
}

func TestReinviteAfterInvitationExpires(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.allowMail()
	reg := f.onboard(t, "Acme", "alice@acme.test")
	recruiter := f.role(t, reg.Tenant.ID, model.RoleRecruiter)

	first, err := f.svc.Invite(ctx, adminPrincipal(reg), model.InviteRequest{Email: "bob@acme.test", RoleID: reg.Account.RoleID})
	require.NoError(t, err)
	f.advance(InvitationTTL + time.Minute)

	second, err := f.svc.Invite(ctx, adminPrincipal(reg), model.InviteRequest{Email: "bob@acme.test", RoleID: recruiter.ID})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, *first.InviteToken, *second.InviteToken)
	assert.Equal(t, "ACME-0002", second.Code)
	assert.Equal(t, recruiter.ID, second.RoleID)

	_, err = f.svc.AcceptInvitation(ctx, model.AcceptInvitationRequest{Token: *first.InviteToken, Password: "Bob#Pass2026"})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	session, err := f.svc.AcceptInvitation(ctx, model.AcceptInvitationRequest{Token: *second.InviteToken, Password: "Bob#Pass2026"})
	require.NoError(t, err)
	assert.Equal(t, recruiter.Permissions, session.Account.Permissions)

	_, err = f.svc.Invite(ctx, adminPrincipal(reg), model.InviteRequest{Email: "bob@acme.test", RoleID: recruiter.ID})
	assert.Equal(t, http.StatusConflict, statusOf(t, err))
}

func TestResyncPermissionsDuringAcceptanceKeepsAccountActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.allowMail()
	reg := f.onboard(t, "Acme", "alice@acme.test")
	recruiter := f.role(t, reg.Tenant.ID, model.RoleRecruiter)

	bob, err := f.svc.Invite(ctx, adminPrincipal(reg), model.InviteRequest{Email: "bob@acme.test", RoleID: recruiter.ID})
	require.NoError(t, err)

	f.repos.Accounts = &interleavedAccounts{
		AccountRepository: f.repos.Accounts,
		before: func() {
			_, err := f.svc.AcceptInvitation(ctx, model.AcceptInvitationRequest{Token: *bob.InviteToken, Password: "Bob#Pass2026"})
			require.NoError(t, err)
		},
	}
	f.build()

	summary, err := f.svc.ResyncPermissions(ctx, adminPrincipal(reg), bob.ID)
	require.NoError(t, err)
	assert.True(t, summary.IsActive)

	_, err = f.login("bob@acme.test", "Bob#Pass2026")
	assert.NoError(t, err)
}
