package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hire-api/internal/model"
)

func testAccount() *model.Account {
	a := &model.Account{
		TenantID: uuid.New(),
		RoleID:   uuid.New(),
		Permissions: model.PermissionMatrix{
			model.ResourceCandidates: {model.ActionRead: true},
		},
	}
	a.ID = uuid.New()
	return a
}

func TestGenerateSessionTokenRoundTrip(t *testing.T) {
	svc := NewJWTService("secret", "hire-api")
	account := testAccount()

	token, err := svc.GenerateSessionToken(account)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)

	assert.Equal(t, account.ID, claims.AccountID)
	assert.Equal(t, account.TenantID, claims.TenantID)
	assert.Equal(t, account.RoleID, claims.RoleID)
	assert.Equal(t, account.ID.String(), claims.Subject)
	assert.True(t, claims.Permissions.Allows(model.ResourceCandidates, model.ActionRead))
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, SessionTTL, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestValidateTokenExpired(t *testing.T) {
	issued := time.Now().Add(-8 * 24 * time.Hour)
	issuer := NewJWTService("secret", "hire-api", WithClock(func() time.Time { return issued }))

	token, err := issuer.GenerateSessionToken(testAccount())
	require.NoError(t, err)

	_, err = NewJWTService("secret", "hire-api").ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := NewJWTService("secret", "hire-api").GenerateSessionToken(testAccount())
	require.NoError(t, err)

	_, err = NewJWTService("other", "hire-api").ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
