package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hire-api/internal/model"
)

func TestLockoutPolicy(t *testing.T) {
	p := DefaultLockoutPolicy()
	now := time.Now()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	assert.False(t, p.IsLocked(&model.Account{}, now))
	assert.True(t, p.IsLocked(&model.Account{LockoutExpiresAt: &future}, now))
	assert.False(t, p.IsLocked(&model.Account{LockoutExpiresAt: &past}, now))

	assert.Equal(t, 4, p.Remaining(1))
	assert.Equal(t, 0, p.Remaining(5))
	assert.Equal(t, 0, p.Remaining(9))
}

func TestFiveFailuresLockAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.allowMail()
	f.onboard(t, "Acme", "alice@acme.test")

	for i := 1; i <= 4; i++ {
		_, err := f.login("alice@acme.test", "wrong-password")
		require.Equal(t, http.StatusUnauthorized, statusOf(t, err))
		assert.Contains(t, err.Error(), "attempts remaining")
	}

	_, err := f.login("alice@acme.test", "wrong-password")
	assert.Equal(t, http.StatusLocked, statusOf(t, err))

	_, err = f.login("alice@acme.test", alicePassword)
	assert.Equal(t, http.StatusLocked, statusOf(t, err))

	account, err := f.repos.Accounts.GetByEmail(ctx, "alice@acme.test")
	require.NoError(t, err)
	assert.Equal(t, 5, account.FailedLoginAttempts)
	require.NotNil(t, account.LockoutExpiresAt)
	assert.Equal(t, f.now().Add(LockoutDuration), *account.LockoutExpiresAt)

	f.advance(LockoutDuration + time.Second)

	session, err := f.login("alice@acme.test", alicePassword)
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)

	account, err = f.repos.Accounts.GetByEmail(ctx, "alice@acme.test")
	require.NoError(t, err)
	assert.Zero(t, account.FailedLoginAttempts)
	assert.Nil(t, account.LockoutExpiresAt)
	require.NotNil(t, account.LastLoginAt)
}

func TestFailureCounterSurvivesLockoutExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.allowMail()
	f.onboard(t, "Acme", "alice@acme.test")

	for i := 0; i < MaxFailedLoginAttempts; i++ {
		_, _ = f.login("alice@acme.test", "wrong-password")
	}
	f.advance(LockoutDuration + time.Second)

	// The counter was not reset by the expiry, so one more failure locks again.
	_, err := f.login("alice@acme.test", "wrong-password")
	assert.Equal(t, http.StatusLocked, statusOf(t, err))

	account, err := f.repos.Accounts.GetByEmail(ctx, "alice@acme.test")
	require.NoError(t, err)
	assert.Equal(t, MaxFailedLoginAttempts+1, account.FailedLoginAttempts)
}

func TestFailureCounterIsMonotonicUntilSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.allowMail()
	f.onboard(t, "Acme", "alice@acme.test")

	for want := 1; want <= 3; want++ {
		_, err := f.login("alice@acme.test", "wrong-password")
		require.Error(t, err)
		account, err := f.repos.Accounts.GetByEmail(ctx, "alice@acme.test")
		require.NoError(t, err)
		assert.Equal(t, want, account.FailedLoginAttempts)
	}

	_, err := f.login("alice@acme.test", alicePassword)
	require.NoError(t, err)

	_, err = f.login("alice@acme.test", "wrong-password")
	assert.Contains(t, err.Error(), "4 attempts remaining")
}

func TestLockoutRejectsBeforePasswordCheck(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.allowMail()
	f.onboard(t, "Acme", "alice@acme.test")

	for i := 0; i < MaxFailedLoginAttempts; i++ {
		_, _ = f.login("alice@acme.test", "wrong-password")
	}
	for i := 0; i < 3; i++ {
		_, err := f.login("alice@acme.test", "wrong-password")
		assert.Equal(t, http.StatusLocked, statusOf(t, err))
	}

	account, err := f.repos.Accounts.GetByEmail(ctx, "alice@acme.test")
	require.NoError(t, err)
	assert.Equal(t, MaxFailedLoginAttempts, account.FailedLoginAttempts)
}
