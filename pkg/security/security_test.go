package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordPolicy(t *testing.T) {
	policy := DefaultPasswordPolicy()

	tests := []struct {
		name     string
		password string
		want     []string
	}{
		{"strong", "Str0ng!Pass", nil},
		{"short", "Ab1!", []string{"must be at least 8 characters long"}},
		{"no classes", "abcdefgh", []string{
			"must contain an uppercase letter",
			"must contain a digit",
			"must contain a special character",
		}},
		{"blocked", "Password1!", []string{"is too common"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Validate(tt.password))
		})
	}
}

func TestBcryptHasher(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("Str0ng!Pass")
	require.NoError(t, err)

	assert.NoError(t, hasher.Compare(hash, "Str0ng!Pass"))
	assert.Error(t, hasher.Compare(hash, "wrong"))
}

func TestNewToken(t *testing.T) {
	a, err := NewToken()
	require.NoError(t, err)
	b, err := NewToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
