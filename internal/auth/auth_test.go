package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s := NewService(Config{
		Username:   "admin",
		JWTSecret:  "test-secret",
		BCryptCost: bcrypt.MinCost,
	})
	hash, err := s.HashPassword("hunter2")
	require.NoError(t, err)
	s.config.PasswordHash = hash
	return s
}

func TestAuthenticate(t *testing.T) {
	s := newTestService(t)

	token, err := s.Authenticate("admin", "hunter2")
	require.NoError(t, err)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, RoleOperator, claims.Role)

	_, err = s.Authenticate("admin", "wrong")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))

	_, err = s.Authenticate("root", "hunter2")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestAuthenticateWithoutConfiguredPassword(t *testing.T) {
	s := NewService(Config{Username: "admin", JWTSecret: "x"})
	_, err := s.Authenticate("admin", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateToken(t *testing.T) {
	s := newTestService(t)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewService(Config{JWTSecret: "other"})
		token, err := other.GenerateToken("admin", RoleOperator)
		require.NoError(t, err)
		_, err = s.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := s.GenerateToken("admin", RoleViewer)
		require.NoError(t, err)

		s.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
		defer func() { s.now = time.Now }()

		_, err = s.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := s.ValidateToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestHasRole(t *testing.T) {
	tests := []struct {
		user, required string
		want           bool
	}{
		{RoleOperator, RoleViewer, true},
		{RoleOperator, RoleOperator, true},
		{RoleViewer, RoleOperator, false},
		{RoleViewer, RoleViewer, true},
		{"admin", RoleViewer, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HasRole(tt.user, tt.required), "%s >= %s", tt.user, tt.required)
	}
	assert.True(t, CanSelect(RoleOperator))
	assert.False(t, CanSelect(RoleViewer))
}
