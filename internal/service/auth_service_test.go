package service

import (
	"context"
	"testing"
	"time"

	"github.com/kvxlabs/vanguard/internal/adapter/store"
	"github.com/kvxlabs/vanguard/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAuthServiceRegister(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewAuthService(st, time.Hour)

	user, session, err := svc.Register(context.Background(), "jane@example.com", "secret123", "Jane", "Doe")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", user.Email)
	assert.NotEqual(t, "secret123", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret123")))

	require.NotEmpty(t, session.Token)
	assert.Equal(t, user.ID, session.UserID)
	assert.True(t, session.ExpiresAt.After(time.Now()))

	stored, err := st.GetSession(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.UserID)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewAuthService(st, time.Hour)

	_, _, err := svc.Register(context.Background(), "jane@example.com", "secret123", "Jane", "Doe")
	require.NoError(t, err)

	_, _, err = svc.Register(context.Background(), "Jane@Example.com", "other456", "J", "D")
	assert.ErrorIs(t, err, port.ErrEmailTaken)
}

func TestAuthServiceLogin(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewAuthService(st, time.Hour)

	registered, _, err := svc.Register(context.Background(), "jane@example.com", "secret123", "Jane", "Doe")
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		user, session, err := svc.Login(context.Background(), "jane@example.com", "secret123")
		require.NoError(t, err)
		assert.Equal(t, registered.ID, user.ID)
		assert.NotEmpty(t, session.Token)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := svc.Login(context.Background(), "jane@example.com", "wrong")
		assert.ErrorIs(t, err, port.ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, _, err := svc.Login(context.Background(), "nobody@example.com", "secret123")
		assert.ErrorIs(t, err, port.ErrInvalidCredentials)
	})
}

func TestAuthServiceLogout(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewAuthService(st, time.Hour)

	_, session, err := svc.Register(context.Background(), "jane@example.com", "secret123", "Jane", "Doe")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), session.Token))

	_, err = st.GetSession(context.Background(), session.Token)
	assert.ErrorIs(t, err, port.ErrSessionNotFound)
}
