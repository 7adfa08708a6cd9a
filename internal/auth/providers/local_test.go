package providers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nwaqas/finfortress/internal/database/testutil"
)

func newLocalProvider(t *testing.T) *LocalProvider {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	p, err := NewLocalProvider(db, LocalConfig{})
	require.NoError(t, err)
	return p
}

func TestRegisterAndAuthenticate(t *testing.T) {
	p := newLocalProvider(t)

	user, err := p.Register(RegisterInput{
		Email:       "Nadia@Example.com",
		Password:    "correct-horse-battery",
		DisplayName: "Nadia",
	})
	require.NoError(t, err)
	require.Equal(t, "nadia@example.com", user.Email, "emails are lower-cased")
	require.NotEqual(t, "correct-horse-battery", user.Password)
	require.Equal(t, "PKR", user.Currency)

	got, err := p.Authenticate(AuthenticateInput{
		Email:     "nadia@example.com",
		Password:  "correct-horse-battery",
		IPAddress: "10.0.0.1",
	})
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
	require.NotNil(t, got.LastLoginAt)
	require.Equal(t, "10.0.0.1", got.LastLoginIP)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	p := newLocalProvider(t)

	_, err := p.Register(RegisterInput{Email: "a@b.c", Password: "correct-horse-battery"})
	require.NoError(t, err)

	_, err = p.Authenticate(AuthenticateInput{Email: "a@b.c", Password: "wrong"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateUnknownEmail(t *testing.T) {
	p := newLocalProvider(t)

	_, err := p.Authenticate(AuthenticateInput{Email: "ghost@b.c", Password: "whatever"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateDisabledAccount(t *testing.T) {
	p := newLocalProvider(t)

	user, err := p.Register(RegisterInput{Email: "a@b.c", Password: "correct-horse-battery"})
	require.NoError(t, err)
	require.NoError(t, p.db.Model(user).Update("is_active", false).Error)

	_, err = p.Authenticate(AuthenticateInput{Email: "a@b.c", Password: "correct-horse-battery"})
	require.ErrorIs(t, err, ErrAccountDisabled)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	p := newLocalProvider(t)

	_, err := p.Register(RegisterInput{Email: "a@b.c", Password: "correct-horse-battery"})
	require.NoError(t, err)

	_, err = p.Register(RegisterInput{Email: "A@B.C", Password: "correct-horse-battery"})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterShortPassword(t *testing.T) {
	p := newLocalProvider(t)

	_, err := p.Register(RegisterInput{Email: "a@b.c", Password: "short"})
	require.Error(t, err)
}

func TestChangePassword(t *testing.T) {
	p := newLocalProvider(t)

	user, err := p.Register(RegisterInput{Email: "a@b.c", Password: "correct-horse-battery"})
	require.NoError(t, err)

	require.ErrorIs(t, p.ChangePassword(user.ID, "wrong", "next-password-123"), ErrInvalidCredentials)
	require.NoError(t, p.ChangePassword(user.ID, "correct-horse-battery", "next-password-123"))

	_, err = p.Authenticate(AuthenticateInput{Email: "a@b.c", Password: "next-password-123"})
	require.NoError(t, err)
}

func TestLocalProviderClockInjection(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	fixed := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	p, err := NewLocalProvider(db, LocalConfig{Clock: func() time.Time { return fixed }})
	require.NoError(t, err)

	_, err = p.Register(RegisterInput{Email: "a@b.c", Password: "correct-horse-battery"})
	require.NoError(t, err)

	got, err := p.Authenticate(AuthenticateInput{Email: "a@b.c", Password: "correct-horse-battery"})
	require.NoError(t, err)
	require.True(t, got.LastLoginAt.Equal(fixed))
}
