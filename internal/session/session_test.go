package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/pyassist/internal/apperr"
)

func TestApply(t *testing.T) {
	id := int64(4)
	s := Apply(Session{}, StatusChecked{LoggedIn: true, UserID: &id, Username: "ann"})
	assert.True(t, s.LoggedIn)
	assert.Equal(t, "ann", s.Username)
	assert.Equal(t, "Welcome, ann", s.Greeting())

	s = Apply(s, LoggedOut{})
	assert.Equal(t, Session{}, s)
	assert.Empty(t, s.Greeting())

	s = Apply(s, Authenticated{UserID: 9, Username: "bo"})
	require.NotNil(t, s.UserID)
	assert.Equal(t, int64(9), *s.UserID)

	// A logged-out status wipes stale identity.
	s = Apply(s, StatusChecked{LoggedIn: false, Username: "ghost"})
	assert.Equal(t, Session{}, s)
}

func TestRequireLogin(t *testing.T) {
	err := RequireLogin(Session{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuth))
	assert.NoError(t, RequireLogin(Session{LoggedIn: true}))
}

func TestValidateLogin(t *testing.T) {
	var fe *FormError
	err := ValidateLogin(" ", "pw")
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, FormLogin, fe.Form)
	assert.NoError(t, ValidateLogin("ann", "pw"))
}

func TestValidateRegister(t *testing.T) {
	var fe *FormError
	require.True(t, errors.As(ValidateRegister("ann", "", "x"), &fe))
	assert.Equal(t, "Please fill in all fields", fe.Message)

	require.True(t, errors.As(ValidateRegister("ann", "a", "b"), &fe))
	assert.Equal(t, FormRegister, fe.Form)
	assert.Equal(t, "Passwords do not match", fe.Message)

	assert.NoError(t, ValidateRegister("ann", "pw", "pw"))
}

func TestIsLoginRequired(t *testing.T) {
	assert.True(t, IsLoginRequired("请先登录"))
	assert.True(t, IsLoginRequired("Please log in to continue"))
	assert.False(t, IsLoginRequired("syntax error"))
}
