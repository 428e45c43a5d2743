// Package session tracks who is logged in and gates actions that need it.
package session

import (
	"strings"

	"github.com/zulandar/pyassist/internal/apperr"
)

// Form identifies which auth form an error belongs to.
type Form string

const (
	FormLogin    Form = "login"
	FormRegister Form = "register"
)

// Session is the client's view of the backend login state.
type Session struct {
	LoggedIn bool
	UserID   *int64
	Username string
}

// Event is a session transition input.
type Event interface{ sessionEvent() }

// StatusChecked is the outcome of a login-status query.
type StatusChecked struct {
	LoggedIn bool
	UserID   *int64
	Username string
}

// Authenticated follows a successful login or registration.
type Authenticated struct {
	UserID   int64
	Username string
}

// LoggedOut follows a logout, whatever the backend replied.
type LoggedOut struct{}

func (StatusChecked) sessionEvent() {}
func (Authenticated) sessionEvent() {}
func (LoggedOut) sessionEvent()     {}

// Apply returns the session that results from ev.
func Apply(s Session, ev Event) Session {
	switch e := ev.(type) {
	case StatusChecked:
		if !e.LoggedIn {
			return Session{}
		}
		return Session{LoggedIn: true, UserID: e.UserID, Username: e.Username}
	case Authenticated:
		id := e.UserID
		return Session{LoggedIn: true, UserID: &id, Username: e.Username}
	case LoggedOut:
		return Session{}
	}
	return s
}

// Greeting is the user label shown in the header.
func (s Session) Greeting() string {
	if !s.LoggedIn {
		return ""
	}
	return "Welcome, " + s.Username
}

// RequireLogin fails with an auth error when nobody is logged in.
func RequireLogin(s Session) error {
	if !s.LoggedIn {
		return apperr.Auth("please log in first")
	}
	return nil
}

// FormError is a validation failure shown next to an auth form.
type FormError struct {
	Form    Form
	Message string
}

func (e *FormError) Error() string {
	return string(e.Form) + ": " + e.Message
}

// ValidateLogin checks the login form before any request is made.
func ValidateLogin(username, password string) error {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return &FormError{Form: FormLogin, Message: "Please enter username and password"}
	}
	return nil
}

// ValidateRegister checks the registration form before any request is made.
func ValidateRegister(username, password, confirm string) error {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" || strings.TrimSpace(confirm) == "" {
		return &FormError{Form: FormRegister, Message: "Please fill in all fields"}
	}
	if password != confirm {
		return &FormError{Form: FormRegister, Message: "Passwords do not match"}
	}
	return nil
}

var loginRequiredMarkers = []string{"请先登录", "please log in", "login required"}

// IsLoginRequired reports whether a backend error text means the session
// has expired or never existed.
func IsLoginRequired(errText string) bool {
	lower := strings.ToLower(errText)
	for _, m := range loginRequiredMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
