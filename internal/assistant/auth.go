package assistant

import (
	"context"
	"errors"

	"github.com/zulandar/pyassist/internal/apperr"
	"github.com/zulandar/pyassist/internal/backend"
	"github.com/zulandar/pyassist/internal/session"
	"github.com/zulandar/pyassist/internal/store"
)

const authNetworkError = "Network error, please retry"

// CheckStatus asks the backend who is logged in. A logged-in session loads
// the history sidebar; anything else opens the auth modal.
func (c *Controller) CheckStatus(ctx context.Context) error {
	st, err := c.backend.CheckLogin(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("check login")
		c.applySession(session.StatusChecked{})
		c.view.ShowAuth()
		return err
	}
	s := c.applySession(session.StatusChecked{
		LoggedIn: st.LoggedIn,
		UserID:   st.UserID,
		Username: st.Username,
	})
	if !s.LoggedIn {
		c.view.ShowAuth()
		return nil
	}
	c.view.HideAuth()
	return c.ListConversations(ctx)
}

// Login validates the form, then authenticates. Failures are shown next to
// the form.
func (c *Controller) Login(ctx context.Context, username, password string) error {
	if err := session.ValidateLogin(username, password); err != nil {
		c.formError(err)
		return err
	}
	res, err := c.backend.Login(ctx, username, password)
	return c.authenticated(ctx, session.FormLogin, "Login failed", res, err)
}

// Register validates the form, then creates the account and logs in.
func (c *Controller) Register(ctx context.Context, username, password, confirm string) error {
	if err := session.ValidateRegister(username, password, confirm); err != nil {
		c.formError(err)
		return err
	}
	res, err := c.backend.Register(ctx, username, password)
	return c.authenticated(ctx, session.FormRegister, "Registration failed", res, err)
}

func (c *Controller) formError(err error) {
	var fe *session.FormError
	if errors.As(err, &fe) {
		c.view.AuthError(fe.Form, fe.Message)
	}
}

func (c *Controller) authenticated(ctx context.Context, form session.Form, fallback string, res *backend.AuthResult, err error) error {
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindBackend:
			msg := apperr.Message(err)
			if msg == "" {
				msg = fallback
			}
			c.view.AuthError(form, msg)
		default:
			c.view.AuthError(form, authNetworkError)
		}
		c.log.Info().Str("form", string(form)).Err(err).Msg("authentication failed")
		return err
	}

	c.applySession(session.Authenticated{UserID: res.UserID, Username: res.Username})
	c.view.HideAuth()
	if c.prefs != nil {
		if err := c.prefs.Set(store.KeyLastUsername, res.Username); err != nil {
			c.log.Warn().Err(err).Msg("save username")
		}
	}
	c.log.Info().Int64("user_id", res.UserID).Str("user", res.Username).Msg("logged in")

	// A new login starts from a clean view rebuilt from the backend.
	c.resetView()
	if err := c.ListConversations(ctx); err != nil {
		c.log.Warn().Err(err).Msg("load history after login")
	}
	c.view.Reload()
	return nil
}

// LastUsername returns the username of the last successful login, if any.
func (c *Controller) LastUsername() string {
	if c.prefs == nil {
		return ""
	}
	u, err := c.prefs.Get(store.KeyLastUsername, "")
	if err != nil {
		return ""
	}
	return u
}

// Logout asks for confirmation, then ends the session. The local session is
// cleared whatever the backend replies.
func (c *Controller) Logout(ctx context.Context) error {
	if !c.view.Confirm("Log out?") {
		return nil
	}
	err := c.backend.Logout(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("logout")
	}
	c.applySession(session.LoggedOut{})
	c.resetView()
	c.sidebar.Clear()
	c.view.SetSidebar(nil)
	c.view.ShowAuth()
	return err
}
