package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether you are logged in",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, appOpts{})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.ctrl.CheckStatus(cmd.Context()); err != nil {
				return err
			}
			s := a.ctrl.Session()
			out := cmd.OutOrStdout()
			if !s.LoggedIn {
				fmt.Fprintln(out, "Not logged in")
				return nil
			}
			fmt.Fprintf(out, "Logged in as %s\n", s.Username)
			fmt.Fprintf(out, "Backend: %s\n", a.client.BaseURL())
			return nil
		},
	}
}

// prompter reads answers from the command's input, hiding passwords when
// the input is a terminal.
type prompter struct {
	in  io.Reader
	r   *bufio.Reader
	out io.Writer
}

func newPrompter(cmd *cobra.Command) *prompter {
	in := cmd.InOrStdin()
	return &prompter{in: in, r: bufio.NewReader(in), out: cmd.ErrOrStderr()}
}

func (p *prompter) line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	s, err := p.r.ReadString('\n')
	if err != nil && s == "" {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimSpace(s), nil
}

func (p *prompter) password(label string) (string, error) {
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(p.out, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	return p.line(label)
}

func newLoginCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the backend",
		Long:  "Logs in with username and password. The password is read without echo; the session is kept for later commands.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, appOpts{})
			if err != nil {
				return err
			}
			defer a.Close()

			p := newPrompter(cmd)
			if username == "" {
				label := "Username: "
				last := a.ctrl.LastUsername()
				if last != "" {
					label = fmt.Sprintf("Username [%s]: ", last)
				}
				if username, err = p.line(label); err != nil {
					return err
				}
				if username == "" {
					username = last
				}
			}
			password, err := p.password("Password: ")
			if err != nil {
				return err
			}

			if err := a.ctrl.Login(cmd.Context(), username, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", a.ctrl.Session().Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username (prompted when empty)")
	return cmd
}

func newRegisterCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, appOpts{})
			if err != nil {
				return err
			}
			defer a.Close()

			p := newPrompter(cmd)
			if username == "" {
				if username, err = p.line("Username: "); err != nil {
					return err
				}
			}
			password, err := p.password("Password: ")
			if err != nil {
				return err
			}
			confirm, err := p.password("Confirm password: ")
			if err != nil {
				return err
			}

			if err := a.ctrl.Register(cmd.Context(), username, password, confirm); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered and logged in as %s\n", a.ctrl.Session().Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username (prompted when empty)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out of the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, appOpts{})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.ctrl.Logout(cmd.Context()); err != nil {
				return err
			}
			if !a.ctrl.Session().LoggedIn {
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			}
			return nil
		},
	}
}
