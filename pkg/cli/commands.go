package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tutoria/dashboard/pkg/apiclient"
	"github.com/tutoria/dashboard/pkg/auth"
	"github.com/tutoria/dashboard/pkg/rbac"
)

// ErrNotLoggedIn is returned by commands that need a stored session
var ErrNotLoggedIn = errors.New("not logged in, run 'tutoria login'")

func (a *App) newLoginCommand() *Command {
	cmd := &Command{
		Name:        "login",
		Description: "Sign in and store the session",
		Flags:       flag.NewFlagSet("login", flag.ContinueOnError),
	}
	cmd.Flags.SetOutput(a.Out)
	cmd.Flags.String("username", "", "Username or email (required)")
	cmd.Flags.String("password", "", "Password (defaults to $TUTORIA_PASSWORD)")
	cmd.Run = func(args []string) error {
		return a.runLogin(cmd, args)
	}
	return cmd
}

func (a *App) runLogin(cmd *Command, args []string) error {
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	username := cmd.Flags.Lookup("username").Value.String()
	password := cmd.Flags.Lookup("password").Value.String()
	if password == "" {
		password = os.Getenv("TUTORIA_PASSWORD")
	}
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}

	return a.withSession(func(ctx context.Context, s *Session) error {
		user, err := s.Store.Login(ctx, username, password)
		if err != nil {
			a.Log.WithField("username", username).WithError(err).Debug("login failed")
			return err
		}
		a.Log.WithFields(logrus.Fields{
			"user": user.Username,
			"role": user.AccessRole(),
		}).Info("logged in")
		fmt.Fprintf(a.Out, "Logged in as %s (%s)\n", displayName(user), user.AccessRole())
		return nil
	})
}

func (a *App) newLogoutCommand() *Command {
	cmd := &Command{
		Name:        "logout",
		Description: "Sign out and forget the stored session",
		Flags:       flag.NewFlagSet("logout", flag.ContinueOnError),
	}
	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return a.withSession(func(ctx context.Context, s *Session) error {
			if err := s.Store.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(a.Out, "Logged out")
			return nil
		})
	}
	return cmd
}

// WhoamiOutput is the JSON form of the whoami command
type WhoamiOutput struct {
	User        *auth.User        `json:"user"`
	AccessRole  auth.AccessRole   `json:"accessRole"`
	Pages       []string          `json:"pages"`
	Permissions []rbac.Permission `json:"permissions"`
}

func (a *App) newWhoamiCommand() *Command {
	cmd := &Command{
		Name:        "whoami",
		Description: "Show the signed-in user",
		Flags:       flag.NewFlagSet("whoami", flag.ContinueOnError),
	}
	cmd.Flags.SetOutput(a.Out)
	cmd.Flags.Bool("json", false, "Print as JSON")
	cmd.Flags.Bool("fetch", false, "Reload the profile from the auth service")
	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		asJSON := cmd.Flags.Lookup("json").Value.String() == "true"
		fetch := cmd.Flags.Lookup("fetch").Value.String() == "true"

		return a.withSession(func(ctx context.Context, s *Session) error {
			user, err := currentUser(s)
			if err != nil {
				return err
			}
			if fetch {
				if user, err = s.Store.RefreshUser(ctx); err != nil {
					return err
				}
			}

			if asJSON {
				enc := json.NewEncoder(a.Out)
				enc.SetIndent("", "  ")
				return enc.Encode(WhoamiOutput{
					User:        user,
					AccessRole:  user.AccessRole(),
					Pages:       s.Rules.Accessible(user),
					Permissions: rbac.DefaultChecker().EffectivePermissions(user),
				})
			}

			fmt.Fprintf(a.Out, "User:       %s\n", displayName(user))
			fmt.Fprintf(a.Out, "Email:      %s\n", user.Email)
			fmt.Fprintf(a.Out, "Role:       %s\n", user.AccessRole())
			if uni := user.University(); uni != "" {
				fmt.Fprintf(a.Out, "University: %s\n", uni)
			}
			if len(user.AssignedCourses) > 0 {
				fmt.Fprintf(a.Out, "Courses:    %s\n", strings.Join(user.AssignedCourses, ", "))
			}
			return nil
		})
	}
	return cmd
}

func (a *App) newCanCommand() *Command {
	cmd := &Command{
		Name:        "can",
		Description: "Check whether the signed-in user may perform an action",
		Flags:       flag.NewFlagSet("can", flag.ContinueOnError),
	}
	cmd.Flags.SetOutput(a.Out)
	cmd.Flags.String("university", "", "University id the check is scoped to")
	cmd.Flags.String("course", "", "Course id the check is scoped to")
	cmd.Flags.String("module", "", "Module id the check is scoped to")
	cmd.Run = func(args []string) error {
		return a.runCan(cmd, args)
	}
	return cmd
}

func (a *App) runCan(cmd *Command, args []string) error {
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}
	if cmd.Flags.NArg() != 2 {
		return fmt.Errorf("usage: tutoria can [flags] <action> <resource>")
	}

	action, err := parseAction(cmd.Flags.Arg(0))
	if err != nil {
		return err
	}
	resource, err := parseResource(cmd.Flags.Arg(1))
	if err != nil {
		return err
	}

	var permCtx *rbac.Context
	uni := cmd.Flags.Lookup("university").Value.String()
	course := cmd.Flags.Lookup("course").Value.String()
	module := cmd.Flags.Lookup("module").Value.String()
	if uni != "" || course != "" || module != "" {
		permCtx = &rbac.Context{UniversityID: uni, CourseID: course, ModuleID: module}
	}

	return a.withSession(func(_ context.Context, s *Session) error {
		user, err := currentUser(s)
		if err != nil {
			return err
		}

		result := rbac.DefaultChecker().Explain(user, action, resource, permCtx)
		if result.Allowed {
			fmt.Fprintf(a.Out, "allowed: %s %s", action, resource)
			if result.Matched != nil {
				fmt.Fprintf(a.Out, " (%s)", result.Matched)
			}
			fmt.Fprintln(a.Out)
			return nil
		}
		fmt.Fprintf(a.Out, "denied: %s %s: %s\n", action, resource, result.Reason)
		return nil
	})
}

func (a *App) newPagesCommand() *Command {
	cmd := &Command{
		Name:        "pages",
		Description: "List the dashboard pages the signed-in user can open",
		Flags:       flag.NewFlagSet("pages", flag.ContinueOnError),
	}
	cmd.Flags.SetOutput(a.Out)
	cmd.Flags.String("path", "", "Check a single page path")
	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		path := cmd.Flags.Lookup("path").Value.String()

		return a.withSession(func(_ context.Context, s *Session) error {
			user := s.Store.CurrentUser()
			if path != "" {
				if s.Rules.CanAccessPage(user, path, nil) {
					fmt.Fprintf(a.Out, "%s: allowed\n", path)
				} else {
					fmt.Fprintf(a.Out, "%s: denied\n", path)
				}
				return nil
			}

			if user == nil {
				return ErrNotLoggedIn
			}
			for _, p := range s.Rules.Accessible(user) {
				fmt.Fprintln(a.Out, p)
			}
			return nil
		})
	}
	return cmd
}

func (a *App) newRefreshCommand() *Command {
	cmd := &Command{
		Name:        "refresh",
		Description: "Refresh the stored access token",
		Flags:       flag.NewFlagSet("refresh", flag.ContinueOnError),
	}
	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return a.withSession(func(ctx context.Context, s *Session) error {
			if _, err := currentUser(s); err != nil {
				return err
			}
			if err := s.Store.Refresh(ctx); err != nil {
				if errors.Is(err, apiclient.ErrSessionExpired) {
					return fmt.Errorf("session expired, run 'tutoria login': %w", err)
				}
				return err
			}
			fmt.Fprintln(a.Out, "Token refreshed")
			return nil
		})
	}
	return cmd
}

func (a *App) newResetPasswordCommand() *Command {
	cmd := &Command{
		Name:        "reset-password",
		Description: "Request or confirm a password reset",
		Flags:       flag.NewFlagSet("reset-password", flag.ContinueOnError),
	}
	cmd.Flags.SetOutput(a.Out)
	cmd.Flags.String("email", "", "Send a reset link to this address")
	cmd.Flags.String("token", "", "Reset token from the emailed link")
	cmd.Flags.String("password", "", "New password (with -token)")
	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		email := cmd.Flags.Lookup("email").Value.String()
		token := cmd.Flags.Lookup("token").Value.String()
		password := cmd.Flags.Lookup("password").Value.String()

		return a.withSession(func(ctx context.Context, s *Session) error {
			switch {
			case email != "":
				if err := s.Client.RequestPasswordReset(ctx, email); err != nil {
					return err
				}
				fmt.Fprintf(a.Out, "If %s has an account, a reset link is on its way\n", email)
			case token != "" && password != "":
				if err := s.Client.ConfirmPasswordReset(ctx, token, password); err != nil {
					return err
				}
				fmt.Fprintln(a.Out, "Password updated")
			default:
				return fmt.Errorf("either -email or both -token and -password are required")
			}
			return nil
		})
	}
	return cmd
}

func currentUser(s *Session) (*auth.User, error) {
	user := s.Store.CurrentUser()
	if user == nil {
		return nil, ErrNotLoggedIn
	}
	return user, nil
}

func displayName(u *auth.User) string {
	if name := u.FullName(); name != "" && name != u.Username {
		return fmt.Sprintf("%s <%s>", name, u.Username)
	}
	return u.Username
}

func parseAction(s string) (rbac.Action, error) {
	for _, a := range rbac.Actions() {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

func parseResource(s string) (rbac.Resource, error) {
	for _, r := range rbac.Resources() {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown resource %q", s)
}
