package middleware

import (
	"context"
	"net/http"

	"github.com/tutoria/dashboard/pkg/auth"
	"github.com/tutoria/dashboard/pkg/contextkeys"
	"github.com/tutoria/dashboard/pkg/httputil"
	"github.com/tutoria/dashboard/pkg/observability"
	"github.com/tutoria/dashboard/pkg/pages"
)

// SessionReader is the read side of the session store used by the
// middleware. session.Store satisfies it.
type SessionReader interface {
	// Loading reports whether the session is still being restored
	Loading() bool
	// CurrentUser returns the signed-in user or nil
	CurrentUser() *auth.User
}

// WithUser returns a copy of ctx carrying user
func WithUser(ctx context.Context, user *auth.User) context.Context {
	ctx = contextkeys.WithUser(ctx, user)
	if user != nil {
		ctx = contextkeys.WithPrincipal(ctx, contextkeys.Principal{
			UserID:     user.ID,
			AccessRole: string(user.AccessRole()),
		})
	}
	return ctx
}

// UserFromContext extracts the user placed by ProtectedRoute or SessionUser
func UserFromContext(ctx context.Context) *auth.User {
	user, _ := ctx.Value(contextkeys.UserKey).(*auth.User)
	return user
}

// GetUser extracts the request user
func GetUser(r *http.Request) *auth.User {
	return UserFromContext(r.Context())
}

// SessionUser places the current session user, if any, in the request
// context without enforcing anything
func SessionUser(sessions SessionReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user := sessions.CurrentUser(); user != nil {
				r = r.WithContext(WithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RouteOptions configures ProtectedRoute
type RouteOptions struct {
	// AllowedRoles restricts the route to these access roles. Empty means
	// any role, subject to the page rules.
	AllowedRoles []auth.AccessRole

	// Public skips the authentication requirement. Page rules still apply
	// to signed-in users.
	Public bool

	// Rules defaults to pages.DefaultRules()
	Rules *pages.Rules

	// LoginPath and FallbackPath default to /login and /dashboard
	LoginPath    string
	FallbackPath string

	Metrics *observability.Metrics
}

func (o RouteOptions) withDefaults() RouteOptions {
	if o.Rules == nil {
		o.Rules = pages.DefaultRules()
	}
	if o.LoginPath == "" {
		o.LoginPath = pages.Login
	}
	if o.FallbackPath == "" {
		o.FallbackPath = pages.Dashboard
	}
	return o
}

// ProtectedRoute gates a page. While the session is restoring it answers
// 503 {"status":"loading"} and nothing else. Anonymous requests go to the
// login page; role or page-rule mismatches go to the fallback page.
func ProtectedRoute(sessions SessionReader, opts RouteOptions) func(http.Handler) http.Handler {
	opts = opts.withDefaults()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sessions.Loading() {
				httputil.WriteLoading(w)
				return
			}

			logger := observability.FromContext(r.Context()).WithField("path", r.URL.Path)

			user := sessions.CurrentUser()
			if user == nil {
				if opts.Public {
					next.ServeHTTP(w, r)
					return
				}
				logger.Debug("no session, redirecting to login")
				opts.Metrics.RecordAuthzDecision("route", false)
				httputil.Redirect(w, r, opts.LoginPath)
				return
			}

			if len(opts.AllowedRoles) > 0 && !roleAllowed(user, opts.AllowedRoles) {
				logger.WithField("role", string(user.AccessRole())).Debug("role not allowed on route")
				opts.Metrics.RecordAuthzDecision("role", false)
				httputil.Redirect(w, r, opts.FallbackPath)
				return
			}

			if !opts.Rules.CanAccessPage(user, r.URL.Path, nil) {
				logger.WithField("role", string(user.AccessRole())).Debug("page rule denied")
				opts.Metrics.RecordAuthzDecision("page", false)
				httputil.Redirect(w, r, opts.FallbackPath)
				return
			}

			opts.Metrics.RecordAuthzDecision("page", true)
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func roleAllowed(user *auth.User, allowed []auth.AccessRole) bool {
	role := user.AccessRole()
	for _, a := range allowed {
		if a == role {
			return true
		}
	}
	return false
}
