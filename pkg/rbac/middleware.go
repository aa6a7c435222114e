package rbac

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tutoria/dashboard/pkg/auth"
	"github.com/tutoria/dashboard/pkg/contextkeys"
	"github.com/tutoria/dashboard/pkg/httputil"
	"github.com/tutoria/dashboard/pkg/observability"
)

// ContextFunc extracts the permission context of a request
type ContextFunc func(r *http.Request) *Context

// RouteContext reads universityId, courseId and moduleId from the route
// variables, falling back to query parameters of the same name.
func RouteContext(r *http.Request) *Context {
	vars := mux.Vars(r)
	lookup := func(key string) string {
		if v := vars[key]; v != "" {
			return v
		}
		return r.URL.Query().Get(key)
	}

	return &Context{
		UniversityID: lookup("universityId"),
		CourseID:     lookup("courseId"),
		ModuleID:     lookup("moduleId"),
	}
}

// PermissionMiddleware provides middleware for permission checking
type PermissionMiddleware struct {
	checker *Checker
	metrics *observability.Metrics
}

// NewPermissionMiddleware creates a new permission middleware.
// metrics may be nil.
func NewPermissionMiddleware(checker *Checker, metrics *observability.Metrics) *PermissionMiddleware {
	if checker == nil {
		checker = DefaultChecker()
	}
	return &PermissionMiddleware{
		checker: checker,
		metrics: metrics,
	}
}

// RequirePermission creates middleware that requires a specific permission.
// A nil contextFn checks without context.
func (pm *PermissionMiddleware) RequirePermission(action Action, resource Resource, contextFn ContextFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, _ := r.Context().Value(contextkeys.UserKey).(*auth.User)
			if user == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			var permCtx *Context
			if contextFn != nil {
				permCtx = contextFn(r)
			}

			result := pm.checker.Explain(user, action, resource, permCtx)
			pm.metrics.RecordAuthzDecision("permission", result.Allowed)
			if !result.Allowed {
				observability.FromContext(r.Context()).
					WithField("resource", string(resource)).
					WithField("action", string(action)).
					WithField("reason", result.Reason).
					Debug("permission denied")
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
