package guard

import (
	"slices"

	"github.com/tutoria/dashboard/pkg/auth"
	"github.com/tutoria/dashboard/pkg/observability"
	"github.com/tutoria/dashboard/pkg/rbac"
)

// Permission names a permission check a fragment depends on
type Permission struct {
	Action   rbac.Action
	Resource rbac.Resource
	// Context is optional; scoped permissions then only hold for super admins
	Context *rbac.Context
}

// Requirement is what a user must satisfy to see a fragment. Roles and
// permission are both checked when both are set. An empty requirement
// admits any signed-in user.
type Requirement struct {
	AllowedRoles []auth.AccessRole
	Permission   *Permission
}

// Common role sets
var (
	SuperAdmins = []auth.AccessRole{auth.AccessSuperAdmin}
	Admins      = []auth.AccessRole{auth.AccessSuperAdmin, auth.AccessAdminProfessor}
	Professors  = []auth.AccessRole{auth.AccessSuperAdmin, auth.AccessAdminProfessor, auth.AccessRegularProfessor}
)

// Evaluator decides requirements against a role table
type Evaluator struct {
	checker *rbac.Checker
	metrics *observability.Metrics
}

// NewEvaluator creates an Evaluator. A nil checker means the built-in table;
// metrics may be nil.
func NewEvaluator(checker *rbac.Checker, metrics *observability.Metrics) *Evaluator {
	if checker == nil {
		checker = rbac.DefaultChecker()
	}
	return &Evaluator{checker: checker, metrics: metrics}
}

var defaultEvaluator = NewEvaluator(nil, nil)

// CanShow reports whether user satisfies req under the built-in table
func CanShow(user *auth.User, req Requirement) bool {
	return defaultEvaluator.CanShow(user, req)
}

// CanShow reports whether user satisfies req
func (e *Evaluator) CanShow(user *auth.User, req Requirement) bool {
	allowed := e.evaluate(user, req)
	e.metrics.RecordAuthzDecision("guard", allowed)
	return allowed
}

func (e *Evaluator) evaluate(user *auth.User, req Requirement) bool {
	if user == nil {
		return false
	}
	if len(req.AllowedRoles) > 0 && !slices.Contains(req.AllowedRoles, user.AccessRole()) {
		return false
	}
	if p := req.Permission; p != nil {
		return e.checker.CheckPermission(user, p.Action, p.Resource, p.Context)
	}
	return true
}

// Fragment is a piece of a page view shown only to users who satisfy its
// requirement. Others get Fallback, which is nothing unless set.
type Fragment struct {
	Name        string
	Requirement Requirement
	Content     interface{}
	Fallback    interface{}
}

// WithFallback returns a copy of f that shows fallback to denied users
func (f Fragment) WithFallback(fallback interface{}) Fragment {
	f.Fallback = fallback
	return f
}

// Render returns the content user may see and whether there is any
func (e *Evaluator) Render(user *auth.User, f Fragment) (interface{}, bool) {
	if e.CanShow(user, f.Requirement) {
		return f.Content, true
	}
	if f.Fallback != nil {
		return f.Fallback, true
	}
	return nil, false
}

// Visible renders fragments for user keyed by name, leaving out those that
// render nothing
func (e *Evaluator) Visible(user *auth.User, fragments []Fragment) map[string]interface{} {
	out := make(map[string]interface{}, len(fragments))
	for _, f := range fragments {
		if content, ok := e.Render(user, f); ok {
			out[f.Name] = content
		}
	}
	return out
}

// Visible renders fragments under the built-in table
func Visible(user *auth.User, fragments []Fragment) map[string]interface{} {
	return defaultEvaluator.Visible(user, fragments)
}

// RoleGuard shows content to the given access roles
func RoleGuard(name string, roles []auth.AccessRole, content interface{}) Fragment {
	return Fragment{Name: name, Requirement: Requirement{AllowedRoles: roles}, Content: content}
}

// PermissionGuard shows content to users holding a permission
func PermissionGuard(name string, perm Permission, content interface{}) Fragment {
	return Fragment{Name: name, Requirement: Requirement{Permission: &perm}, Content: content}
}

// SuperAdminOnly shows content to super admins
func SuperAdminOnly(name string, content interface{}) Fragment {
	return RoleGuard(name, SuperAdmins, content)
}

// AdminOnly shows content to super admins and admin professors
func AdminOnly(name string, content interface{}) Fragment {
	return RoleGuard(name, Admins, content)
}

// ProfessorOnly shows content to super admins and professors of either kind
func ProfessorOnly(name string, content interface{}) Fragment {
	return RoleGuard(name, Professors, content)
}
