package pages

import (
	"sort"

	"github.com/tutoria/dashboard/pkg/auth"
	"github.com/tutoria/dashboard/pkg/rbac"
)

// Dashboard paths with a registered rule
const (
	Dashboard    = "/dashboard"
	Settings     = "/settings"
	Universities = "/universities"
	AIModels     = "/ai-models"
	Courses      = "/courses"
	Modules      = "/modules"
	Files        = "/files"
	Students     = "/students"
	Professors   = "/professors"
	Tokens       = "/tokens"
	Analytics    = "/analytics"
)

// Login is where unauthenticated users are sent
const Login = "/login"

// Predicate decides whether user may open a page. user is never nil.
type Predicate func(user *auth.User, ctx *rbac.Context) bool

// Rules maps exact page paths to predicates. Dynamic segments are not
// pattern-matched: "/courses/c-1" has no rule of its own.
type Rules struct {
	table       map[string]Predicate
	defaultDeny bool
}

// Option configures Rules
type Option func(*Rules)

// WithDefaultDeny denies paths that have no registered rule.
// Unregistered paths are allowed when this option is absent.
func WithDefaultDeny() Option {
	return func(r *Rules) { r.defaultDeny = true }
}

// WithRule registers or replaces the rule for path
func WithRule(path string, p Predicate) Option {
	return func(r *Rules) { r.table[path] = p }
}

// NewRules returns the built-in page table with opts applied
func NewRules(opts ...Option) *Rules {
	r := &Rules{table: builtIn()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Any allows every authenticated user
func Any(*auth.User, *rbac.Context) bool { return true }

// Roles allows users whose access role is one of roles
func Roles(roles ...auth.AccessRole) Predicate {
	return func(user *auth.User, _ *rbac.Context) bool {
		role := user.AccessRole()
		for _, allowed := range roles {
			if role == allowed {
				return true
			}
		}
		return false
	}
}

// superAdminOrProfessor inspects the stored role, so both professor
// variants pass
func superAdminOrProfessor(user *auth.User, _ *rbac.Context) bool {
	return user.IsSuperAdmin() || user.IsProfessor()
}

func builtIn() map[string]Predicate {
	superAdminOnly := Roles(auth.AccessSuperAdmin)
	adminOnly := Roles(auth.AccessSuperAdmin, auth.AccessAdminProfessor)

	return map[string]Predicate{
		Dashboard:    Any,
		Settings:     Any,
		Universities: superAdminOnly,
		AIModels:     superAdminOnly,
		Courses:      superAdminOrProfessor,
		Modules:      superAdminOrProfessor,
		Files:        superAdminOrProfessor,
		Students:     superAdminOrProfessor,
		Professors:   adminOnly,
		Tokens:       adminOnly,
		Analytics:    adminOnly,
	}
}

// CanAccessPage reports whether user may open path. A nil user is always
// denied.
func (r *Rules) CanAccessPage(user *auth.User, path string, ctx *rbac.Context) bool {
	if user == nil {
		return false
	}
	rule, ok := r.table[path]
	if !ok {
		return !r.defaultDeny
	}
	return rule(user, ctx)
}

// Registered reports whether path has an explicit rule
func (r *Rules) Registered(path string) bool {
	_, ok := r.table[path]
	return ok
}

// Paths lists the registered paths in lexical order
func (r *Rules) Paths() []string {
	paths := make([]string, 0, len(r.table))
	for p := range r.table {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Accessible lists the registered paths user may open, in lexical order
func (r *Rules) Accessible(user *auth.User) []string {
	var out []string
	for _, p := range r.Paths() {
		if r.CanAccessPage(user, p, nil) {
			out = append(out, p)
		}
	}
	return out
}

var defaultRules = NewRules()

// DefaultRules returns the shared built-in table
func DefaultRules() *Rules {
	return defaultRules
}

// CanAccessPage checks path against the built-in table
func CanAccessPage(user *auth.User, path string, ctx *rbac.Context) bool {
	return defaultRules.CanAccessPage(user, path, ctx)
}
