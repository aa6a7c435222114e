package rbac

import (
	"fmt"

	"github.com/tutoria/dashboard/pkg/auth"
)

// Table maps each access role to its permission tuples
type Table map[auth.AccessRole][]Permission

// NewTable validates roles and indexes them by access role
func NewTable(roles []Role) (Table, error) {
	if err := ValidateTable(roles); err != nil {
		return nil, err
	}

	table := make(Table, len(roles))
	for _, role := range roles {
		perms := make([]Permission, len(role.Permissions))
		copy(perms, role.Permissions)
		table[role.Name] = perms
	}
	return table, nil
}

// ValidateTable checks that every role is declared once and every tuple uses
// a known action, resource and scope.
func ValidateTable(roles []Role) error {
	seen := make(map[auth.AccessRole]bool, len(roles))
	for _, role := range roles {
		if role.Name == "" {
			return fmt.Errorf("role without a name")
		}
		if seen[role.Name] {
			return fmt.Errorf("role %s declared twice", role.Name)
		}
		seen[role.Name] = true

		for _, p := range role.Permissions {
			if !knownAction(p.Action) {
				return fmt.Errorf("role %s: unknown action %q", role.Name, p.Action)
			}
			if !knownResource(p.Resource) {
				return fmt.Errorf("role %s: unknown resource %q", role.Name, p.Resource)
			}
			switch p.Scope {
			case ScopeGlobal, ScopeUniversity, ScopeCourse:
			default:
				return fmt.Errorf("role %s: unknown scope %q on %s", role.Name, p.Scope, p)
			}
		}
	}
	return nil
}

func knownAction(a Action) bool {
	for _, known := range Actions() {
		if a == known {
			return true
		}
	}
	return false
}

func knownResource(r Resource) bool {
	for _, known := range Resources() {
		if r == known {
			return true
		}
	}
	return false
}

var defaultChecker = func() *Checker {
	table, err := NewTable(BuiltInRoles())
	if err != nil {
		panic(fmt.Sprintf("rbac: invalid built-in role table: %v", err))
	}
	return NewChecker(table)
}()

// Checker evaluates permission checks against a static role table.
// It holds no mutable state and is safe for concurrent use.
type Checker struct {
	table Table
}

// NewChecker creates a checker over table
func NewChecker(table Table) *Checker {
	return &Checker{table: table}
}

// DefaultChecker returns the checker over the built-in role table
func DefaultChecker() *Checker {
	return defaultChecker
}

// CheckPermission reports whether user may perform action on resource.
// ctx may be nil; scoped tuples then only match for super admins.
func CheckPermission(user *auth.User, action Action, resource Resource, ctx *Context) bool {
	return defaultChecker.CheckPermission(user, action, resource, ctx)
}

// CheckPermission reports whether user may perform action on resource
func (c *Checker) CheckPermission(user *auth.User, action Action, resource Resource, ctx *Context) bool {
	return c.Explain(user, action, resource, ctx).Allowed
}

// Explain runs a permission check and reports why it was decided
func (c *Checker) Explain(user *auth.User, action Action, resource Resource, ctx *Context) PermissionCheckResult {
	if user == nil {
		return PermissionCheckResult{Reason: "no authenticated user"}
	}

	role := user.AccessRole()
	if role == auth.AccessNone {
		return PermissionCheckResult{Reason: fmt.Sprintf("user has unrecognised role %q", user.Role)}
	}
	perms, ok := c.table[role]
	if !ok {
		return PermissionCheckResult{Reason: fmt.Sprintf("role %s has no permissions", role)}
	}

	matchedAction := false
	for _, p := range perms {
		if p.Action != action || p.Resource != resource {
			continue
		}
		matchedAction = true

		if scopeAllows(user, p.Scope, ctx) {
			matched := p
			return PermissionCheckResult{
				Allowed: true,
				Reason:  fmt.Sprintf("granted by %s to %s", matched, role),
				Matched: &matched,
			}
		}
	}

	if matchedAction {
		return PermissionCheckResult{Reason: fmt.Sprintf("%s:%s is outside the scope of %s", resource, action, role)}
	}
	return PermissionCheckResult{Reason: fmt.Sprintf("role %s cannot %s %s", role, action, resource)}
}

// EffectivePermissions returns the tuples granted to the user's access role
func (c *Checker) EffectivePermissions(user *auth.User) []Permission {
	if user == nil {
		return nil
	}
	perms := c.table[user.AccessRole()]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// scopeAllows resolves a tuple's scope against the acting user and context
func scopeAllows(user *auth.User, scope PermissionScope, ctx *Context) bool {
	role := user.AccessRole()
	if ctx == nil {
		ctx = &Context{}
	}

	switch scope {
	case ScopeGlobal:
		return role == auth.AccessSuperAdmin

	case ScopeUniversity:
		if role == auth.AccessSuperAdmin {
			return true
		}
		return role == auth.AccessAdminProfessor && sameUniversity(user, ctx)

	case ScopeCourse:
		switch role {
		case auth.AccessSuperAdmin:
			return true
		case auth.AccessAdminProfessor:
			return sameUniversity(user, ctx)
		case auth.AccessRegularProfessor, auth.AccessStudent:
			return user.AssignedTo(ctx.CourseID)
		}
		return false

	default:
		// Unknown scopes are permissive. ValidateTable keeps them out of
		// the built-in table.
		return true
	}
}

func sameUniversity(user *auth.User, ctx *Context) bool {
	university := user.University()
	return university != "" && university == ctx.UniversityID
}
