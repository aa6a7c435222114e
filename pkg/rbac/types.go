package rbac

import (
	"fmt"

	"github.com/tutoria/dashboard/pkg/auth"
)

// Resource represents a resource type managed through the dashboard
type Resource string

const (
	ResourceUniversity Resource = "university"
	ResourceCourse     Resource = "course"
	ResourceModule     Resource = "module"
	ResourceProfessor  Resource = "professor"
	ResourceStudent    Resource = "student"
	ResourceFile       Resource = "file"
	ResourceToken      Resource = "token"
)

// Resources lists every known resource
func Resources() []Resource {
	return []Resource{
		ResourceUniversity,
		ResourceCourse,
		ResourceModule,
		ResourceProfessor,
		ResourceStudent,
		ResourceFile,
		ResourceToken,
	}
}

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Actions lists every known action
func Actions() []Action {
	return []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}
}

// PermissionScope represents how far a permission reaches
type PermissionScope string

const (
	ScopeGlobal     PermissionScope = "global"     // Whole platform (super admin)
	ScopeUniversity PermissionScope = "university" // The user's own university
	ScopeCourse     PermissionScope = "course"     // Courses the user is assigned to
)

// Permission is a static (action, resource, scope) tuple
type Permission struct {
	Action   Action          `json:"action"`
	Resource Resource        `json:"resource"`
	Scope    PermissionScope `json:"scope"`
}

// String returns a string representation of the permission
func (p Permission) String() string {
	return fmt.Sprintf("%s:%s@%s", p.Resource, p.Action, p.Scope)
}

// Context carries the ids a scoped check is resolved against
type Context struct {
	UniversityID string `json:"universityId,omitempty"`
	CourseID     string `json:"courseId,omitempty"`
	ModuleID     string `json:"moduleId,omitempty"`
}

// Role is a named list of permissions for one access role
type Role struct {
	Name        auth.AccessRole `json:"name"`
	DisplayName string          `json:"display_name"`
	Description string          `json:"description"`
	Permissions []Permission    `json:"permissions"`
}

// PermissionCheckResult explains the outcome of a permission check
type PermissionCheckResult struct {
	Allowed bool        `json:"allowed"`
	Reason  string      `json:"reason,omitempty"`
	Matched *Permission `json:"matched,omitempty"`
}

func crud(resource Resource, scope PermissionScope) []Permission {
	perms := make([]Permission, 0, 4)
	for _, action := range Actions() {
		perms = append(perms, Permission{Action: action, Resource: resource, Scope: scope})
	}
	return perms
}

func perms(scope PermissionScope, resource Resource, actions ...Action) []Permission {
	out := make([]Permission, 0, len(actions))
	for _, action := range actions {
		out = append(out, Permission{Action: action, Resource: resource, Scope: scope})
	}
	return out
}

func join(groups ...[]Permission) []Permission {
	var out []Permission
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// BuiltInRoles returns the role table
func BuiltInRoles() []Role {
	var superAdmin []Permission
	for _, resource := range Resources() {
		superAdmin = append(superAdmin, crud(resource, ScopeGlobal)...)
	}

	return []Role{
		{
			Name:        auth.AccessSuperAdmin,
			DisplayName: "Super Admin",
			Description: "Full access to every university and resource",
			Permissions: superAdmin,
		},
		{
			Name:        auth.AccessAdminProfessor,
			DisplayName: "Admin Professor",
			Description: "Manages the courses, staff and students of their university",
			Permissions: join(
				perms(ScopeUniversity, ResourceUniversity, ActionRead, ActionUpdate),
				crud(ResourceCourse, ScopeUniversity),
				crud(ResourceModule, ScopeUniversity),
				crud(ResourceProfessor, ScopeUniversity),
				crud(ResourceStudent, ScopeUniversity),
				crud(ResourceFile, ScopeUniversity),
				crud(ResourceToken, ScopeUniversity),
			),
		},
		{
			Name:        auth.AccessRegularProfessor,
			DisplayName: "Professor",
			Description: "Teaches the courses they are assigned to",
			Permissions: join(
				perms(ScopeCourse, ResourceCourse, ActionRead, ActionUpdate),
				crud(ResourceModule, ScopeCourse),
				crud(ResourceFile, ScopeCourse),
				perms(ScopeCourse, ResourceStudent, ActionRead),
				perms(ScopeCourse, ResourceToken, ActionRead),
			),
		},
		{
			Name:        auth.AccessStudent,
			DisplayName: "Student",
			Description: "Reads the material of enrolled courses",
			Permissions: join(
				perms(ScopeCourse, ResourceCourse, ActionRead),
				perms(ScopeCourse, ResourceModule, ActionRead),
				perms(ScopeCourse, ResourceFile, ActionRead),
			),
		},
	}
}
