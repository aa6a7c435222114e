package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutoria/dashboard/pkg/auth"
	"github.com/tutoria/dashboard/pkg/auth/authtest"
)

func contexts() []*Context {
	return []*Context{
		nil,
		{},
		{UniversityID: "uni-1"},
		{UniversityID: "uni-2", CourseID: "c-9"},
		{CourseID: "c-1", ModuleID: "m-1"},
	}
}

func TestBuiltInRoles_Valid(t *testing.T) {
	require.NoError(t, ValidateTable(BuiltInRoles()))

	names := map[auth.AccessRole]bool{}
	for _, role := range BuiltInRoles() {
		names[role.Name] = true
		assert.NotEmpty(t, role.Permissions, "role %s has no permissions", role.Name)
	}
	assert.Len(t, names, 4)
}

func TestValidateTable_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		roles []Role
	}{
		{"unnamed role", []Role{{Permissions: nil}}},
		{"duplicate role", []Role{{Name: auth.AccessStudent}, {Name: auth.AccessStudent}}},
		{"unknown action", []Role{{Name: auth.AccessStudent, Permissions: []Permission{{Action: "publish", Resource: ResourceCourse, Scope: ScopeCourse}}}}},
		{"unknown resource", []Role{{Name: auth.AccessStudent, Permissions: []Permission{{Action: ActionRead, Resource: "grade", Scope: ScopeCourse}}}}},
		{"unknown scope", []Role{{Name: auth.AccessStudent, Permissions: []Permission{{Action: ActionRead, Resource: ResourceCourse, Scope: "planet"}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, ValidateTable(tt.roles))
			_, err := NewTable(tt.roles)
			assert.Error(t, err)
		})
	}
}

func TestCheckPermission_NilUserDenied(t *testing.T) {
	for _, action := range Actions() {
		for _, resource := range Resources() {
			for _, ctx := range contexts() {
				assert.False(t, CheckPermission(nil, action, resource, ctx),
					"nil user allowed %s on %s", action, resource)
			}
		}
	}
}

func TestCheckPermission_SuperAdminAllowedEverywhere(t *testing.T) {
	user := authtest.SuperAdmin()
	checker := DefaultChecker()

	for _, perm := range checker.EffectivePermissions(user) {
		for _, ctx := range contexts() {
			assert.True(t, checker.CheckPermission(user, perm.Action, perm.Resource, ctx),
				"super admin denied %s with context %+v", perm, ctx)
		}
	}

	// Every (action, resource) pair has a super admin tuple
	for _, action := range Actions() {
		for _, resource := range Resources() {
			assert.True(t, CheckPermission(user, action, resource, nil))
		}
	}
}

func TestCheckPermission_RegularProfessorCourseScope(t *testing.T) {
	user := authtest.RegularProfessor("uni-1", "c-1", "c-2")
	checker := DefaultChecker()

	var courseScoped []Permission
	for _, p := range checker.EffectivePermissions(user) {
		if p.Scope == ScopeCourse {
			courseScoped = append(courseScoped, p)
		}
	}
	require.NotEmpty(t, courseScoped)

	for _, p := range courseScoped {
		t.Run(p.String(), func(t *testing.T) {
			assert.True(t, checker.CheckPermission(user, p.Action, p.Resource, &Context{CourseID: "c-1"}))
			assert.True(t, checker.CheckPermission(user, p.Action, p.Resource, &Context{CourseID: "c-2", UniversityID: "uni-9"}))
			assert.False(t, checker.CheckPermission(user, p.Action, p.Resource, &Context{CourseID: "c-3"}))
			assert.False(t, checker.CheckPermission(user, p.Action, p.Resource, &Context{UniversityID: "uni-1"}))
			assert.False(t, checker.CheckPermission(user, p.Action, p.Resource, nil))
		})
	}
}

func TestCheckPermission_AdminProfessor(t *testing.T) {
	user := authtest.AdminProfessor("uni-1")

	tests := []struct {
		name     string
		action   Action
		resource Resource
		ctx      *Context
		want     bool
	}{
		{"create course in own university", ActionCreate, ResourceCourse, &Context{UniversityID: "uni-1"}, true},
		{"create course in other university", ActionCreate, ResourceCourse, &Context{UniversityID: "uni-2"}, false},
		{"create course without context", ActionCreate, ResourceCourse, nil, false},
		{"read own university", ActionRead, ResourceUniversity, &Context{UniversityID: "uni-1"}, true},
		{"update own university", ActionUpdate, ResourceUniversity, &Context{UniversityID: "uni-1"}, true},
		{"delete own university", ActionDelete, ResourceUniversity, &Context{UniversityID: "uni-1"}, false},
		{"create university", ActionCreate, ResourceUniversity, &Context{UniversityID: "uni-1"}, false},
		{"manage professors", ActionUpdate, ResourceProfessor, &Context{UniversityID: "uni-1"}, true},
		{"manage tokens", ActionDelete, ResourceToken, &Context{UniversityID: "uni-1"}, true},
		{"manage tokens of other university", ActionDelete, ResourceToken, &Context{UniversityID: "uni-3"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckPermission(user, tt.action, tt.resource, tt.ctx))
		})
	}
}

func TestCheckPermission_AdminProfessorWithoutUniversity(t *testing.T) {
	user := authtest.AdminProfessor("uni-1")
	user.UniversityID = nil

	assert.False(t, CheckPermission(user, ActionRead, ResourceCourse, &Context{}))
	assert.False(t, CheckPermission(user, ActionRead, ResourceCourse, nil))
}

func TestCheckPermission_Student(t *testing.T) {
	user := authtest.Student("uni-1", "c-1")

	assert.True(t, CheckPermission(user, ActionRead, ResourceCourse, &Context{CourseID: "c-1"}))
	assert.True(t, CheckPermission(user, ActionRead, ResourceFile, &Context{CourseID: "c-1"}))
	assert.False(t, CheckPermission(user, ActionRead, ResourceCourse, &Context{CourseID: "c-2"}))
	assert.False(t, CheckPermission(user, ActionUpdate, ResourceCourse, &Context{CourseID: "c-1"}))
	assert.False(t, CheckPermission(user, ActionRead, ResourceToken, &Context{CourseID: "c-1"}))
	assert.False(t, CheckPermission(user, ActionRead, ResourceUniversity, &Context{UniversityID: "uni-1"}))
}

func TestCheckPermission_UnrecognisedRoleDenied(t *testing.T) {
	for _, role := range []auth.Role{"", "janitor"} {
		user := authtest.Student("uni-1", "c-1")
		user.Role = role

		for _, resource := range Resources() {
			for _, action := range Actions() {
				for _, ctx := range contexts() {
					assert.False(t, CheckPermission(user, action, resource, ctx), "%q %s:%s", role, resource, action)
				}
			}
		}
		assert.Contains(t, DefaultChecker().Explain(user, ActionRead, ResourceCourse, &Context{CourseID: "c-1"}).Reason, "unrecognised role")
		assert.Empty(t, DefaultChecker().EffectivePermissions(user))
	}
}

func TestCheckPermission_UnknownScopeIsPermissive(t *testing.T) {
	table := Table{
		auth.AccessStudent: {{Action: ActionRead, Resource: ResourceToken, Scope: "custom"}},
	}
	checker := NewChecker(table)
	user := authtest.Student("uni-1")

	assert.True(t, checker.CheckPermission(user, ActionRead, ResourceToken, nil))
	assert.False(t, checker.CheckPermission(user, ActionDelete, ResourceToken, nil))
}

func TestChecker_Explain(t *testing.T) {
	checker := DefaultChecker()

	t.Run("granted", func(t *testing.T) {
		result := checker.Explain(authtest.SuperAdmin(), ActionDelete, ResourceUniversity, nil)
		assert.True(t, result.Allowed)
		require.NotNil(t, result.Matched)
		assert.Equal(t, ScopeGlobal, result.Matched.Scope)
		assert.Contains(t, result.Reason, "super_admin")
	})

	t.Run("outside scope", func(t *testing.T) {
		result := checker.Explain(authtest.RegularProfessor("uni-1", "c-1"), ActionUpdate, ResourceCourse, &Context{CourseID: "c-5"})
		assert.False(t, result.Allowed)
		assert.Nil(t, result.Matched)
		assert.Contains(t, result.Reason, "outside the scope")
	})

	t.Run("no tuple", func(t *testing.T) {
		result := checker.Explain(authtest.Student("uni-1"), ActionCreate, ResourceUniversity, nil)
		assert.False(t, result.Allowed)
		assert.Contains(t, result.Reason, "cannot create university")
	})

	t.Run("role missing from table", func(t *testing.T) {
		result := NewChecker(Table{}).Explain(authtest.Student("uni-1"), ActionRead, ResourceCourse, nil)
		assert.False(t, result.Allowed)
		assert.Contains(t, result.Reason, "has no permissions")
	})
}

func TestChecker_EffectivePermissionsIsACopy(t *testing.T) {
	user := authtest.Student("uni-1")
	perms := DefaultChecker().EffectivePermissions(user)
	require.NotEmpty(t, perms)

	perms[0].Scope = ScopeGlobal
	assert.Equal(t, ScopeCourse, DefaultChecker().EffectivePermissions(user)[0].Scope)
	assert.Nil(t, DefaultChecker().EffectivePermissions(nil))
}

func TestPermission_String(t *testing.T) {
	p := Permission{Action: ActionRead, Resource: ResourceCourse, Scope: ScopeCourse}
	assert.Equal(t, "course:read@course", p.String())
}
