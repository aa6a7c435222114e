// Package rbac holds the role table and permission checker of the Tutoria dashboard.
//
// # Overview
//
// A permission is a static (action, resource, scope) tuple. Each access role
// (see auth.AccessRole) owns a fixed list of tuples declared in BuiltInRoles.
// The table is validated once when the package loads and never changes at
// runtime.
//
// Resources:
//
//	ResourceUniversity, ResourceCourse, ResourceModule, ResourceProfessor,
//	ResourceStudent, ResourceFile, ResourceToken
//
// Actions:
//
//	ActionCreate, ActionRead, ActionUpdate, ActionDelete
//
// # Scopes
//
// The scope of a matching tuple is resolved against the acting user and the
// optional Context supplied by the caller:
//
//	ScopeGlobal      - super admins only
//	ScopeUniversity  - super admins, or admin professors whose university
//	                   equals Context.UniversityID
//	ScopeCourse      - super admins; admin professors inside their own
//	                   university; regular professors and students whose
//	                   assigned courses contain Context.CourseID
//
// # Checking permissions
//
//	ok := rbac.CheckPermission(user, rbac.ActionUpdate, rbac.ResourceCourse,
//		&rbac.Context{CourseID: "c-42"})
//
// A nil user is always denied. A check that matches no tuple is denied. There
// is no error path: the checker is pure and can run on every request.
//
// Explain returns the same decision together with the tuple that granted it,
// which is what the debug logs of the permission middleware print.
//
// # HTTP middleware
//
//	pm := rbac.NewPermissionMiddleware(rbac.DefaultChecker(), metrics)
//	router.Handle("/api/courses/{courseId}",
//		pm.RequirePermission(rbac.ActionDelete, rbac.ResourceCourse, rbac.RouteContext)(h),
//	).Methods(http.MethodDelete)
//
// These checks only decide what the dashboard shows and forwards. The
// backend APIs enforce authorization independently.
package rbac
