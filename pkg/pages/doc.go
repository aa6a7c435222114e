// Package pages holds the dashboard's page access rules.
//
// Rules are keyed by exact path and inspect the user's role directly. They
// are independent from the resource permissions in package rbac, so a user
// may be allowed onto a page whose actions the permission checker later
// hides.
//
//	if !pages.CanAccessPage(user, "/universities", nil) {
//		httputil.Redirect(w, r, pages.Dashboard)
//	}
//
// Paths without a rule are open to any signed-in user unless the table is
// built with WithDefaultDeny.
package pages
