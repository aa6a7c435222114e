// Package middleware provides the dashboard's route gating and request user
// context.
//
// # Protected routes
//
// ProtectedRoute wraps a page handler:
//
//	router.Handle("/professors", middleware.ProtectedRoute(store, middleware.RouteOptions{
//		AllowedRoles: []auth.AccessRole{auth.AccessSuperAdmin, auth.AccessAdminProfessor},
//	})(professorsHandler))
//
// Decisions, in order:
//
//   - session still restoring: 503 {"status":"loading"}
//   - no user: redirect to /login
//   - role not in AllowedRoles: redirect to /dashboard
//   - page rule for r.URL.Path denies: redirect to /dashboard
//
// Handlers read the user back with GetUser(r).
//
// # Rate limiting
//
// RateLimit throttles sign-in attempts per client address. RateLimiter is an
// in-memory token bucket; DistributedRateLimiter shares a fixed window
// through Redis.
package middleware
