// Package auth holds the identity model of the Tutoria dashboard.
//
// # Roles
//
// A user record carries one top-level Role (super_admin, professor or
// student). Professors additionally carry an IsAdmin flag that splits them
// into admin and regular professors. Authorization code never looks at Role
// and IsAdmin separately: it derives the flat AccessRole once
//
//	switch user.AccessRole() {
//	case auth.AccessSuperAdmin:
//	case auth.AccessAdminProfessor:
//	case auth.AccessRegularProfessor:
//	case auth.AccessStudent:
//	}
//
// Older persisted records that stored admin_professor or regular_professor as
// the top-level role are normalised while decoding.
//
// # Access tokens
//
// Access tokens are JWTs issued by the auth API. The dashboard decodes them
// locally only to learn when they expire:
//
//	expired, err := auth.TokenExpired(token, time.Now())
//
// Signatures are not checked here. The backend verifies every token it
// receives, so nothing in this package is a security boundary.
package auth
