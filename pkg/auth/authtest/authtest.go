// Package authtest provides user fixtures and signed access tokens for tests.
package authtest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tutoria/dashboard/pkg/auth"
)

const signingKey = "authtest-signing-key"

// Token returns an HS256 access token for subject that expires at exp.
// A zero exp produces a token without an exp claim.
func Token(t testing.TB, subject string, exp time.Time) string {
	t.Helper()

	claims := auth.Claims{
		UserID:   subject,
		Username: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	if !exp.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(exp)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

// ValidToken returns a token for subject that expires in an hour
func ValidToken(t testing.TB, subject string) string {
	t.Helper()
	return Token(t, subject, time.Now().Add(time.Hour))
}

// ExpiredToken returns a token for subject that expired an hour ago
func ExpiredToken(t testing.TB, subject string) string {
	t.Helper()
	return Token(t, subject, time.Now().Add(-time.Hour))
}

// SuperAdmin returns a super admin fixture
func SuperAdmin() *auth.User {
	return &auth.User{
		ID:        "u-super",
		Username:  "root",
		Email:     "root@tutoria.test",
		FirstName: "Ada",
		LastName:  "Root",
		Role:      auth.RoleSuperAdmin,
		IsActive:  true,
	}
}

// AdminProfessor returns an admin professor of universityID
func AdminProfessor(universityID string) *auth.User {
	return &auth.User{
		ID:           "u-admin-prof",
		Username:     "aprof",
		Email:        "aprof@tutoria.test",
		FirstName:    "Grace",
		LastName:     "Admin",
		Role:         auth.RoleProfessor,
		IsActive:     true,
		UniversityID: auth.StringPtr(universityID),
		IsAdmin:      auth.BoolPtr(true),
	}
}

// RegularProfessor returns a regular professor of universityID assigned to courses
func RegularProfessor(universityID string, courses ...string) *auth.User {
	return &auth.User{
		ID:              "u-prof",
		Username:        "prof",
		Email:           "prof@tutoria.test",
		FirstName:       "Alan",
		LastName:        "Regular",
		Role:            auth.RoleProfessor,
		IsActive:        true,
		UniversityID:    auth.StringPtr(universityID),
		IsAdmin:         auth.BoolPtr(false),
		AssignedCourses: courses,
	}
}

// Student returns a student of universityID enrolled in courses
func Student(universityID string, courses ...string) *auth.User {
	return &auth.User{
		ID:              "u-student",
		Username:        "student",
		Email:           "student@tutoria.test",
		FirstName:       "Barbara",
		LastName:        "Student",
		Role:            auth.RoleStudent,
		IsActive:        true,
		UniversityID:    auth.StringPtr(universityID),
		AssignedCourses: courses,
	}
}
