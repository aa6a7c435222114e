package auth

import (
	"encoding/json"
	"slices"
	"time"
)

// Role is the top-level role carried by a user record
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleProfessor  Role = "professor"
	RoleStudent    Role = "student"
)

// Valid reports whether r is one of the known top-level roles
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleProfessor, RoleStudent:
		return true
	}
	return false
}

// AccessRole is the flat role every authorization check is evaluated against.
// It is derived from Role and the professor admin flag, never stored.
type AccessRole string

const (
	AccessSuperAdmin       AccessRole = "super_admin"
	AccessAdminProfessor   AccessRole = "admin_professor"
	AccessRegularProfessor AccessRole = "regular_professor"
	AccessStudent          AccessRole = "student"

	// AccessNone is the access role of a user whose stored role is missing
	// or unknown. It has no permissions.
	AccessNone AccessRole = ""
)

// Legacy role names that older persisted user records may carry as their top-level role
const (
	legacyAdminProfessor   = "admin_professor"
	legacyRegularProfessor = "regular_professor"
)

// Theme is the dashboard color theme preference
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// User is the authenticated principal of the dashboard
type User struct {
	ID              string     `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	FirstName       string     `json:"firstName,omitempty"`
	LastName        string     `json:"lastName,omitempty"`
	Role            Role       `json:"role"`
	IsActive        bool       `json:"isActive"`
	UniversityID    *string    `json:"universityId,omitempty"`
	IsAdmin         *bool      `json:"isAdmin,omitempty"` // professors only
	AssignedCourses []string   `json:"assignedCourses,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	LastLoginAt     *time.Time `json:"lastLoginAt,omitempty"`
	Theme           Theme      `json:"theme,omitempty"`
	Language        string     `json:"language,omitempty"`
}

// UnmarshalJSON decodes a user and folds legacy flat professor roles into
// the professor role plus its admin flag.
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	switch string(p.Role) {
	case legacyAdminProfessor:
		p.Role = RoleProfessor
		isAdmin := true
		p.IsAdmin = &isAdmin
	case legacyRegularProfessor:
		p.Role = RoleProfessor
		isAdmin := false
		p.IsAdmin = &isAdmin
	}

	*u = User(p)
	return nil
}

// AccessRole derives the flat access role of the user.
// A professor without an explicit admin flag is a regular professor; an
// empty or unknown role yields AccessNone.
func (u *User) AccessRole() AccessRole {
	switch u.Role {
	case RoleSuperAdmin:
		return AccessSuperAdmin
	case RoleProfessor:
		if u.IsAdmin != nil && *u.IsAdmin {
			return AccessAdminProfessor
		}
		return AccessRegularProfessor
	case RoleStudent:
		return AccessStudent
	default:
		return AccessNone
	}
}

// IsSuperAdmin reports whether the user is a super admin
func (u *User) IsSuperAdmin() bool {
	return u != nil && u.Role == RoleSuperAdmin
}

// IsAdminProfessor reports whether the user is a professor with admin rights
func (u *User) IsAdminProfessor() bool {
	return u != nil && u.AccessRole() == AccessAdminProfessor
}

// IsProfessor reports whether the user is a professor of either variant
func (u *User) IsProfessor() bool {
	return u != nil && u.Role == RoleProfessor
}

// University returns the user's university id, or "" when unaffiliated
func (u *User) University() string {
	if u == nil || u.UniversityID == nil {
		return ""
	}
	return *u.UniversityID
}

// AssignedTo reports whether courseID is among the user's assigned courses
func (u *User) AssignedTo(courseID string) bool {
	if u == nil || courseID == "" {
		return false
	}
	return slices.Contains(u.AssignedCourses, courseID)
}

// FullName joins first and last name, falling back to the username
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return u.Username
	}
}

// HasFullProfile reports whether the record carries the profile fields of the
// current user shape. Older persisted records lack firstName.
func (u *User) HasFullProfile() bool {
	return u != nil && u.FirstName != ""
}

// Preferences holds the user-editable dashboard preferences
type Preferences struct {
	Theme    Theme  `json:"theme,omitempty"`
	Language string `json:"language,omitempty"`
}

// Tokens is the pair of credentials issued by the auth API
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
