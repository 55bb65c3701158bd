package model

import "strings"

// Role values issued by the portal backend at login.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

// Identity is the authenticated principal of this gateway process.  It is
// created at login, destroyed at logout and owned by the identity store;
// every other component receives a copy per operation.
type Identity struct {
	Role  string `json:"role"`
	Token string `json:"token"`
	User  User   `json:"user"`
}

// User is the profile the backend returns alongside the bearer token.
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	AdmissionNo string `json:"admissionNo,omitempty"`
	Email       string `json:"email,omitempty"`
	Section     string `json:"section,omitempty"`
}

// Valid reports whether the identity carries enough to call the backend.
func (i Identity) Valid() bool {
	return strings.TrimSpace(i.Token) != "" && i.User.ID != "" && ValidRole(i.Role)
}

// IsStudent reports whether the identity belongs to a student.
func (i Identity) IsStudent() bool { return i.Role == RoleStudent }

// IsTeacher reports whether the identity belongs to a teacher.
func (i Identity) IsTeacher() bool { return i.Role == RoleTeacher }

// ValidRole reports whether r is one of the known roles.
func ValidRole(r string) bool { return r == RoleStudent || r == RoleTeacher }
