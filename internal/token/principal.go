package token

import "time"

// Role is the coarse permission level carried in the identity token.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleReadonly Role = "readonly"
)

// IsValid checks if the role is one of the supported enum values.
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleReadonly
}

// Satisfies reports whether r meets the required minimum role.
// Admin satisfies every requirement; readonly satisfies only readonly.
func (r Role) Satisfies(required Role) bool {
	if r == RoleAdmin {
		return true
	}
	return r == required
}

// Principal is the verified identity for one request. It is derived fresh
// from each verified token and discarded with the request; it is never
// persisted as mutable state.
type Principal struct {
	SubjectID   string    `json:"subjectId"`
	Email       string    `json:"email"`
	Role        Role      `json:"role"`
	TokenExpiry time.Time `json:"tokenExpiry"`
}
