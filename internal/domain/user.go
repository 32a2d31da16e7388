package domain

// Role determines which ticket actions a session user may take.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleERPAdmin Role = "ERPADMIN"
	RoleEmployee Role = "Employee"
)

// SessionUser is the signed-in employee as handed over by the upstream login system.
type SessionUser struct {
	EmpID string
	Role  Role
	Name  string
}

// SameIdentity reports whether both users carry the same employee id and role.
func (u SessionUser) SameIdentity(other SessionUser) bool {
	return u.EmpID == other.EmpID && u.Role == other.Role
}
