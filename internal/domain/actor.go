package domain

// Role enumerates the actor roles that gate transitions.
type Role string

const (
	RoleEmployee    Role = "employee"
	RoleTechnician  Role = "technician"
	RoleSupervisor  Role = "supervisor"
	RoleCoordinator Role = "coordinator"
	RoleDepartment  Role = "department"
	RoleAdmin       Role = "admin"
)

// ParseRole validates a raw role string.
func ParseRole(raw string) (Role, bool) {
	switch r := Role(raw); r {
	case RoleEmployee, RoleTechnician, RoleSupervisor, RoleCoordinator, RoleDepartment, RoleAdmin:
		return r, true
	}
	return "", false
}

// Actor is the explicit caller identity passed to every transition.
type Actor struct {
	ID           string
	Role         Role
	DepartmentID *string
}
