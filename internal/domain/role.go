package domain

// RoleName identifies one of the fixed, seeded roles.
type RoleName string

const (
	RoleAdmin     RoleName = "admin"
	RoleOperator1 RoleName = "operator1"
	RoleOperator2 RoleName = "operator2"
	RoleOperator3 RoleName = "operator3"
)

// Role is a seeded, immutable permission group.
type Role struct {
	Name        RoleName
	Description string
}

// AllRoles returns the fixed role set in seed order.
func AllRoles() []Role {
	return []Role{
		{Name: RoleAdmin, Description: "Administrator with full access"},
		{Name: RoleOperator1, Description: "Support line 1 operator"},
		{Name: RoleOperator2, Description: "Support line 2 operator"},
		{Name: RoleOperator3, Description: "Support line 3 operator"},
	}
}

// IsAdmin reports whether the role is the administrator role.
func (r RoleName) IsAdmin() bool {
	return r == RoleAdmin
}

// IsOperator reports whether the role belongs to a support-line operator.
func (r RoleName) IsOperator() bool {
	switch r {
	case RoleOperator1, RoleOperator2, RoleOperator3:
		return true
	}
	return false
}

// IsKnown reports whether the role is part of the seeded set.
func (r RoleName) IsKnown() bool {
	return r == RoleAdmin || r.IsOperator()
}
