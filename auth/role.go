package auth

// Role is an ordinal privilege level. Lower values are more privileged,
// so comparisons go "<=" where English says "at least".
type Role int

const (
	RoleOwner Role = iota
	RoleAdmin
	RoleUser
)

// String returns the role claim the backend expects, lowercase.
func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleAdmin:
		return "admin"
	case RoleUser:
		return "user"
	default:
		return "user"
	}
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	return r >= RoleOwner && r <= RoleUser
}

// Status gates what a user may do before confirming their email,
// and lets a banned account keep its rows without keeping its access.
type Status int

const (
	StatusUnconfirmed Status = iota
	StatusConfirmed
	StatusBanned
)

// RoleAtLeast reports whether role carries at least the privilege of target.
func RoleAtLeast(role, target Role) bool {
	return role <= target
}

// EligibleRoles returns the roles that a holder of current may grant to
// others. A role can only hand out privilege it holds itself; anything
// outside this set must be rejected.
func EligibleRoles(current Role) []Role {
	var eligible []Role
	for _, r := range []Role{RoleOwner, RoleAdmin, RoleUser} {
		if RoleAtLeast(current, r) {
			eligible = append(eligible, r)
		}
	}
	return eligible
}
