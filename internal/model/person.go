package model

// Person represents a family member who can own, lend, and borrow tools.
// Email is the unique key; login itself is handled outside this service.
type Person struct {
	Name      string `json:"name"`
	Role      string `json:"role"`
	Household string `json:"household"`
	Email     string `json:"email"`
}

// Roles.
const (
	RoleAdmin = "ADMIN"
	RoleAdult = "ADULT"
	RoleChild = "CHILD"
)

// ValidRole reports whether s is a known role.
func ValidRole(s string) bool {
	switch s {
	case RoleAdmin, RoleAdult, RoleChild:
		return true
	}
	return false
}
