// Package policy gates borrow eligibility by role and safety rating.
package policy

import (
	"fmt"

	"github.com/hintze-labs/toolshed/internal/model"
)

// CheckSafety reports whether a person with the given role may borrow a
// tool with the given safety rating. Pure, no side effects; it runs at
// every borrow authorization checkpoint, self-serve or assisted.
//
// Admins and adults may borrow anything. Children are allowed only the
// ratings on the explicit allow-list; Adult Only and any rating this code
// does not recognize are denied. Fail closed, not a deny-list.
func CheckSafety(role, rating string) bool {
	switch role {
	case model.RoleAdmin, model.RoleAdult:
		return true
	case model.RoleChild:
		switch rating {
		case model.SafetyOpen, model.SafetySupervised:
			return true
		}
		return false
	}
	return false
}

// Denial renders the user-facing message for a safety refusal. Denials
// always name the specific tool and role involved.
func Denial(toolName, role, rating string) string {
	return fmt.Sprintf("tool %q is rated %q and may not be borrowed by a %s", toolName, rating, role)
}
