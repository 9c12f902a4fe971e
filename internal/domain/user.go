package domain

import "fmt"

type Role string

const (
	RoleAttendee  Role = "attendee"
	RoleOrganizer Role = "organizer"
	RoleStaff     Role = "staff"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAttendee, RoleOrganizer, RoleStaff:
		return true
	}
	return false
}

// Actor is the (userID, role) pair supplied by the identity provider. Role
// claims are trusted as received.
type Actor struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// Require returns ErrForbidden unless the actor holds one of roles.
func (a Actor) Require(roles ...Role) error {
	for _, r := range roles {
		if a.Role == r {
			return nil
		}
	}
	return fmt.Errorf("role %q: %w", a.Role, ErrForbidden)
}
