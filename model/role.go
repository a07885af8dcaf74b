package model

// Role is the platform's totally ordered permission level. Roles are only
// ever compared, never combined.
type Role string

const (
	RoleUser          Role = "user"
	RoleModerator     Role = "moderator"
	RoleAdministrator Role = "administrator"
)

var roleRank = map[Role]int{
	RoleUser:          1,
	RoleModerator:     2,
	RoleAdministrator: 3,
}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r sits at or above min in the role order
// user < moderator < administrator. Unknown roles rank below everything.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

func (r Role) String() string {
	return string(r)
}
