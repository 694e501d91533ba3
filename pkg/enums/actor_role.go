package enums

import "fmt"

// ActorRole distinguishes who is calling the API.
type ActorRole string

const (
	ActorRoleFarmer ActorRole = "FARMER"
	ActorRoleAdmin  ActorRole = "ADMIN"
)

var validActorRoles = []ActorRole{
	ActorRoleFarmer,
	ActorRoleAdmin,
}

func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseActorRole converts raw input into ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
