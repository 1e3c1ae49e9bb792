package identity

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// Role is a bit-combinable application role.
type Role uint32

const (
	RoleNone  Role = 0
	RoleAdmin Role = 1
	// RoleSuperAdmin is the privileged role; holding it bypasses every row policy.
	RoleSuperAdmin Role = RoleAdmin | 2
)

var roleNames = map[string]Role{
	"none":       RoleNone,
	"admin":      RoleAdmin,
	"superadmin": RoleSuperAdmin,
}

// ParseRole parses a role claim value. A value is a role name, a numeric mask within
// RoleSuperAdmin, or a comma separated list of either. Name matching ignores case, spaces,
// dashes and underscores. Every element must parse or the whole value is rejected.
func ParseRole(value string) (Role, bool) {
	var combined Role
	for _, part := range strings.Split(value, ",") {
		role, ok := parseRoleElement(part)
		if !ok {
			return RoleNone, false
		}
		combined |= role
	}
	return combined, true
}

func parseRoleElement(value string) (Role, bool) {
	value = strings.TrimSpace(value)
	if n, err := strconv.ParseUint(value, 10, 32); err == nil {
		role := Role(n)
		if role&^RoleSuperAdmin != 0 {
			return RoleNone, false
		}
		return role, true
	}
	key := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_', '\t':
			return -1
		}
		return r
	}, cases.Fold().String(value))
	role, ok := roleNames[key]
	return role, ok
}

// Has reports whether r holds every bit of role. RoleNone is never held.
func (r Role) Has(role Role) bool {
	return role != RoleNone && r&role == role
}

func (r Role) String() string {
	switch r {
	case RoleNone:
		return "None"
	case RoleAdmin:
		return "Admin"
	case RoleSuperAdmin:
		return "Super Admin"
	}
	return "Role(" + strconv.FormatUint(uint64(r), 10) + ")"
}
