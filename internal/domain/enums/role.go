package enums

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the closed set of principal roles the auth service can assign.
// Anything the dashboard does not recognise collapses to RoleUnknown, which
// holds no capabilities.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleUser    Role = "user"
	RoleUnknown Role = ""
)

type Capability string

const (
	CapDashboardAccess     Capability = "dashboard.access"
	CapPortalAccess        Capability = "portal.access"
	CapManageOrganizations Capability = "organizations.manage"
	CapManageUsers         Capability = "users.manage"
	CapManageTickets       Capability = "tickets.manage"
)

var roleCapabilities = map[Role][]Capability{
	RoleAdmin: {
		CapDashboardAccess,
		CapPortalAccess,
		CapManageOrganizations,
		CapManageUsers,
		CapManageTickets,
	},
	RoleUser: {
		CapPortalAccess,
	},
}

func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleUser:
		return RoleUser
	default:
		return RoleUnknown
	}
}

// ParseRoles is the strict variant used for configuration: an unknown role
// name is an error rather than a silent RoleUnknown.
func ParseRoles(raw []string) ([]Role, error) {
	out := make([]Role, 0, len(raw))
	for _, item := range raw {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		role := ParseRole(trimmed)
		if role == RoleUnknown {
			return nil, fmt.Errorf("unknown role %q", trimmed)
		}
		out = append(out, role)
	}
	return out, nil
}

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

func (r Role) Can(capability Capability) bool {
	for _, c := range roleCapabilities[r] {
		if c == capability {
			return true
		}
	}
	return false
}

func (r Role) String() string {
	if r == RoleUnknown {
		return "unknown"
	}
	return string(r)
}

// UnmarshalJSON never fails on well-formed JSON: anything that is not a
// known role name, including non-string values, becomes RoleUnknown.
func (r *Role) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode role: %w", err)
	}
	name, ok := raw.(string)
	if !ok {
		*r = RoleUnknown
		return nil
	}
	*r = ParseRole(name)
	return nil
}
