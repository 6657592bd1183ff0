package rbac

import (
	"encoding/json"
	"sort"
	"strings"
)

// Role represents a high-level permission grouping.
type Role string

// Roles known to the dashboard. The wire token for administrators is "admin".
const (
	RoleAdministrator Role = "admin"
	RoleManager       Role = "manager"
	RoleAnalyst       Role = "analyst"
)

// Action represents an atomic capability.
type Action string

// Action tokens.
const (
	ActionCreate         Action = "create"
	ActionRead           Action = "read"
	ActionUpdate         Action = "update"
	ActionDelete         Action = "delete"
	ActionExport         Action = "export"
	ActionManageUsers    Action = "manage_users"
	ActionSystemSettings Action = "system_settings"
	ActionViewAnalytics  Action = "view_analytics"
)

// Roles lists every role in display order.
func Roles() []Role {
	return []Role{RoleAdministrator, RoleManager, RoleAnalyst}
}

// ParseRole maps a wire token onto a Role. "administrator" is accepted as an
// alias for RoleAdministrator.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdministrator, "administrator":
		return RoleAdministrator, true
	case RoleManager:
		return RoleManager, true
	case RoleAnalyst:
		return RoleAnalyst, true
	}
	return "", false
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdministrator, RoleManager, RoleAnalyst:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// UnmarshalJSON decodes a role token, folding aliases onto the canonical
// role. Unknown tokens are kept verbatim so validation can report them.
func (r *Role) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if parsed, ok := ParseRole(raw); ok {
		*r = parsed
		return nil
	}
	*r = Role(raw)
	return nil
}

// ActionSet is an unordered set of actions.
type ActionSet map[Action]struct{}

// NewActionSet builds a set from the given actions.
func NewActionSet(actions ...Action) ActionSet {
	set := make(ActionSet, len(actions))
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return set
}

// Has reports whether a is a member of the set.
func (s ActionSet) Has(a Action) bool {
	_, ok := s[a]
	return ok
}

// Sorted returns the members in lexical order.
func (s ActionSet) Sorted() []Action {
	out := make([]Action, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s ActionSet) clone() ActionSet {
	out := make(ActionSet, len(s))
	for a := range s {
		out[a] = struct{}{}
	}
	return out
}
