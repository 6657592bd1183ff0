package rbac

// Table maps each role onto its allowed actions. A Table is immutable once
// built and safe for concurrent use.
type Table struct {
	grants map[Role]ActionSet
}

var defaultTable = NewTable(map[Role][]Action{
	RoleAdministrator: {ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionExport, ActionManageUsers, ActionSystemSettings},
	RoleManager:       {ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionExport, ActionViewAnalytics},
	RoleAnalyst:       {ActionRead, ActionExport, ActionViewAnalytics},
})

// DefaultTable returns the dashboard's built-in role mapping.
func DefaultTable() *Table {
	return defaultTable
}

// NewTable copies grants into a new Table. Roles outside the enumeration are
// ignored.
func NewTable(grants map[Role][]Action) *Table {
	t := &Table{grants: make(map[Role]ActionSet, len(grants))}
	for role, actions := range grants {
		if !role.Valid() {
			continue
		}
		t.grants[role] = NewActionSet(actions...)
	}
	return t
}

// Allows reports whether role may perform action. Unknown roles and actions
// are denied.
func (t *Table) Allows(role Role, action Action) bool {
	if t == nil {
		return false
	}
	set, ok := t.grants[role]
	if !ok {
		return false
	}
	return set.Has(action)
}

// Actions returns a copy of the action set granted to role.
func (t *Table) Actions(role Role) ActionSet {
	if t == nil {
		return ActionSet{}
	}
	set, ok := t.grants[role]
	if !ok {
		return ActionSet{}
	}
	return set.clone()
}

// Allows evaluates the default table.
func Allows(role Role, action Action) bool {
	return defaultTable.Allows(role, action)
}
