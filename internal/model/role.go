package model

import "time"

// Role represents a row in the `roles` table. Permissions are stored
// as a JSON array of permission names in a single column and scanned
// into the slice here. An admin role passes every permission check
// regardless of its explicit list. System roles cannot be deleted and
// their admin flag cannot be changed.
//
// Fields:
//  ID          – numeric identifier of the role.
//  Name        – unique role name (e.g. "admin", "agent").
//  IsAdmin     – grants every permission when true.
//  IsSystem    – protected built-in role.
//  Permissions – explicit permission names granted to the role.
type Role struct {
	ID          uint64    // roles.id
	Name        string    // roles.name
	IsAdmin     bool      // roles.is_admin
	IsSystem    bool      // roles.is_system
	Permissions []string  // roles.permissions (JSON array column)
	CreatedAt   time.Time // roles.created_at
	UpdatedAt   time.Time // roles.updated_at
}

// HasExplicit reports whether the role's explicit permission list
// contains name. The admin fast path is deliberately not applied
// here; that decision belongs to the evaluator in internal/auth.
func (r *Role) HasExplicit(name string) bool {
	for _, p := range r.Permissions {
		if p == name {
			return true
		}
	}
	return false
}
