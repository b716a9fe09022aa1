package auth

import "github.com/sdeskhq/support-desk/internal/model"

// Permission names used across the service. Kept here so the flat
// strings scattered through handlers all reference one list.
const (
	PermUsersView      = "users.view"
	PermUsersManage    = "users.manage"
	PermRolesView      = "roles.view"
	PermRolesManage    = "roles.manage"
	PermTicketsViewAll = "tickets.view_all"
	PermTicketsEditAll = "tickets.edit_all"
	PermSessionsManage = "sessions.manage"
)

// HasPermission decides whether a user holding the given role is
// granted the named permission. Admin roles pass unconditionally;
// a nil role (dangling role id) grants nothing.
func HasPermission(role *model.Role, name string) bool {
	if role == nil {
		return false
	}
	if role.IsAdmin {
		return true
	}
	return role.HasExplicit(name)
}

// CanAccessResource decides whether a user may act on a resource
// owned by ownerID. Holders of the wide permission (view-all /
// edit-all style) see everything; everyone else only their own rows.
func CanAccessResource(user *model.User, role *model.Role, widePermission string, ownerID uint64) bool {
	if HasPermission(role, widePermission) {
		return true
	}
	return user.ID == ownerID
}

// LastAdminSurvives reports whether removing the candidate user's
// admin capability (deleting, deactivating or moving them to a
// non-admin role) would still leave at least one active user with an
// admin role. Callers must reject the operation when this returns
// false.
func LastAdminSurvives(candidateID uint64, users []model.User, roles []model.Role) bool {
	adminRoles := make(map[uint64]bool, len(roles))
	for _, r := range roles {
		if r.IsAdmin {
			adminRoles[r.ID] = true
		}
	}
	for _, u := range users {
		if u.ID == candidateID || !u.IsActive {
			continue
		}
		if adminRoles[u.RoleID] {
			return true
		}
	}
	return false
}

// LastAdminSurvivesDemotion reports whether stripping the admin flag
// from the role would still leave at least one active user holding
// some other admin role.
func LastAdminSurvivesDemotion(roleID uint64, users []model.User, roles []model.Role) bool {
	adminRoles := make(map[uint64]bool, len(roles))
	for _, r := range roles {
		if r.IsAdmin && r.ID != roleID {
			adminRoles[r.ID] = true
		}
	}
	for _, u := range users {
		if u.IsActive && adminRoles[u.RoleID] {
			return true
		}
	}
	return false
}
