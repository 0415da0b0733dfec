// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// # User Roles

// UserRole represents the authorization level granted to an account.
type UserRole string

const (
	// Platform owner, manages administrators
	RoleSuperAdmin UserRole = "SUPERADMIN"

	// Manages courses, staff and user accounts
	RoleAdmin UserRole = "ADMIN"

	// Helps mentors grade homework and moderate groups
	RoleAssistant UserRole = "ASSISTANT"

	// Teaches courses and reviews homework
	RoleMentor UserRole = "MENTOR"

	// Default role assigned on registration
	RoleStudent UserRole = "STUDENT"
)

// DefaultRole is the lowest-privilege role given to self-registered accounts.
const DefaultRole = RoleStudent

// # Role Hierarchy

// AtLeast checks if the current role meets or exceeds the required target role.
func (r UserRole) AtLeast(target UserRole) bool {
	return r.level() >= target.level()
}

// IsValid reports whether r belongs to the closed role enumeration.
func (r UserRole) IsValid() bool {
	return r.level() > 0
}

// # Role Administration

// CanManage reports whether r may change the role or sessions of an account
// holding target. SUPERADMIN manages everyone; ADMIN manages only staff and
// students below ADMIN; no other role manages anyone.
func (r UserRole) CanManage(target UserRole) bool {
	switch r {
	case RoleSuperAdmin:
		return true
	case RoleAdmin:
		return !target.AtLeast(RoleAdmin)
	default:
		return false
	}
}

// CanAssign reports whether r may grant role. SUPERADMIN is never granted
// through the API and only SUPERADMIN grants ADMIN.
func (r UserRole) CanAssign(role UserRole) bool {
	if !role.IsValid() || role == RoleSuperAdmin {
		return false
	}
	if role == RoleAdmin {
		return r == RoleSuperAdmin
	}
	return r.AtLeast(RoleAdmin)
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r UserRole) level() int {

	// Linear scale (10-50) allows for future intermediate roles
	switch r {
	case RoleSuperAdmin:
		return 50
	case RoleAdmin:
		return 40
	case RoleAssistant:
		return 30
	case RoleMentor:
		return 20
	case RoleStudent:
		return 10
	default:
		return 0
	}
}
