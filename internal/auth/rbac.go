package auth

import "strings"

// RoleName is the closed set of role identifiers the application knows about.
// The seeder guarantees rows for these exist; roles created at runtime with
// other names simply grant nothing until added here.
type RoleName string

const (
	RoleAdmin RoleName = "admin"
	RoleUser  RoleName = "user"
)

// Permission identifies a protected operation.
type Permission string

const (
	PermUsersRead  Permission = "users.read"
	PermUsersWrite Permission = "users.write"
	PermRolesRead  Permission = "roles.read"
	PermRolesWrite Permission = "roles.write"
)

var rolePermissions = map[RoleName]map[Permission]struct{}{
	RoleAdmin: {
		PermUsersRead:  {},
		PermUsersWrite: {},
		PermRolesRead:  {},
		PermRolesWrite: {},
	},
	RoleUser: {
		PermUsersRead: {},
		PermRolesRead: {},
	},
}

// RoleAllows reports whether the named role grants the permission. Role names
// are matched case-insensitively, unknown roles grant nothing.
func RoleAllows(name RoleName, perm Permission) bool {
	perms, ok := rolePermissions[RoleName(strings.ToLower(string(name)))]
	if !ok {
		return false
	}
	_, ok = perms[perm]
	return ok
}
