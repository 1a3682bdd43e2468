package rbac

import (
	"sort"

	"github.com/ledgerlens/ledgerlens/internal/tenant"
)

// Permission is an atomic capability tag. Permissions carry no hierarchy; a
// role either holds one or it does not.
type Permission string

// Capabilities of the platform.
const (
	PermDashboardView Permission = "dashboard.view"

	PermFinanceView   Permission = "financial-data.view"
	PermFinanceCreate Permission = "financial-data.create"
	PermFinanceUpdate Permission = "financial-data.update"
	PermFinanceDelete Permission = "financial-data.delete"

	PermCSVUpload  Permission = "csv.upload"
	PermAIAccess   Permission = "ai.access"
	PermAdminPanel Permission = "admin.panel"
	PermUserManage Permission = "users.manage"
)

// rolePermissions is the single source of truth for what each role can do.
// It is assembled once at init and never mutated afterwards, so concurrent
// reads need no synchronisation.
var rolePermissions map[tenant.Role]map[Permission]struct{}

func init() {
	userPerms := []Permission{
		PermDashboardView,
		PermFinanceView,
		PermFinanceCreate,
		PermFinanceUpdate,
		PermFinanceDelete,
		PermCSVUpload,
		PermAIAccess,
	}
	adminPerms := append([]Permission{
		PermAdminPanel,
		PermUserManage,
	}, userPerms...)

	rolePermissions = map[tenant.Role]map[Permission]struct{}{
		tenant.RoleAdmin: permissionSet(adminPerms),
		tenant.RoleUser:  permissionSet(userPerms),
	}
}

func permissionSet(perms []Permission) map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// RoleHas reports whether the static table grants the permission to the
// role. RoleNone holds nothing.
func RoleHas(role tenant.Role, perm Permission) bool {
	set, ok := rolePermissions[role]
	if !ok {
		return false
	}
	_, ok = set[perm]
	return ok
}

// PermissionsForRole returns the role's granted permissions sorted by name.
func PermissionsForRole(role tenant.Role) []Permission {
	set, ok := rolePermissions[role]
	if !ok {
		return nil
	}
	perms := make([]Permission, 0, len(set))
	for p := range set {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
	return perms
}
