package types

import "github.com/samber/lo"

// Role is the coarse account role stored on the user. It is resolved once at the
// request boundary and carried as a closed value afterwards.
type Role string

const (
	RoleAdmin      Role = "admin"
	RolePremium    Role = "premium"
	RoleSubscriber Role = "subscriber"
	RoleUser       Role = "user"
)

// Permission is a single capability granted by a role
type Permission string

const (
	PermissionManageOwnPlan   Permission = "entitlement:manage"
	PermissionAdminDashboard  Permission = "admin:dashboard"
	PermissionRunReconciler   Permission = "admin:reconcile"
	PermissionViewAllAccounts Permission = "admin:accounts"
)

var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermissionManageOwnPlan,
		PermissionAdminDashboard,
		PermissionRunReconciler,
		PermissionViewAllAccounts,
	},
	RolePremium: {
		PermissionManageOwnPlan,
	},
	RoleSubscriber: {
		PermissionManageOwnPlan,
	},
	RoleUser: {
		PermissionManageOwnPlan,
	},
}

// ParseRole resolves a stored role string. Unknown values fall back to RoleUser.
func ParseRole(s string) Role {
	r := Role(s)
	if _, ok := rolePermissions[r]; ok {
		return r
	}
	return RoleUser
}

func (r Role) String() string {
	return string(r)
}

func (r Role) Permissions() []Permission {
	return rolePermissions[r]
}

func (r Role) Has(p Permission) bool {
	return lo.Contains(rolePermissions[r], p)
}

func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// RoleForTier returns the role an account holds while the given tier is entitled
func RoleForTier(t Tier) Role {
	switch t {
	case TierTier2:
		return RolePremium
	case TierTier1, TierFreeTrial:
		return RoleSubscriber
	default:
		return RoleUser
	}
}
