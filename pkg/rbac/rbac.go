// Package rbac holds the closed role enumeration and the capability table
// consumed by every mutating operation. Controllers and middleware never
// compare raw role strings; they ask Can(role, capability).
package rbac

// Role is one of the three account roles. Anything else is invalid.
type Role string

const (
	RoleUser    Role = "user"
	RolePremium Role = "premium"
	RoleAdmin   Role = "admin"
)

// Parse validates a stored or user-supplied role string.
func Parse(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RolePremium, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

func (r Role) Valid() bool {
	_, ok := Parse(string(r))
	return ok
}

// Capability names an action a role may or may not perform.
type Capability string

const (
	// CapManageProducts: create and update catalog entries.
	CapManageProducts Capability = "products.manage"
	// CapManageAnyProduct: update or delete products owned by anyone.
	CapManageAnyProduct Capability = "products.manage_any"
	// CapPurchase: operate a cart and check out.
	CapPurchase Capability = "cart.purchase"
	// CapChangeRoles: promote or demote other accounts.
	CapChangeRoles Capability = "users.change_role"
	// CapViewCarts: list every cart in the system.
	CapViewCarts Capability = "carts.view_all"
)

var grants = map[Role]map[Capability]bool{
	RoleUser: {
		CapPurchase: true,
	},
	RolePremium: {
		CapPurchase:       true,
		CapManageProducts: true,
	},
	RoleAdmin: {
		CapManageProducts:   true,
		CapManageAnyProduct: true,
		CapChangeRoles:      true,
		CapViewCarts:        true,
	},
}

// Can reports whether role holds the capability. Unknown roles hold nothing.
func Can(role Role, cap Capability) bool {
	return grants[role][cap]
}
