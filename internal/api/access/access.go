// Package access holds the authorization decision logic. Role/permission rules
// live in one declarative table evaluated by Allow instead of being scattered
// across per-endpoint checks.
package access

import (
	"github.com/commercekit/catalog-api/internal/api"
)

// Action classifies what a request is trying to do to a resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"  // create, update and soft delete
	ActionDelete Action = "delete" // hard delete (users only in practice)
	ActionToggle Action = "toggle" // explicit status flip
)

// Resource classifies what kind of object a request targets.
type Resource string

const (
	ResourceUsers      Resource = "users"
	ResourceCategories Resource = "categories"
	ResourceProducts   Resource = "products"
)

// Allow decides whether a principal with the given role may perform action on
// resource. self reports whether the targeted object is the principal's own
// identity; it only matters for ResourceUsers. For catalog resources creator
// ownership grants no rights beyond role.
//
//	role      | resource          | read      | write     | delete | toggle
//	admin     | any               | yes       | yes       | yes    | yes
//	moderator | category/product  | yes       | yes       | no     | yes
//	moderator | users             | self only | self only | no     | no
//	user      | category/product  | yes       | no        | no     | no
//	user      | users             | self only | self only | no     | no
//
// Self-targeting restrictions (no self delete/deactivate, no self role change)
// are business rules layered on top in the services, not encoded here.
func Allow(role api.Role, action Action, resource Resource, self bool) bool {
	if role == api.RoleAdmin {
		return true
	}

	switch resource {
	case ResourceUsers:
		// Non-admins can only ever read or edit their own identity.
		switch action {
		case ActionRead, ActionWrite:
			return self
		default:
			return false
		}

	case ResourceCategories, ResourceProducts:
		switch action {
		case ActionRead:
			return true
		case ActionWrite, ActionToggle:
			return role == api.RoleModerator
		default:
			return false
		}
	}

	return false
}

// CanManageCatalog reports whether the role may mutate categories/products.
func CanManageCatalog(role api.Role) bool {
	return role == api.RoleAdmin || role == api.RoleModerator
}
