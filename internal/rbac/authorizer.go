// Package rbac decides whether a user may act on CRM records. The default
// policy is ownership based: users act on their own records, admins on
// everything.
package rbac

import (
	"errors"

	"github.com/relay-crm/core/internal/database/models"
)

var ErrPermissionDenied = errors.New("permission denied")

// Permission names an action on a record type.
type Permission string

const (
	PermCompanyCreate Permission = "company:create"
	PermCompanyView   Permission = "company:view"
	PermCompanyEdit   Permission = "company:edit"
	PermProjectCreate Permission = "project:create"
	PermProjectView   Permission = "project:view"
	PermProjectEdit   Permission = "project:edit"
	PermContactCreate Permission = "contact:create"
	PermContactView   Permission = "contact:view"
	PermContactEdit   Permission = "contact:edit"
	PermRuleManage    Permission = "rule:manage"
	PermAccountManage Permission = "account:manage"
)

// Authorizer answers permission checks. ownerID is the user that owns the
// record being acted on; for create operations it equals the acting user.
type Authorizer interface {
	Can(user *models.User, perm Permission, ownerID uint) bool
}

// OwnerAuthorizer grants admins everything and other users access to their
// own records only.
type OwnerAuthorizer struct{}

func NewOwnerAuthorizer() *OwnerAuthorizer {
	return &OwnerAuthorizer{}
}

func (a *OwnerAuthorizer) Can(user *models.User, perm Permission, ownerID uint) bool {
	if user == nil {
		return false
	}
	if user.IsAdmin() {
		return true
	}
	return user.ID == ownerID
}

// Check wraps an Authorizer decision into an error for service-layer use.
func Check(a Authorizer, user *models.User, perm Permission, ownerID uint) error {
	if a == nil || a.Can(user, perm, ownerID) {
		return nil
	}
	return ErrPermissionDenied
}
