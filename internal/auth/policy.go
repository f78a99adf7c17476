package auth

import (
	"fmt"

	"github.com/safar/order-engine/internal/apperr"
	"github.com/safar/order-engine/internal/models"
)

// Identity is the authenticated caller. The zero value is an anonymous caller.
type Identity struct {
	UserID   int64       `json:"user_id"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
}

func (i Identity) Authenticated() bool {
	return i.UserID != 0
}

func (i Identity) IsAdmin() bool {
	return i.Authenticated() && i.Role == models.RoleAdmin
}

type Resource string

const (
	ResourceProduct Resource = "product"
	ResourceOrder   Resource = "order"
	ResourceCart    Resource = "cart"
	ResourceAdmin   Resource = "admin"
	ResourceProfile Resource = "profile"
)

type Action string

const (
	ActionRead     Action = "read"
	ActionList     Action = "list"
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionCheckout Action = "checkout"
)

type rule int

const (
	deny rule = iota
	public
	authenticated
	ownerOrAdmin
	adminOnly
)

type permission struct {
	resource Resource
	action   Action
}

// Policy is the single decision point for every role check.
type Policy struct {
	rules map[permission]rule
}

func DefaultPolicy() *Policy {
	return &Policy{rules: map[permission]rule{
		{ResourceProduct, ActionRead}:   public,
		{ResourceProduct, ActionList}:   public,
		{ResourceProduct, ActionCreate}: adminOnly,
		{ResourceProduct, ActionUpdate}: adminOnly,
		{ResourceProduct, ActionDelete}: adminOnly,

		{ResourceOrder, ActionList}:   adminOnly,
		{ResourceOrder, ActionRead}:   ownerOrAdmin,
		{ResourceOrder, ActionCreate}: ownerOrAdmin,
		{ResourceOrder, ActionUpdate}: adminOnly,
		{ResourceOrder, ActionDelete}: adminOnly,

		{ResourceCart, ActionRead}:     ownerOrAdmin,
		{ResourceCart, ActionCreate}:   ownerOrAdmin,
		{ResourceCart, ActionDelete}:   ownerOrAdmin,
		{ResourceCart, ActionCheckout}: ownerOrAdmin,

		{ResourceAdmin, ActionRead}: adminOnly,

		{ResourceProfile, ActionRead}: authenticated,
	}}
}

// Authorize decides whether id may perform action on resource. ownerID is the
// user owning the target and is only consulted for owner-scoped rules.
func (p *Policy) Authorize(id Identity, resource Resource, action Action, ownerID int64) error {
	r := p.rules[permission{resource, action}]

	if r == public {
		return nil
	}
	if !id.Authenticated() {
		return apperr.Unauthorized("not authenticated")
	}

	switch r {
	case authenticated:
		return nil
	case ownerOrAdmin:
		if id.IsAdmin() || id.UserID == ownerID {
			return nil
		}
		return apperr.Forbidden(fmt.Sprintf("not allowed to %s another user's %s", action, resource))
	case adminOnly:
		if id.IsAdmin() {
			return nil
		}
		return apperr.Forbidden("admin access required")
	default:
		return apperr.Forbidden(fmt.Sprintf("%s %s is not permitted", action, resource))
	}
}

// RequireRole is the role guard expressed through the same decision rules:
// admins pass every role check.
func (p *Policy) RequireRole(id Identity, role models.Role) error {
	if role == models.RoleAdmin {
		return p.Authorize(id, ResourceAdmin, ActionRead, 0)
	}
	if !id.Authenticated() {
		return apperr.Unauthorized("not authenticated")
	}
	if id.Role == role || id.IsAdmin() {
		return nil
	}
	return apperr.Forbidden(fmt.Sprintf("%s role required", role))
}
