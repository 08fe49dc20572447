// Package access is the access control gate: it turns a bearer token into
// an Actor and decides, with one predicate, whether that actor may touch a
// resource.
package access

import (
	"context"
	"slices"

	"github.com/loiphan2202/BAT/apperr"
	"github.com/loiphan2202/BAT/globals"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID   string
	Username string
	Email    string
	Roles    []Role
}

func (a Actor) Has(role Role) bool {
	if role == RoleUser {
		// every authenticated caller is a user
		return a.UserID != ""
	}
	return slices.Contains(a.Roles, role)
}

func (a Actor) IsAdmin() bool { return a.Has(RoleAdmin) }

// Check is the owner-or-role predicate shared by every operation.
// ownerID is the resource owner ("" for resources nobody owns); required
// is the role that grants access regardless of ownership. The check
// passes when the actor owns the resource or holds the required role.
func Check(actor Actor, ownerID string, required Role) error {
	if actor.UserID == "" {
		return apperr.Unauthenticated("authentication required")
	}
	if ownerID != "" && actor.UserID == ownerID {
		return nil
	}
	if required != "" && actor.Has(required) {
		return nil
	}
	if ownerID == "" {
		return apperr.Authorization(string(required) + " privileges required")
	}
	return apperr.Authorization("not allowed to access this resource")
}

// RequireAdmin is Check for resources only administrators may touch.
func RequireAdmin(actor Actor) error {
	return Check(actor, "", RoleAdmin)
}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, globals.ActorKey, a)
}

func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(globals.ActorKey).(Actor)
	return a, ok && a.UserID != ""
}
