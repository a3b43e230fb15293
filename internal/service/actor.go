package service

import (
	"metersquare/internal/model"

	"github.com/google/uuid"
)

// Actor is the authenticated caller. Every mutating operation takes one;
// there is no implicit system actor.
type Actor struct {
	UserID uuid.UUID
	Name   string
	Role   model.Role
}

func (a Actor) authenticate() error {
	if a.UserID == uuid.Nil || !a.Role.Valid() {
		return &AuthorizationError{Unauthenticated: true, Msg: "authentication required"}
	}
	return nil
}

// Is reports whether the actor holds one of roles.
func (a Actor) Is(roles ...model.Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// require authenticates the actor and checks it holds one of roles.
func (a Actor) require(roles ...model.Role) error {
	if err := a.authenticate(); err != nil {
		return err
	}
	if !a.Is(roles...) {
		return notAuthorized("role %s may not perform this action", a.Role)
	}
	return nil
}
