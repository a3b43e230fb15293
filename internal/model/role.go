package model

import (
	"fmt"
	"strings"
)

// Role is the closed set of roles a caller may hold.
type Role string

const (
	RoleAdmin             Role = "admin"
	RoleSiteEngineer      Role = "site_engineer"
	RoleProjectManager    Role = "project_manager"
	RoleProductionManager Role = "production_manager"
	RoleStoreKeeper       Role = "store_keeper"
)

var knownRoles = map[Role]struct{}{
	RoleAdmin:             {},
	RoleSiteEngineer:      {},
	RoleProjectManager:    {},
	RoleProductionManager: {},
	RoleStoreKeeper:       {},
}

// ParseRole resolves free-form role strings ("Site Engineer", "site-engineer",
// "SITE_ENGINEER") to a Role. It is meant to be called once, where the token
// is decoded.
func ParseRole(s string) (Role, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	r := Role(norm)
	if _, ok := knownRoles[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	_, ok := knownRoles[r]
	return ok
}

func (r Role) String() string { return string(r) }
