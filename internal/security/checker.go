// Package security decides what the current actor may see: plain role checks,
// role hierarchies and the per-admin attribute roles.
package security

import (
	"sort"
	"strings"
)

// Checker answers whether the actor holds at least one of the given roles.
// An empty role list is never granted.
type Checker interface {
	IsGranted(roles ...string) bool
}

// Bypass grants everything. It stands in for a missing checker in legacy
// setups where role filtering is switched off.
type Bypass struct{}

func (Bypass) IsGranted(...string) bool { return true }

// Hierarchy maps a role to the roles it implies, e.g.
// ROLE_ADMIN: [ROLE_EDITOR], ROLE_EDITOR: [ROLE_USER].
type Hierarchy map[string][]string

// Reachable expands roles transitively through the hierarchy.
func (h Hierarchy) Reachable(roles []string) map[string]struct{} {
	out := make(map[string]struct{}, len(roles))
	queue := append([]string(nil), roles...)
	for len(queue) > 0 {
		r := strings.TrimSpace(queue[0])
		queue = queue[1:]
		if r == "" {
			continue
		}
		if _, seen := out[r]; seen {
			continue
		}
		out[r] = struct{}{}
		queue = append(queue, h[r]...)
	}
	return out
}

// RoleChecker grants by membership in the actor's reachable roles.
type RoleChecker struct {
	roles map[string]struct{}
}

var _ Checker = (*RoleChecker)(nil)

func NewRoleChecker(roles []string, h Hierarchy) *RoleChecker {
	return &RoleChecker{roles: h.Reachable(roles)}
}

func (c *RoleChecker) IsGranted(roles ...string) bool {
	for _, r := range roles {
		if _, ok := c.roles[r]; ok {
			return true
		}
	}
	return false
}

// Roles returns the reachable roles, sorted.
func (c *RoleChecker) Roles() []string {
	out := make([]string, 0, len(c.roles))
	for r := range c.roles {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// ParseRoles splits a header value like "ROLE_A, ROLE_B".
func ParseRoles(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
