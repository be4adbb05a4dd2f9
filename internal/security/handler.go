package security

import (
	"fmt"
	"strings"
)

// RoleSecurityHandler maps admin attributes (LIST, EDIT, ...) to roles of the
// form ROLE_<ADMIN_CODE>_<ATTRIBUTE>.
type RoleSecurityHandler struct {
	SuperAdminRoles []string
}

func NewRoleSecurityHandler(superAdminRoles ...string) *RoleSecurityHandler {
	if len(superAdminRoles) == 0 {
		superAdminRoles = []string{"ROLE_SUPER_ADMIN"}
	}
	return &RoleSecurityHandler{SuperAdminRoles: superAdminRoles}
}

// BaseRole returns a format string with a single %s for the attribute.
func (h *RoleSecurityHandler) BaseRole(code string) string {
	r := strings.NewReplacer(".", "_", "-", "_")
	return "ROLE_" + strings.ToUpper(r.Replace(code)) + "_%s"
}

// IsGranted checks attributes for the admin identified by code. Attributes
// already starting with ROLE_ are checked verbatim; the others are expanded
// and then the admin's _ALL role grants as well.
func (h *RoleSecurityHandler) IsGranted(c Checker, code string, attributes ...string) bool {
	if len(h.SuperAdminRoles) > 0 && c.IsGranted(h.SuperAdminRoles...) {
		return true
	}
	base := h.BaseRole(code)
	roles := make([]string, 0, len(attributes)+1)
	useAll := false
	for _, a := range attributes {
		if strings.HasPrefix(a, "ROLE_") {
			roles = append(roles, a)
			continue
		}
		roles = append(roles, fmt.Sprintf(base, strings.ToUpper(a)))
		useAll = true
	}
	if useAll {
		roles = append(roles, fmt.Sprintf(base, "ALL"))
	}
	return len(roles) > 0 && c.IsGranted(roles...)
}
