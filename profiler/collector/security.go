package collector

import (
	"net/http"

	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
	"github.com/km-arc/go-laravel-webprofiler/framework/security"
)

// SecurityCollector reports the token of the request.
type SecurityCollector struct {
	base
	tokens *security.TokenStorage
	roles  *security.RoleHierarchy
	logout *security.LogoutURLGenerator
}

// NewSecurityCollector creates a SecurityCollector. roles and logout may be
// nil.
func NewSecurityCollector(tokens *security.TokenStorage, roles *security.RoleHierarchy, logout *security.LogoutURLGenerator) *SecurityCollector {
	return &SecurityCollector{tokens: tokens, roles: roles, logout: logout}
}

func (c *SecurityCollector) Name() string { return "security" }

func (c *SecurityCollector) Collect(r *http.Request, _ *kernel.Response, _ error) {
	if c.tokens == nil {
		c.set(map[string]any{"enabled": false})
		return
	}
	t := c.tokens.Token(r)
	if t == nil {
		c.set(map[string]any{"enabled": true, "authenticated": false, "user": ""})
		return
	}

	var inherited []string
	if c.roles != nil {
		own := make(map[string]bool, len(t.Roles))
		for _, role := range t.Roles {
			own[role] = true
		}
		for _, role := range c.roles.ReachableRoles(t.Roles) {
			if !own[role] {
				inherited = append(inherited, role)
			}
		}
	}
	data := map[string]any{
		"enabled":         true,
		"authenticated":   t.Authenticated,
		"user":            t.User,
		"roles":           t.Roles,
		"inherited_roles": inherited,
		"firewall":        t.Firewall,
	}
	if c.logout != nil {
		data["logout_url"] = c.logout.LogoutPath(t.Firewall)
	}
	c.set(data)
}
