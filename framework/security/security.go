// Package security authenticates requests into tokens and answers role
// questions about them.
package security

import (
	"context"
	"net/http"
	"slices"
	"sort"
	"sync"
)

// Token is the authenticated identity of a request.
type Token struct {
	User          string         `json:"user"`
	Roles         []string       `json:"roles"`
	Authenticated bool           `json:"authenticated"`
	Firewall      string         `json:"firewall,omitempty"`
	Attributes    map[string]any `json:"attributes,omitempty"`
}

type ctxKey struct{}

// Authenticator extracts a token from a request, or returns nil.
type Authenticator func(r *http.Request) *Token

// TokenStorage stores the token of each request in the request context.
type TokenStorage struct{}

// NewTokenStorage creates a TokenStorage.
func NewTokenStorage() *TokenStorage { return &TokenStorage{} }

// Token returns the token attached to r, or nil.
func (s *TokenStorage) Token(r *http.Request) *Token {
	if r == nil {
		return nil
	}
	t, _ := r.Context().Value(ctxKey{}).(*Token)
	return t
}

// WithToken returns a copy of r carrying t.
func (s *TokenStorage) WithToken(r *http.Request, t *Token) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ctxKey{}, t))
}

// Middleware authenticates every request with auth before calling next.
// Requests for which auth returns nil continue anonymously.
func (s *TokenStorage) Middleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if t := auth(r); t != nil {
				r = s.WithToken(r, t)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ── Roles ────────────────────────────────────────────────────────────────────

// RoleHierarchy expands roles into every role they imply.
//
//	h := security.NewRoleHierarchy(map[string][]string{
//	    "ROLE_ADMIN": {"ROLE_USER"},
//	})
//	h.ReachableRoles([]string{"ROLE_ADMIN"}) // [ROLE_ADMIN ROLE_USER]
type RoleHierarchy struct {
	mu  sync.RWMutex
	all map[string][]string
}

// NewRoleHierarchy builds the transitive closure of hierarchy.
func NewRoleHierarchy(hierarchy map[string][]string) *RoleHierarchy {
	h := &RoleHierarchy{all: make(map[string][]string, len(hierarchy))}
	for role := range hierarchy {
		seen := map[string]bool{}
		queue := slices.Clone(hierarchy[role])
		for len(queue) > 0 {
			r := queue[0]
			queue = queue[1:]
			if seen[r] || r == role {
				continue
			}
			seen[r] = true
			queue = append(queue, hierarchy[r]...)
		}
		reach := make([]string, 0, len(seen))
		for r := range seen {
			reach = append(reach, r)
		}
		sort.Strings(reach)
		h.all[role] = reach
	}
	return h
}

// ReachableRoles returns roles plus every role they imply, without
// duplicates, given roles first.
func (h *RoleHierarchy) ReachableRoles(roles []string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	add := func(r string) {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	for _, r := range roles {
		add(r)
	}
	for _, r := range roles {
		for _, implied := range h.all[r] {
			add(implied)
		}
	}
	return out
}

// IsGranted reports whether t has role, directly or through the hierarchy.
func (h *RoleHierarchy) IsGranted(t *Token, role string) bool {
	if t == nil {
		return false
	}
	return slices.Contains(h.ReachableRoles(t.Roles), role)
}
