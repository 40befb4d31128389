package routing

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrRouteNotFound is returned when no route carries the requested name.
	ErrRouteNotFound = errors.New("routing: route not found")
	// ErrMissingParameter is returned when a URL cannot be generated because
	// a pattern parameter has no value.
	ErrMissingParameter = errors.New("routing: missing route parameter")
	// ErrNoMatch is returned by the URL matcher when nothing matches.
	ErrNoMatch = errors.New("routing: no route matches")
)

// ── Controller collections ───────────────────────────────────────────────────

// Route binds a pattern to a controller target. Target is resolved by a
// ControllerResolver, e.g. "web_profiler.controller.profiler:Panel".
type Route struct {
	Method  string
	Pattern string
	Target  string
	Name    string
}

// Bind names the route for URL generation, like Silex's ->bind('_profiler').
func (r *Route) Bind(name string) *Route {
	r.Name = name
	return r
}

// ControllerCollection is an ordered set of routes that is mounted on a
// Router as a whole, like Silex's $app['controllers_factory'].
type ControllerCollection struct {
	routes []*Route
}

// NewControllerCollection creates an empty collection.
func NewControllerCollection() *ControllerCollection {
	return &ControllerCollection{}
}

// Match adds a route for method.
func (c *ControllerCollection) Match(method, pattern, target string) *Route {
	r := &Route{Method: method, Pattern: pattern, Target: target}
	c.routes = append(c.routes, r)
	return r
}

func (c *ControllerCollection) Get(pattern, target string) *Route {
	return c.Match(http.MethodGet, pattern, target)
}

func (c *ControllerCollection) Post(pattern, target string) *Route {
	return c.Match(http.MethodPost, pattern, target)
}

// Routes returns the routes in registration order.
func (c *ControllerCollection) Routes() []Route {
	out := make([]Route, len(c.routes))
	for i, r := range c.routes {
		out[i] = *r
	}
	return out
}

// Len returns the number of routes.
func (c *ControllerCollection) Len() int { return len(c.routes) }

// ── Named routes ─────────────────────────────────────────────────────────────

// RouteCollection indexes mounted routes by name, with their full pattern.
type RouteCollection struct {
	mu     sync.RWMutex
	routes map[string]Route
	order  []string
}

// NewRouteCollection creates an empty collection.
func NewRouteCollection() *RouteCollection {
	return &RouteCollection{routes: make(map[string]Route)}
}

// Add registers a named route. Unnamed routes are ignored; re-adding a name
// replaces the previous route.
func (rc *RouteCollection) Add(r Route) {
	if r.Name == "" {
		return
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if _, ok := rc.routes[r.Name]; !ok {
		rc.order = append(rc.order, r.Name)
	}
	rc.routes[r.Name] = r
}

// AddCollection registers every named route of c below prefix.
func (rc *RouteCollection) AddCollection(prefix string, c *ControllerCollection) {
	for _, r := range c.Routes() {
		r.Pattern = joinPattern(prefix, r.Pattern)
		rc.Add(r)
	}
}

// Get returns the route called name.
func (rc *RouteCollection) Get(name string) (Route, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	r, ok := rc.routes[name]
	return r, ok
}

// ByPattern returns the named route registered for method and pattern.
func (rc *RouteCollection) ByPattern(method, pattern string) (Route, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	for _, name := range rc.order {
		r := rc.routes[name]
		if r.Method == method && r.Pattern == pattern {
			return r, true
		}
	}
	return Route{}, false
}

// All returns the routes in registration order.
func (rc *RouteCollection) All() []Route {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	out := make([]Route, 0, len(rc.order))
	for _, name := range rc.order {
		out = append(out, rc.routes[name])
	}
	return out
}

// Len returns the number of named routes.
func (rc *RouteCollection) Len() int {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return len(rc.order)
}

func joinPattern(prefix, pattern string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if pattern == "/" && prefix != "" {
		return prefix + "/"
	}
	return prefix + pattern
}

// ── URL generation ───────────────────────────────────────────────────────────

// URLGenerator builds paths from named routes, like Laravel's route('name').
type URLGenerator struct {
	routes *RouteCollection
}

// NewURLGenerator creates a generator over routes.
func NewURLGenerator(routes *RouteCollection) *URLGenerator {
	return &URLGenerator{routes: routes}
}

// Generate returns the path of the named route. Parameters that do not
// appear in the pattern are appended as a sorted query string.
//
//	gen.Generate("_profiler", map[string]string{"token": "a1b2c3"})
//	// "/_profiler/a1b2c3"
func (g *URLGenerator) Generate(name string, params map[string]string) (string, error) {
	r, ok := g.routes.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrRouteNotFound, name)
	}

	used := make(map[string]bool, len(params))
	var b strings.Builder
	pattern := r.Pattern
	for {
		open := strings.IndexByte(pattern, '{')
		if open < 0 {
			b.WriteString(pattern)
			break
		}
		end := strings.IndexByte(pattern[open:], '}')
		if end < 0 {
			b.WriteString(pattern)
			break
		}
		b.WriteString(pattern[:open])
		key, _, _ := strings.Cut(pattern[open+1:open+end], ":")
		val, ok := params[key]
		if !ok || val == "" {
			return "", fmt.Errorf("%w: %q for route %q", ErrMissingParameter, key, name)
		}
		b.WriteString(url.PathEscape(val))
		used[key] = true
		pattern = pattern[open+end+1:]
	}

	var extra []string
	for k := range params {
		if !used[k] {
			extra = append(extra, k)
		}
	}
	if len(extra) == 0 {
		return b.String(), nil
	}
	sort.Strings(extra)
	q := url.Values{}
	for _, k := range extra {
		q.Set(k, params[k])
	}
	return b.String() + "?" + q.Encode(), nil
}

// MustGenerate is Generate for templates and tests; it returns "" on error.
func (g *URLGenerator) MustGenerate(name string, params map[string]string) string {
	u, err := g.Generate(name, params)
	if err != nil {
		return ""
	}
	return u
}

// ── URL matching ─────────────────────────────────────────────────────────────

// RouteMatch is the result of matching a path against the router.
type RouteMatch struct {
	Name    string            `json:"name"`
	Pattern string            `json:"pattern"`
	Params  map[string]string `json:"params"`
}

// URLMatcher matches paths against the application router, reporting the
// route name when the route was registered with one.
type URLMatcher struct {
	router *Router
	routes *RouteCollection
}

// NewURLMatcher creates a matcher.
func NewURLMatcher(router *Router, routes *RouteCollection) *URLMatcher {
	return &URLMatcher{router: router, routes: routes}
}

// Match returns the route matching method and path, or ErrNoMatch.
func (m *URLMatcher) Match(method, path string) (RouteMatch, error) {
	pattern, params := m.router.Match(method, path)
	if pattern == "" {
		return RouteMatch{}, fmt.Errorf("%w: %s %s", ErrNoMatch, method, path)
	}
	match := RouteMatch{Pattern: pattern, Params: params}
	if r, ok := m.routes.ByPattern(method, pattern); ok {
		match.Name = r.Name
	}
	return match, nil
}

// MatchRequest matches r.
func (m *URLMatcher) MatchRequest(r *http.Request) (RouteMatch, error) {
	return m.Match(r.Method, r.URL.Path)
}
