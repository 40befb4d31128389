package security

import (
	"sync"

	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
	"github.com/km-arc/go-laravel-webprofiler/framework/routing"
)

// LogoutURLGenerator builds the logout URL of the firewall that
// authenticated the current request.
type LogoutURLGenerator struct {
	stack  *kernel.RequestStack
	urls   *routing.URLGenerator
	tokens *TokenStorage

	mu        sync.RWMutex
	listeners map[string]string // firewall → route name
}

// NewLogoutURLGenerator creates a generator.
func NewLogoutURLGenerator(stack *kernel.RequestStack, urls *routing.URLGenerator, tokens *TokenStorage) *LogoutURLGenerator {
	return &LogoutURLGenerator{stack: stack, urls: urls, tokens: tokens, listeners: make(map[string]string)}
}

// RegisterListener declares the logout route of a firewall.
func (g *LogoutURLGenerator) RegisterListener(firewall, routeName string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners[firewall] = routeName
}

// LogoutPath returns the logout path for firewall, or for the firewall of
// the current request when firewall is empty. It returns "" when unknown.
func (g *LogoutURLGenerator) LogoutPath(firewall string) string {
	if firewall == "" {
		if t := g.tokens.Token(g.stack.Current()); t != nil {
			firewall = t.Firewall
		}
	}
	g.mu.RLock()
	route, ok := g.listeners[firewall]
	g.mu.RUnlock()
	if !ok || g.urls == nil {
		return ""
	}
	return g.urls.MustGenerate(route, nil)
}
