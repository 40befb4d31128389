package providers

import (
	"io"
	"net/http"

	"github.com/km-arc/go-laravel-webprofiler/framework/container"
	"github.com/km-arc/go-laravel-webprofiler/framework/dump"
	"github.com/km-arc/go-laravel-webprofiler/framework/form"
	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
	"github.com/km-arc/go-laravel-webprofiler/framework/routing"
	"github.com/km-arc/go-laravel-webprofiler/framework/security"
	"github.com/km-arc/go-laravel-webprofiler/framework/translation"
)

// ── TranslationServiceProvider ────────────────────────────────────────────────

// TranslationServiceProvider registers a catalogue translator.
//
// Bound abstracts:
//   - "locale"     → string
//   - "translator" → translation.Translator
//
// Messages maps locale → message id → translation in the default domain.
type TranslationServiceProvider struct {
	container.BaseProvider
	Locale    string
	Fallbacks []string
	Messages  map[string]map[string]string
}

func (p *TranslationServiceProvider) Register(app *container.Container) {
	locale := p.Locale
	if locale == "" {
		locale = "en"
	}
	fallbacks, messages := p.Fallbacks, p.Messages

	app.Instance("locale", locale)
	app.Singleton("translator", func(c *container.Container) any {
		t := translation.NewMessageTranslator(container.Resolve[string](c, "locale"), fallbacks...)
		for loc, msgs := range messages {
			t.AddMessages(loc, translation.DefaultDomain, msgs)
		}
		return translation.Translator(t)
	})
}

// ── SecurityServiceProvider ───────────────────────────────────────────────────

// SecurityServiceProvider authenticates requests in front of the kernel.
//
// Bound abstracts:
//   - "security.token_storage"        → *security.TokenStorage
//   - "security.role_hierarchy"       → *security.RoleHierarchy
//   - "security.logout_url_generator" → *security.LogoutURLGenerator
//   - "security.middleware"           → func(http.Handler) http.Handler,
//     tagged MiddlewareTag
type SecurityServiceProvider struct {
	container.BaseProvider
	Firewall      string
	Authenticator security.Authenticator
	Hierarchy     map[string][]string
	// LogoutRoute names the route that logs out of Firewall, if any.
	LogoutRoute string
}

func (p *SecurityServiceProvider) Register(app *container.Container) {
	firewall := p.Firewall
	if firewall == "" {
		firewall = "main"
	}
	auth := p.Authenticator
	if auth == nil {
		auth = func(*http.Request) *security.Token { return nil }
	}
	hierarchy, logoutRoute := p.Hierarchy, p.LogoutRoute

	app.Singleton("security.token_storage", func(c *container.Container) any {
		return security.NewTokenStorage()
	})
	app.Singleton("security.role_hierarchy", func(c *container.Container) any {
		return security.NewRoleHierarchy(hierarchy)
	})
	app.Singleton("security.logout_url_generator", func(c *container.Container) any {
		g := security.NewLogoutURLGenerator(
			container.Resolve[*kernel.RequestStack](c, "request_stack"),
			container.Resolve[*routing.URLGenerator](c, "url_generator"),
			container.Resolve[*security.TokenStorage](c, "security.token_storage"),
		)
		if logoutRoute != "" {
			g.RegisterListener(firewall, logoutRoute)
		}
		return g
	})
	app.Singleton("security.middleware", func(c *container.Container) any {
		storage := container.Resolve[*security.TokenStorage](c, "security.token_storage")
		return storage.Middleware(func(r *http.Request) *security.Token {
			t := auth(r)
			if t != nil && t.Firewall == "" {
				t.Firewall = firewall
			}
			return t
		})
	})
	app.Tag([]string{"security.middleware"}, MiddlewareTag)
}

// ── FormServiceProvider ───────────────────────────────────────────────────────

// FormServiceProvider registers the form factory.
//
// Bound abstracts:
//   - "form.types"                 → []form.Type (core types plus Types)
//   - "form.type.extensions"       → []form.TypeExtension
//   - "form.resolved_type_factory" → form.ResolvedTypeFactory
//   - "form.registry"              → *form.Registry
//   - "form.factory"               → *form.Factory
//
// Other providers add extensions or decorate the type factory with Extend
// before "form.registry" is first resolved.
type FormServiceProvider struct {
	container.BaseProvider
	Types []form.Type
}

func (p *FormServiceProvider) Register(app *container.Container) {
	extra := p.Types

	app.Singleton("form.types", func(c *container.Container) any {
		return append(form.CoreTypes(), extra...)
	})
	app.Singleton("form.type.extensions", func(c *container.Container) any {
		return []form.TypeExtension{}
	})
	app.Singleton("form.resolved_type_factory", func(c *container.Container) any {
		return form.ResolvedTypeFactory(form.DefaultResolvedTypeFactory{})
	})
	app.Singleton("form.registry", func(c *container.Container) any {
		return form.NewRegistry(
			container.Resolve[form.ResolvedTypeFactory](c, "form.resolved_type_factory"),
			container.Resolve[[]form.TypeExtension](c, "form.type.extensions"),
			container.Resolve[[]form.Type](c, "form.types")...,
		)
	})
	app.Singleton("form.factory", func(c *container.Container) any {
		return form.NewFactory(container.Resolve[*form.Registry](c, "form.registry"))
	})
}

// ── VarDumperServiceProvider ──────────────────────────────────────────────────

// VarDumperServiceProvider registers the value dumper.
//
// Bound abstracts:
//   - "var_dumper.cloner"           → *dump.Cloner
//   - "var_dumper.dump_destination" → io.Writer (nil means stderr)
//   - "var_dumper.cli_dumper"       → *dump.CliDumper
type VarDumperServiceProvider struct {
	container.BaseProvider
	MaxDepth    int
	Destination io.Writer
}

func (p *VarDumperServiceProvider) Register(app *container.Container) {
	depth := p.MaxDepth

	app.Instance("var_dumper.dump_destination", p.Destination)
	app.Singleton("var_dumper.cloner", func(c *container.Container) any {
		return dump.NewCloner(depth)
	})
	app.Singleton("var_dumper.cli_dumper", func(c *container.Container) any {
		w, _ := container.Lookup[io.Writer](c, "var_dumper.dump_destination")
		return dump.NewCliDumper(w)
	})
}
