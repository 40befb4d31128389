// Package container provides a Laravel-compatible IoC (Inversion of Control)
// container and Service Provider system for Go.
//
// # Overview
//
// The container maps string keys to factories. It supports transient
// bindings, singletons, pre-built instances, aliases, tags and extension
// (decoration). Because Go has no runtime constructor reflection,
// auto-wiring is replaced by explicit factory functions that receive the
// container and resolve what they need from it.
//
// # Container Lifecycle
//
//  1. Create: c := container.New()
//  2. Register providers: registry.Register(&MyProvider{}, values)
//  3. Boot: registry.Boot()        // safe to resolve everything after this
//  4. Serve requests
//
// Misconfiguration (resolving an unbound key, a dependency cycle,
// extending an unbound key) panics with ErrNotBound or
// ErrCircularDependency. Use Try or Lookup where absence is expected.
//
// # Bindings
//
//	// Transient: new instance every Make()
//	c.Bind("controllers_factory", func(c *container.Container) any {
//	    return routing.NewControllerCollection()
//	})
//
//	// Singleton: created once, reused
//	c.Singleton("profiler", func(c *container.Container) any {
//	    storage := container.Resolve[profiler.Storage](c, "profiler.storage")
//	    return profiler.New(storage, container.Resolve[*slog.Logger](c, "logger"))
//	})
//
//	// Parameters are plain instances
//	c.Instance("profiler.mount_prefix", "/_profiler")
//
//	// Alias
//	c.Alias("config", "configuration")
//
// # Resolving
//
//	raw := c.Make("profiler")
//	p := container.Resolve[*profiler.Profiler](c, "profiler")
//
//	// optional capabilities: a bound nil counts as absent
//	if t, ok := container.Lookup[translation.Translator](c, "translator"); ok { ... }
//
// # Tags
//
//	c.Tag([]string{"security.middleware"}, "kernel.middleware")
//	for _, mw := range c.Tagged("kernel.middleware") { ... }
//
// # Extend / Decorate
//
// Extend wraps the current factory; decorations run in the order they were
// registered. Binding the key again discards them. Extending a singleton
// that was already built decorates the cached instance.
//
//	c.Extend("translator", func(inner any, c *container.Container) any {
//	    return translation.NewDataCollectorTranslator(inner.(translation.Translator))
//	})
//
// # Service Providers
//
//	type CacheServiceProvider struct{ container.BaseProvider }
//
//	func (p *CacheServiceProvider) Register(app *container.Container) {
//	    app.Instance("cache.ttl", time.Minute)
//	    app.Singleton("cache", func(c *container.Container) any {
//	        return gocache.New(container.Resolve[time.Duration](c, "cache.ttl"), time.Hour)
//	    })
//	}
//
//	func (p *CacheServiceProvider) Boot(app *container.Container) error {
//	    // safe to resolve other bindings here
//	    return nil
//	}
//
//	registry := container.NewProviderRegistry(c)
//	registry.Register(&CacheServiceProvider{}, map[string]any{"cache.ttl": time.Hour})
//	registry.Boot()
//
// Values passed to Register are set after the provider registered, so they
// override its defaults.
//
// # Deferred Providers
//
//	type HeavyProvider struct{ container.BaseProvider }
//
//	func (p *HeavyProvider) IsDeferred() bool     { return true }
//	func (p *HeavyProvider) Provides() []string   { return []string{"heavy"} }
//	func (p *HeavyProvider) Register(app *container.Container) {
//	    app.Singleton("heavy", func(c *container.Container) any {
//	        return heavySetup() // only called on first app.Make("heavy")
//	    })
//	}
package container
