package container

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider mirrors Laravel's Illuminate\Support\ServiceProvider.
//
// Every provider must implement at minimum Register().
// Boot() is called after ALL providers have been registered, making it safe
// to resolve other bindings inside Boot().
//
//	type AppServiceProvider struct{ container.BaseProvider }
//
//	func (p *AppServiceProvider) Register(app *container.Container) {
//	    app.Singleton("logger", func(c *container.Container) any {
//	        return slog.Default()
//	    })
//	}
//
//	func (p *AppServiceProvider) Boot(app *container.Container) error {
//	    container.Resolve[*slog.Logger](app, "logger").Info("application booted")
//	    return nil
//	}
type ServiceProvider interface {
	// Register binds services into the container.
	// Do NOT resolve other bindings here; use Boot() for that.
	Register(app *Container)

	// Boot is called after all providers are registered.
	// Safe to resolve and use any binding here. An error aborts booting.
	Boot(app *Container) error

	// Provides returns the list of abstract keys this provider registers.
	// Used for deferred (lazy) provider loading.
	// Return nil / empty slice if the provider is always eager.
	Provides() []string

	// IsDeferred returns true if this provider should be loaded lazily,
	// only when one of its Provides() abstracts is first resolved.
	IsDeferred() bool
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable struct that provides no-op implementations
// of Boot(), Provides(), and IsDeferred().
// Embed it in your provider and only override what you need.
//
//	type MyProvider struct{ container.BaseProvider }
//	func (p *MyProvider) Register(app *container.Container) { ... }
type BaseProvider struct{}

func (p *BaseProvider) Boot(_ *Container) error { return nil }
func (p *BaseProvider) Provides() []string      { return nil }
func (p *BaseProvider) IsDeferred() bool        { return false }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry manages registration and booting of ServiceProviders,
// including deferred (lazy) providers.
type ProviderRegistry struct {
	app        *Container
	eager      []ServiceProvider
	deferred   map[string]ServiceProvider // abstract → provider
	booted     bool
	registered map[ServiceProvider]bool

	// values passed to Register for providers that are not loaded yet
	deferredValues map[ServiceProvider][]map[string]any
}

// NewProviderRegistry creates a registry bound to app.
func NewProviderRegistry(app *Container) *ProviderRegistry {
	r := &ProviderRegistry{
		app:            app,
		deferred:       make(map[string]ServiceProvider),
		registered:     make(map[ServiceProvider]bool),
		deferredValues: make(map[ServiceProvider][]map[string]any),
	}
	app.mu.Lock()
	app.loaders = append(app.loaders, r)
	app.mu.Unlock()
	return r
}

// Register adds a provider and calls its Register() method (unless deferred).
// The optional values are set as container instances once the provider has
// registered, so they override the provider's defaults:
//
//	registry.Register(&webprofiler.ServiceProvider{}, map[string]any{
//	    "profiler.cache_dir": "/tmp/profiler",
//	})
//
// Registering the same provider instance twice is a no-op. A provider
// registered after Boot() is booted immediately and its Boot error returned.
func (r *ProviderRegistry) Register(provider ServiceProvider, values ...map[string]any) error {
	if r.registered[provider] {
		return nil
	}
	r.registered[provider] = true

	if provider.IsDeferred() {
		for _, abstract := range provider.Provides() {
			r.deferred[abstract] = provider
		}
		r.deferredValues[provider] = values
		return nil
	}

	provider.Register(r.app)
	r.apply(values)
	r.eager = append(r.eager, provider)

	// If already booted, boot this provider immediately
	if r.booted {
		return provider.Boot(r.app)
	}
	return nil
}

func (r *ProviderRegistry) apply(values []map[string]any) {
	for _, set := range values {
		for key, value := range set {
			r.app.Instance(key, value)
		}
	}
}

func (r *ProviderRegistry) provides(abstract string) bool {
	_, ok := r.deferred[abstract]
	return ok
}

// load registers (and, after Boot, boots) the deferred provider of abstract
// the first time it is resolved.
func (r *ProviderRegistry) load(abstract string) {
	provider := r.deferred[abstract]
	for _, a := range provider.Provides() {
		delete(r.deferred, a)
	}
	provider.Register(r.app)
	r.apply(r.deferredValues[provider])
	delete(r.deferredValues, provider)
	if r.booted {
		if err := provider.Boot(r.app); err != nil {
			panic(err)
		}
	}
}

// Boot calls Boot() on all eager providers, in registration order.
// Must be called after ALL providers have been registered. The first
// error stops booting and is returned.
func (r *ProviderRegistry) Boot() error {
	if r.booted {
		return nil
	}
	for _, provider := range r.eager {
		if err := provider.Boot(r.app); err != nil {
			return err
		}
	}
	r.booted = true
	return nil
}

// Booted returns true if Boot() has completed.
func (r *ProviderRegistry) Booted() bool { return r.booted }

// Providers returns all registered eager providers.
func (r *ProviderRegistry) Providers() []ServiceProvider { return r.eager }
