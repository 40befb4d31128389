package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/justinas/alice"

	"github.com/km-arc/go-laravel-webprofiler/framework/config"
	"github.com/km-arc/go-laravel-webprofiler/framework/container"
	"github.com/km-arc/go-laravel-webprofiler/framework/events"
	gohttp "github.com/km-arc/go-laravel-webprofiler/framework/http"
	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
	"github.com/km-arc/go-laravel-webprofiler/framework/providers"
	"github.com/km-arc/go-laravel-webprofiler/framework/routing"
)

// ControllerProvider returns routes to mount under a prefix.
//
//	app.MountProvider("/blog", &BlogControllers{})
type ControllerProvider interface {
	Connect(app *Application) (*routing.ControllerCollection, error)
}

// EventListenerProvider subscribes listeners once every provider has
// registered and before any provider boots.
type EventListenerProvider interface {
	Subscribe(c *container.Container, dispatcher events.Dispatcher)
}

// Application is the top-level application container.
// It embeds the IoC Container and ProviderRegistry so user code can
// call app.Bind(), app.Singleton(), app.Register() directly,
// exactly like $app in Laravel's bootstrap/app.php.
type Application struct {
	*container.Container
	Providers *container.ProviderRegistry

	subscribed map[container.ServiceProvider]bool

	once    sync.Once
	handler http.Handler
}

// New creates the application with the core providers, loading
// configuration from envFiles (default .env) and the environment.
func New(envFiles ...string) *Application {
	return newApplication(&providers.ConfigServiceProvider{EnvFiles: envFiles})
}

// NewWithConfig creates the application around an already-built Config.
func NewWithConfig(cfg *config.Config) *Application {
	return newApplication(&providers.ConfigServiceProvider{Config: cfg})
}

func newApplication(cfg *providers.ConfigServiceProvider) *Application {
	c := container.New()
	app := &Application{
		Container:  c,
		Providers:  container.NewProviderRegistry(c),
		subscribed: make(map[container.ServiceProvider]bool),
	}
	c.Instance("app", app)

	// Register framework core providers (same order as Laravel)
	for _, p := range []container.ServiceProvider{
		cfg,
		&providers.LogServiceProvider{},
		&providers.KernelServiceProvider{},
		&providers.RoutingServiceProvider{},
		&providers.ViewServiceProvider{},
	} {
		_ = app.Providers.Register(p)
	}
	return app
}

// Register adds a ServiceProvider to the application; values override
// the parameters the provider registers. Providers added after Boot are
// subscribed and booted immediately.
func (a *Application) Register(provider container.ServiceProvider, values ...map[string]any) error {
	if err := a.Providers.Register(provider, values...); err != nil {
		return err
	}
	if a.Providers.Booted() {
		a.subscribe(provider)
	}
	return nil
}

// Boot subscribes every EventListenerProvider, then runs the Boot() phase
// on all providers. Calling Boot again is a no-op.
func (a *Application) Boot() error {
	if a.Providers.Booted() {
		return nil
	}
	for _, p := range a.Providers.Providers() {
		a.subscribe(p)
	}
	return a.Providers.Boot()
}

func (a *Application) subscribe(p container.ServiceProvider) {
	l, ok := p.(EventListenerProvider)
	if !ok || a.subscribed[p] {
		return
	}
	a.subscribed[p] = true
	l.Subscribe(a.Container, a.Dispatcher())
}

// Mount builds controllers and mounts them under prefix. Their named
// routes become available to the URL generator, prefixed.
func (a *Application) Mount(prefix string, controllers *routing.ControllerCollection) error {
	h, err := controllers.Build(
		container.Resolve[routing.ControllerResolver](a.Container, "resolver"),
		a.Dispatcher(),
	)
	if err != nil {
		return fmt.Errorf("mount %s: %w", prefix, err)
	}
	a.Router().Mount(prefix, h)
	a.Routes().AddCollection(prefix, controllers)
	return nil
}

// MountProvider connects p and mounts its controllers under prefix.
func (a *Application) MountProvider(prefix string, p ControllerProvider) error {
	controllers, err := p.Connect(a)
	if err != nil {
		return err
	}
	return a.Mount(prefix, controllers)
}

// ── Resolvers ─────────────────────────────────────────────────────────────────

// Config resolves *config.Config from the container.
func (a *Application) Config() *config.Config {
	return container.Resolve[*config.Config](a.Container, "config")
}

// Router resolves *routing.Router from the container.
func (a *Application) Router() *routing.Router {
	return container.Resolve[*routing.Router](a.Container, "router")
}

// Routes resolves the named route collection.
func (a *Application) Routes() *routing.RouteCollection {
	return container.Resolve[*routing.RouteCollection](a.Container, "routes")
}

// Views resolves *gohttp.ViewEngine from the container.
func (a *Application) Views() *gohttp.ViewEngine {
	return container.Resolve[*gohttp.ViewEngine](a.Container, "view")
}

// Dispatcher resolves the event dispatcher.
func (a *Application) Dispatcher() events.Dispatcher {
	return container.Resolve[events.Dispatcher](a.Container, "dispatcher")
}

// Logger resolves the application logger.
func (a *Application) Logger() *slog.Logger {
	return container.Resolve[*slog.Logger](a.Container, "logger")
}

// ── HTTP ──────────────────────────────────────────────────────────────────────

// Handler boots the application and returns its HTTP entry point:
// request IDs, the middleware tagged providers.MiddlewareTag, then the
// kernel around the router.
func (a *Application) Handler() (http.Handler, error) {
	if err := a.Boot(); err != nil {
		return nil, err
	}
	a.once.Do(func() {
		chain := alice.New(middleware.RequestID)
		for _, mw := range a.Tagged(providers.MiddlewareTag) {
			chain = chain.Append(mw.(func(http.Handler) http.Handler))
		}
		k := container.Resolve[*kernel.Kernel](a.Container, "kernel")
		a.handler = chain.Append(k.Middleware).Then(a.Router())
	})
	return a.handler, nil
}

// ServeHTTP serves r through Handler, answering 500 when boot fails.
func (a *Application) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h, err := a.Handler()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.ServeHTTP(w, r)
}

// Run boots the application (if needed) and serves HTTP on APP_PORT until
// ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	h, err := a.Handler()
	if err != nil {
		return fmt.Errorf("boot: %w", err)
	}
	cfg := a.Config()
	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	a.Logger().Info("server started",
		"app", cfg.App.Name,
		"url", "http://localhost"+srv.Addr,
		"env", cfg.App.Env)

	select {
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Environment returns APP_ENV value.
func (a *Application) Environment() string { return a.Config().App.Env }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.Environment() == "production" }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
func (a *Application) IsDebug() bool       { return a.Config().App.Debug }
func (a *Application) Version() string     { return "0.1.0" }

// Controller is an embeddable base for HTTP controllers.
type Controller struct{}

func (c *Controller) Request(r *http.Request) *gohttp.Request {
	return gohttp.NewRequest(r)
}
func (c *Controller) Response(w http.ResponseWriter) *gohttp.Response {
	return gohttp.NewResponse(w)
}
