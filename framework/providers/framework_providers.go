package providers

import (
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/km-arc/go-laravel-webprofiler/framework/config"
	"github.com/km-arc/go-laravel-webprofiler/framework/container"
	"github.com/km-arc/go-laravel-webprofiler/framework/events"
	gohttp "github.com/km-arc/go-laravel-webprofiler/framework/http"
	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
	"github.com/km-arc/go-laravel-webprofiler/framework/log"
	"github.com/km-arc/go-laravel-webprofiler/framework/routing"
)

// MiddlewareTag groups the middleware the application runs in front of
// the kernel, in tag order.
const MiddlewareTag = "kernel.middleware"

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider loads the application configuration from .env and
// the environment and binds it into the container as "config".
//
// Bound abstracts:
//   - "config"  → *config.Config
//   - "charset" → string (APP_CHARSET)
//
// Laravel equivalent:
//
//	// Illuminate\Foundation\Bootstrap\LoadConfiguration
//	$app->singleton('config', fn() => new Repository($items));
type ConfigServiceProvider struct {
	container.BaseProvider
	EnvFiles []string
	// Config, when set, is used instead of loading the environment.
	Config *config.Config
}

func (p *ConfigServiceProvider) Register(app *container.Container) {
	envFiles, preset := p.EnvFiles, p.Config
	app.Singleton("config", func(c *container.Container) any {
		if preset != nil {
			return preset
		}
		return config.Load(envFiles...)
	})
	app.Alias("config", "configuration")
	app.Singleton("charset", func(c *container.Container) any {
		return container.Resolve[*config.Config](c, "config").App.Charset
	})
}

// ── LogServiceProvider ────────────────────────────────────────────────────────

// LogServiceProvider registers the structured logger.
//
// Bound abstracts:
//   - "logger"     → *slog.Logger, backed by a log.DebugHandler
//   - "log.buffer" → *log.DebugBuffer holding recent records
//
// Configuration keys read from "config": log.level, log.format,
// log.buffer_size.
type LogServiceProvider struct {
	container.BaseProvider
	// Writer receives formatted records; default os.Stderr.
	Writer io.Writer
}

func (p *LogServiceProvider) Register(app *container.Container) {
	w := p.Writer
	if w == nil {
		w = os.Stderr
	}
	app.Singleton("log.buffer", func(c *container.Container) any {
		cfg := container.Resolve[*config.Config](c, "config")
		return log.NewDebugBuffer(cfg.Log.BufferSize)
	})
	app.Singleton("logger", func(c *container.Container) any {
		cfg := container.Resolve[*config.Config](c, "config")
		h, err := log.CreateHandlerWithStrings(w, cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			h = log.CreateHandler(w, slog.LevelInfo, log.FormatLogfmt)
			defer slog.New(h).Warn("invalid log configuration, using defaults", "error", err)
		}
		buf := container.Resolve[*log.DebugBuffer](c, "log.buffer")
		return slog.New(log.NewDebugHandler(h, buf))
	})
}

// ── KernelServiceProvider ─────────────────────────────────────────────────────

// KernelServiceProvider registers the event dispatcher and HTTP kernel.
//
// Bound abstracts:
//   - "dispatcher"    → events.Dispatcher
//   - "request_stack" → *kernel.RequestStack
//   - "kernel"        → *kernel.Kernel
type KernelServiceProvider struct {
	container.BaseProvider
}

func (p *KernelServiceProvider) Register(app *container.Container) {
	app.Singleton("dispatcher", func(c *container.Container) any {
		return events.Dispatcher(events.NewDispatcher())
	})
	app.Singleton("request_stack", func(c *container.Container) any {
		return kernel.NewRequestStack()
	})
	app.Singleton("kernel", func(c *container.Container) any {
		return kernel.New(
			container.Resolve[events.Dispatcher](c, "dispatcher"),
			container.Resolve[*kernel.RequestStack](c, "request_stack"),
			container.Resolve[*slog.Logger](c, "logger"),
		)
	})
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider registers the HTTP router and named routes.
//
// Bound abstracts:
//   - "router"              → *routing.Router
//   - "routes"              → *routing.RouteCollection
//   - "url_generator"       → *routing.URLGenerator
//   - "request_matcher"     → *routing.URLMatcher
//   - "controllers_factory" → a new *routing.ControllerCollection per Make
//   - "resolver"            → routing.ControllerResolver
//
// Laravel equivalent:
//
//	// Illuminate\Routing\RoutingServiceProvider
//	$app->singleton('router', fn($app) => new Router($app['events'], $app));
type RoutingServiceProvider struct {
	container.BaseProvider
	// Middleware run inside the kernel for every route; default
	// middleware.Logger. Panics are left to the kernel.
	Middleware []func(http.Handler) http.Handler
}

func (p *RoutingServiceProvider) Register(app *container.Container) {
	mw := p.Middleware
	if mw == nil {
		mw = []func(http.Handler) http.Handler{middleware.Logger}
	}
	app.Singleton("router", func(c *container.Container) any {
		return routing.NewWith(mw...)
	})
	app.Singleton("routes", func(c *container.Container) any {
		return routing.NewRouteCollection()
	})
	app.Singleton("url_generator", func(c *container.Container) any {
		return routing.NewURLGenerator(container.Resolve[*routing.RouteCollection](c, "routes"))
	})
	app.Singleton("request_matcher", func(c *container.Container) any {
		return routing.NewURLMatcher(
			container.Resolve[*routing.Router](c, "router"),
			container.Resolve[*routing.RouteCollection](c, "routes"),
		)
	})
	app.Bind("controllers_factory", func(c *container.Container) any {
		return routing.NewControllerCollection()
	})
	app.Singleton("resolver", func(c *container.Container) any {
		return routing.ControllerResolver(routing.NewHandlerResolver())
	})
}

// ── ServiceControllerServiceProvider ──────────────────────────────────────────

// ServiceControllerServiceProvider lets routes target container services
// as "service:Method".
//
// Extended abstracts:
//   - "resolver" → *routing.ServiceControllerResolver
type ServiceControllerServiceProvider struct {
	container.BaseProvider
}

func (p *ServiceControllerServiceProvider) Register(app *container.Container) {
	app.Extend("resolver", func(inner any, c *container.Container) any {
		return routing.NewServiceControllerResolver(inner.(routing.ControllerResolver), c)
	})
}

// ── ViewServiceProvider ───────────────────────────────────────────────────────

// ViewServiceProvider registers the template engine.
//
// Bound abstracts:
//   - "view.loader" → *gohttp.Loader
//   - "view"        → *gohttp.ViewEngine
//
// Laravel equivalent:
//
//	// Illuminate\View\ViewServiceProvider
//	$app->singleton('view', fn($app) => new Factory(...));
type ViewServiceProvider struct {
	container.BaseProvider
	Dir string // template directory, default: "./views"
	Ext string // file extension,    default: ".html"
}

func (p *ViewServiceProvider) Register(app *container.Container) {
	dir := p.Dir
	if dir == "" {
		dir = "./views"
	}
	ext := p.Ext
	if ext == "" {
		ext = ".html"
	}

	app.Singleton("view.loader", func(c *container.Container) any {
		loader := gohttp.NewLoader(ext)
		loader.AddDir(dir, "")
		return loader
	})
	app.Singleton("view", func(c *container.Container) any {
		engine := gohttp.NewViewEngine(container.Resolve[*gohttp.Loader](c, "view.loader"))
		if charset, ok := container.Lookup[string](c, "charset"); ok {
			engine.AddGlobal("charset", charset)
		}
		return engine
	})
}
