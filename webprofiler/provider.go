// Package webprofiler plugs the profiler and the web debug toolbar into an
// application: collectors, the profiler and its listener, the toolbar, and
// the pages under /_profiler.
//
//	application := app.New()
//	application.Register(&providers.ServiceControllerServiceProvider{})
//	application.Register(webprofiler.NewServiceProvider(), map[string]any{
//	    "profiler.cache_dir": "/tmp/profiler",
//	})
//
// Optional collectors (form, dump, security, translation) are only added
// when the application registered the matching provider first.
package webprofiler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/km-arc/go-laravel-webprofiler/framework/app"
	"github.com/km-arc/go-laravel-webprofiler/framework/config"
	"github.com/km-arc/go-laravel-webprofiler/framework/container"
	"github.com/km-arc/go-laravel-webprofiler/framework/dump"
	"github.com/km-arc/go-laravel-webprofiler/framework/events"
	"github.com/km-arc/go-laravel-webprofiler/framework/form"
	gohttp "github.com/km-arc/go-laravel-webprofiler/framework/http"
	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
	"github.com/km-arc/go-laravel-webprofiler/framework/routing"
	"github.com/km-arc/go-laravel-webprofiler/framework/security"
	"github.com/km-arc/go-laravel-webprofiler/framework/stopwatch"
	"github.com/km-arc/go-laravel-webprofiler/framework/translation"
	"github.com/km-arc/go-laravel-webprofiler/profiler"
	"github.com/km-arc/go-laravel-webprofiler/profiler/collector"
)

var (
	// ErrServiceControllerRequired is returned by Connect when "resolver"
	// cannot resolve "service:Method" targets.
	ErrServiceControllerRequired = errors.New("webprofiler: the ServiceController service provider must be registered to use the web profiler")
	// ErrApplicationRequired is returned by Boot when "app" does not hold
	// an *app.Application.
	ErrApplicationRequired = errors.New("webprofiler: an *app.Application must be bound as \"app\"")
)

// Version is reported by the config collector.
const Version = "0.1.0"

// ServiceProvider registers the web profiler.
//
// Parameters (override them through Register values):
//   - "profiler.mount_prefix"                          "/_profiler"
//   - "profiler.cache_dir"                             os.TempDir()/profiler
//   - "profiler.dsn"                                   "file:" + cache dir, or "sqlite:/path"
//   - "profiler.request_matcher"                       nil
//   - "profiler.only_exceptions"                       false
//   - "profiler.only_main_requests"                    false
//   - "web_profiler.debug_toolbar.enable"              true
//   - "web_profiler.debug_toolbar.position"            "bottom"
//   - "web_profiler.debug_toolbar.intercept_redirects" false
//   - "code.file_link_format"                          nil, e.g. "vscode://file/%f:%l"
type ServiceProvider struct {
	container.BaseProvider
	Features Features
}

// NewServiceProvider returns a provider with every feature on. A zero
// ServiceProvider only wires the core collectors.
func NewServiceProvider() *ServiceProvider {
	return &ServiceProvider{Features: AllFeatures()}
}

func (p *ServiceProvider) Register(c *container.Container) {
	features := p.Features
	base := baseDir()

	c.Instance("profiler.mount_prefix", "/_profiler")
	c.Extend("dispatcher", func(d any, c *container.Container) any {
		return events.Dispatcher(events.NewTraceableDispatcher(
			d.(events.Dispatcher),
			container.Resolve[*stopwatch.Stopwatch](c, "stopwatch"),
			container.Resolve[*slog.Logger](c, "logger"),
		))
	})

	withDump := features.Dump && c.Bound("var_dumper.cli_dumper")

	c.Singleton("data_collector.templates", func(c *container.Container) any {
		templates := []TemplateDescriptor{
			{"config", "@WebProfiler/Collector/config"},
			{"request", "@WebProfiler/Collector/request"},
			{"exception", "@WebProfiler/Collector/exception"},
			{"events", "@WebProfiler/Collector/events"},
			{"logger", "@WebProfiler/Collector/logger"},
			{"time", "@WebProfiler/Collector/time"},
			{"router", "@WebProfiler/Collector/router"},
			{"memory", "@WebProfiler/Collector/memory"},
			{"form", "@WebProfiler/Collector/form"},
			{"translation", "@WebProfiler/Collector/translation"},
		}
		if features.View {
			templates = append(templates, TemplateDescriptor{"view", "@WebProfiler/Collector/view"})
		}
		if withDump {
			templates = append(templates, TemplateDescriptor{"dump", "@Debug/Profiler/dump"})
		}
		if features.Ajax {
			templates = append(templates, TemplateDescriptor{"ajax", "@WebProfiler/Collector/ajax"})
		}
		return templates
	})

	c.Singleton("data_collectors", func(c *container.Container) any {
		set := NewCollectorFactories()
		set.Set("config", func(c *container.Container) collector.DataCollector {
			cfg, _ := container.Lookup[*config.Config](c, "config")
			return collector.NewConfigCollector(cfg, Version)
		})
		set.Set("request", func(c *container.Container) collector.DataCollector {
			return collector.NewRequestCollector()
		})
		set.Set("exception", func(c *container.Container) collector.DataCollector {
			return collector.NewExceptionCollector()
		})
		set.Set("events", func(c *container.Container) collector.DataCollector {
			return collector.NewEventCollector(container.Resolve[events.Dispatcher](c, "dispatcher"))
		})
		set.Set("logger", func(c *container.Container) collector.DataCollector {
			return collector.NewLoggerCollector(container.Resolve[*slog.Logger](c, "logger"))
		})
		set.Set("time", func(c *container.Container) collector.DataCollector {
			return collector.NewTimeCollector(container.Resolve[*stopwatch.Stopwatch](c, "stopwatch"))
		})
		set.Set("router", func(c *container.Container) collector.DataCollector {
			return collector.NewRouterCollector()
		})
		set.Set("memory", func(c *container.Container) collector.DataCollector {
			return collector.NewMemoryCollector()
		})
		return set
	})

	if features.Form && c.Bound("form.resolved_type_factory") {
		p.registerForm(c)
	}
	if features.View {
		p.registerView(c)
	}
	if withDump {
		p.registerDump(c)
	}
	if features.Ajax {
		extendCollectors(c, "ajax", func(c *container.Container) collector.DataCollector {
			return collector.NewAjaxCollector()
		})
	}
	if features.Security && c.Bound("security.token_storage") {
		p.registerSecurity(c)
	}
	if features.Translation && c.Bound("translator") {
		p.registerTranslation(c)
	}

	c.Singleton("web_profiler.controller.profiler", func(c *container.Container) any {
		return NewProfilerController(
			container.Resolve[*routing.URLGenerator](c, "url_generator"),
			container.Resolve[*profiler.Profiler](c, "profiler"),
			container.Resolve[*gohttp.ViewEngine](c, "view"),
			container.Resolve[[]TemplateDescriptor](c, "data_collector.templates"),
			base,
		)
	})
	c.Singleton("web_profiler.controller.router", func(c *container.Container) any {
		matcher, _ := container.Lookup[*routing.URLMatcher](c, "request_matcher")
		return NewRouterController(
			container.Resolve[*profiler.Profiler](c, "profiler"),
			container.Resolve[*gohttp.ViewEngine](c, "view"),
			matcher,
			container.Resolve[*routing.RouteCollection](c, "routes"),
		)
	})
	c.Singleton("web_profiler.controller.exception", func(c *container.Container) any {
		return NewExceptionPanelController(
			container.Resolve[*gohttp.ViewEngine](c, "view"),
			container.Resolve[*profiler.Profiler](c, "profiler"),
		)
	})
	c.Singleton("web_profiler.toolbar.listener", func(c *container.Container) any {
		mode := ToolbarDisabled
		if enabled, _ := container.Lookup[bool](c, "web_profiler.debug_toolbar.enable"); enabled {
			mode = ToolbarEnabled
		}
		intercept, _ := container.Lookup[bool](c, "web_profiler.debug_toolbar.intercept_redirects")
		position, _ := container.Lookup[string](c, "web_profiler.debug_toolbar.position")
		return NewToolbarListener(
			container.Resolve[*gohttp.ViewEngine](c, "view"),
			intercept,
			mode,
			container.Resolve[*routing.URLGenerator](c, "url_generator"),
			position,
		)
	})

	c.Singleton("profiler", func(c *container.Container) any {
		prof := profiler.New(
			container.Resolve[profiler.Storage](c, "profiler.storage"),
			container.Resolve[*slog.Logger](c, "logger"),
		)
		set := container.Resolve[*CollectorFactories](c, "data_collectors")
		for _, name := range set.Names() {
			factory, _ := set.Get(name)
			prof.Add(factory(c))
		}
		return prof
	})
	c.Instance("profiler.cache_dir", filepath.Join(os.TempDir(), "profiler"))
	c.Singleton("profiler.storage", func(c *container.Container) any {
		dsn, ok := container.Lookup[string](c, "profiler.dsn")
		if !ok || dsn == "" {
			dsn = "file:" + container.Resolve[string](c, "profiler.cache_dir")
		}
		storage, err := profiler.OpenStorage(dsn)
		if err != nil {
			panic(fmt.Errorf("webprofiler: profiler.storage: %w", err))
		}
		return storage
	})

	c.Instance("profiler.request_matcher", nil)
	c.Instance("profiler.only_exceptions", false)
	c.Instance("profiler.only_main_requests", false)
	c.Instance("web_profiler.debug_toolbar.enable", true)
	c.Instance("web_profiler.debug_toolbar.position", "bottom")
	c.Instance("web_profiler.debug_toolbar.intercept_redirects", false)

	c.Singleton("profiler.listener", func(c *container.Container) any {
		opts := profiler.ListenerOptions{Matcher: requestMatcher(c)}
		opts.OnlyExceptions, _ = container.Lookup[bool](c, "profiler.only_exceptions")
		opts.OnlyMainRequests, _ = container.Lookup[bool](c, "profiler.only_main_requests")
		return profiler.NewListener(
			container.Resolve[*profiler.Profiler](c, "profiler"),
			container.Resolve[*kernel.RequestStack](c, "request_stack"),
			opts,
			container.Resolve[*slog.Logger](c, "logger"),
		)
	})

	c.Singleton("stopwatch", func(c *container.Container) any {
		return stopwatch.New()
	})

	c.Instance("code.file_link_format", nil)

	c.Extend("view", func(v any, c *container.Container) any {
		view := v.(*gohttp.ViewEngine)

		links, ok := container.Lookup[*FileLinkFormatter](c, "code.file_link_format")
		if !ok {
			format, _ := container.Lookup[string](c, "code.file_link_format")
			prefix := container.Resolve[string](c, "profiler.mount_prefix")
			stack, _ := container.Lookup[*kernel.RequestStack](c, "request_stack")
			links = NewFileLinkFormatter(format, stack, base, prefix+"/open?file=%f&line=%l#line%l")
			c.Instance("code.file_link_format", links)
		}
		charset, _ := container.Lookup[string](c, "charset")

		view.AddFuncs(CodeFuncs(links, base, charset))
		view.AddFuncs(ProfilerFuncs())
		if !view.HasFunc("path") {
			if urls, ok := container.Lookup[*routing.URLGenerator](c, "url_generator"); ok {
				view.AddFunc("path", PathFunc(urls))
			}
		}
		if features.View {
			view.OnRender(container.Resolve[*collector.RenderProfile](c, "view.profiler.profile").Record)
		}
		return view
	})

	c.Extend("view.loader", func(l any, c *container.Container) any {
		loader := l.(*gohttp.Loader)
		addTemplatePaths(loader, container.Resolve[string](c, "profiler.templates_path"), base)
		return loader
	})

	c.Singleton("profiler.templates_path", func(c *container.Container) any {
		return templatesPath()
	})
}

func (p *ServiceProvider) registerForm(c *container.Container) {
	c.Singleton("data_collectors.form.extractor", func(c *container.Container) any {
		return form.NewDataExtractor()
	})
	c.Singleton("data_collectors.form.collector", func(c *container.Container) any {
		return collector.NewFormCollector(container.Resolve[*form.DataExtractor](c, "data_collectors.form.extractor"))
	})
	extendCollectors(c, "form", func(c *container.Container) collector.DataCollector {
		return container.Resolve[*collector.FormCollector](c, "data_collectors.form.collector")
	})

	c.Extend("form.resolved_type_factory", func(f any, c *container.Container) any {
		return form.ResolvedTypeFactory(form.NewResolvedTypeFactoryDataCollectorProxy(
			f.(form.ResolvedTypeFactory),
			formCollector(c),
		))
	})
	c.Extend("form.type.extensions", func(exts any, c *container.Container) any {
		return append(exts.([]form.TypeExtension), form.NewDataCollectorTypeExtension(formCollector(c)))
	})
}

// formCollector builds the form collector through the collector set, so a
// replaced "form" factory is honoured.
func formCollector(c *container.Container) form.DataCollector {
	set := container.Resolve[*CollectorFactories](c, "data_collectors")
	factory, _ := set.Get("form")
	return factory(c).(form.DataCollector)
}

func (p *ServiceProvider) registerView(c *container.Container) {
	extendCollectors(c, "view", func(c *container.Container) collector.DataCollector {
		return collector.NewViewCollector(container.Resolve[*collector.RenderProfile](c, "view.profiler.profile"))
	})
	c.Singleton("view.profiler.profile", func(c *container.Container) any {
		return collector.NewRenderProfile(container.Resolve[*stopwatch.Stopwatch](c, "stopwatch"))
	})
}

func (p *ServiceProvider) registerDump(c *container.Container) {
	c.Singleton("var_dumper.dump_listener", func(c *container.Container) any {
		return dump.NewListener(
			container.Resolve[*dump.Cloner](c, "var_dumper.cloner"),
			container.Resolve[*collector.DumpCollector](c, "var_dumper.data_collector"),
		)
	})
	extendCollectors(c, "dump", func(c *container.Container) collector.DataCollector {
		var dumper dump.Dumper
		if w, ok := container.Lookup[io.Writer](c, "var_dumper.dump_destination"); ok && w != nil {
			dumper = container.Resolve[*dump.CliDumper](c, "var_dumper.cli_dumper")
		}
		charset, _ := container.Lookup[string](c, "charset")
		stack, _ := container.Lookup[*kernel.RequestStack](c, "request_stack")
		logger, _ := container.Lookup[*slog.Logger](c, "logger")
		dc := collector.NewDumpCollector(container.Resolve[*stopwatch.Stopwatch](c, "stopwatch"), charset, stack, dumper, logger)
		c.Instance("var_dumper.data_collector", dc)
		return dc
	})
}

func (p *ServiceProvider) registerSecurity(c *container.Container) {
	extendCollectors(c, "security", func(c *container.Container) collector.DataCollector {
		tokens := container.Resolve[*security.TokenStorage](c, "security.token_storage")
		roles, ok := container.Lookup[*security.RoleHierarchy](c, "security.role_hierarchy")
		if !ok {
			roles = security.NewRoleHierarchy(nil)
		}
		logout, ok := container.Lookup[*security.LogoutURLGenerator](c, "security.logout_url_generator")
		if !ok {
			logout = security.NewLogoutURLGenerator(
				container.Resolve[*kernel.RequestStack](c, "request_stack"),
				container.Resolve[*routing.URLGenerator](c, "url_generator"),
				tokens,
			)
		}
		return collector.NewSecurityCollector(tokens, roles, logout)
	})

	c.Extend("data_collector.templates", func(t any, c *container.Container) any {
		return append(t.([]TemplateDescriptor), TemplateDescriptor{"security", "@Security/Collector/security"})
	})
	c.Extend("view", func(v any, c *container.Container) any {
		view := v.(*gohttp.ViewEngine)
		view.AddFunc("yaml_encode", yamlEncode)
		return view
	})
}

func (p *ServiceProvider) registerTranslation(c *container.Container) {
	extendCollectors(c, "translation", func(c *container.Container) collector.DataCollector {
		return collector.NewTranslationCollector(container.Resolve[translation.Translator](c, "translator"))
	})
	c.Extend("translator", func(t any, c *container.Container) any {
		return translation.Translator(translation.NewDataCollectorTranslator(t.(translation.Translator)))
	})
}

// extendCollectors adds a collector to the "data_collectors" set.
func extendCollectors(c *container.Container, name string, f CollectorFactory) {
	c.Extend("data_collectors", func(set any, c *container.Container) any {
		set.(*CollectorFactories).Set(name, f)
		return set
	})
}

// requestMatcher reads "profiler.request_matcher", which may hold a
// profiler.RequestMatcher or a plain func(*http.Request) bool.
func requestMatcher(c *container.Container) profiler.RequestMatcher {
	if m, ok := container.Lookup[profiler.RequestMatcher](c, "profiler.request_matcher"); ok {
		return m
	}
	if f, ok := container.Lookup[func(*http.Request) bool](c, "profiler.request_matcher"); ok {
		return profiler.RequestMatcherFunc(f)
	}
	return nil
}

// PathFunc returns the "path" template function: the URL of a named route
// with parameters given as key/value pairs.
//
//	{{path "_profiler" "token" .Token "panel" "request"}}
func PathFunc(urls *routing.URLGenerator) any {
	return func(name string, kv ...string) (string, error) {
		if len(kv)%2 != 0 {
			return "", fmt.Errorf("path %q: odd number of parameters", name)
		}
		params := make(map[string]string, len(kv)/2)
		for i := 0; i < len(kv); i += 2 {
			params[kv[i]] = kv[i+1]
		}
		return urls.Generate(name, params)
	}
}

// Connect returns the profiler routes.
func (p *ServiceProvider) Connect(a *app.Application) (*routing.ControllerCollection, error) {
	if _, ok := a.Make("resolver").(*routing.ServiceControllerResolver); !ok {
		return nil, ErrServiceControllerRequired
	}

	controllers := container.Resolve[*routing.ControllerCollection](a.Container, "controllers_factory")

	controllers.Get("/router/{token}", "web_profiler.controller.router:Panel").Bind("_profiler_router")
	controllers.Get("/exception/{token}.css", "web_profiler.controller.exception:CSS").Bind("_profiler_exception_css")
	controllers.Get("/exception/{token}", "web_profiler.controller.exception:Show").Bind("_profiler_exception")
	controllers.Get("/search", "web_profiler.controller.profiler:Search").Bind("_profiler_search")
	controllers.Get("/search_bar", "web_profiler.controller.profiler:SearchBar").Bind("_profiler_search_bar")
	controllers.Get("/purge", "web_profiler.controller.profiler:Purge").Bind("_profiler_purge")
	controllers.Get("/info/{about}", "web_profiler.controller.profiler:Info").Bind("_profiler_info")
	controllers.Get("/phpinfo", "web_profiler.controller.profiler:RuntimeInfo").Bind("_profiler_phpinfo")
	controllers.Get("/open", "web_profiler.controller.profiler:Open").Bind("_profiler_open_file")
	controllers.Get("/{token}/search/results", "web_profiler.controller.profiler:SearchResults").Bind("_profiler_search_results")
	controllers.Get("/{token}", "web_profiler.controller.profiler:Panel").Bind("_profiler")
	controllers.Get("/wdt/{token}", "web_profiler.controller.profiler:Toolbar").Bind("_wdt")
	controllers.Get("/", "web_profiler.controller.profiler:Home").Bind("_profiler_home")

	return controllers, nil
}

// Boot mounts the profiler routes under "profiler.mount_prefix", and the
// pprof handlers under its /debug sub-path.
func (p *ServiceProvider) Boot(c *container.Container) error {
	a, ok := container.Lookup[*app.Application](c, "app")
	if !ok {
		return ErrApplicationRequired
	}
	prefix := container.Resolve[string](c, "profiler.mount_prefix")
	if err := a.MountProvider(prefix, p); err != nil {
		return err
	}
	if p.Features.Pprof {
		a.Router().Mount(prefix+"/debug", middleware.Profiler())
	}
	return nil
}

// Subscribe attaches the profiler listener, the toolbar (when enabled) and
// the request collector, and routes dump.Dump to the dump collector.
func (p *ServiceProvider) Subscribe(c *container.Container, dispatcher events.Dispatcher) {
	dispatcher.AddSubscriber(container.Resolve[*profiler.Listener](c, "profiler.listener"))

	if enabled, _ := container.Lookup[bool](c, "web_profiler.debug_toolbar.enable"); enabled {
		dispatcher.AddSubscriber(container.Resolve[*ToolbarListener](c, "web_profiler.toolbar.listener"))
	}

	request, err := container.Resolve[*profiler.Profiler](c, "profiler").Get("request")
	if err == nil {
		if s, ok := request.(events.Subscriber); ok {
			dispatcher.AddSubscriber(s)
		}
	}

	if _, ok := container.Lookup[*collector.DumpCollector](c, "var_dumper.data_collector"); ok {
		container.Resolve[*dump.Listener](c, "var_dumper.dump_listener").Configure()
	}
}

var (
	_ app.ControllerProvider    = (*ServiceProvider)(nil)
	_ app.EventListenerProvider = (*ServiceProvider)(nil)
)
