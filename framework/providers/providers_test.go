package providers_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-laravel-webprofiler/framework/config"
	"github.com/km-arc/go-laravel-webprofiler/framework/container"
	"github.com/km-arc/go-laravel-webprofiler/framework/dump"
	"github.com/km-arc/go-laravel-webprofiler/framework/form"
	gohttp "github.com/km-arc/go-laravel-webprofiler/framework/http"
	"github.com/km-arc/go-laravel-webprofiler/framework/log"
	"github.com/km-arc/go-laravel-webprofiler/framework/providers"
	"github.com/km-arc/go-laravel-webprofiler/framework/routing"
	"github.com/km-arc/go-laravel-webprofiler/framework/security"
	"github.com/km-arc/go-laravel-webprofiler/framework/translation"
)

func registry(t *testing.T, cfg *config.Config, ps ...container.ServiceProvider) *container.Container {
	t.Helper()
	c := container.New()
	reg := container.NewProviderRegistry(c)
	for _, p := range append([]container.ServiceProvider{&providers.ConfigServiceProvider{Config: cfg}}, ps...) {
		require.NoError(t, reg.Register(p))
	}
	require.NoError(t, reg.Boot())
	return c
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Charset: "ISO-8859-1"},
		Log: config.LogConfig{Level: "info", Format: "json", BufferSize: 5},
	}
}

func TestConfigServiceProvider(t *testing.T) {
	cfg := testConfig()
	c := registry(t, cfg)

	assert.Same(t, cfg, c.Make("config"))
	assert.Same(t, cfg, c.Make("configuration"))
	assert.Equal(t, "ISO-8859-1", c.Make("charset"))
}

func TestLogServiceProvider(t *testing.T) {
	var out bytes.Buffer
	c := registry(t, testConfig(), &providers.LogServiceProvider{Writer: &out})

	logger := container.Resolve[*slog.Logger](c, "logger")
	logger.Debug("buffered only")
	logger.Info("written")

	assert.NotContains(t, out.String(), "buffered only")
	assert.Contains(t, out.String(), `"msg":"written"`)
	assert.Len(t, container.Resolve[*log.DebugBuffer](c, "log.buffer").Records(), 2)
}

func TestLogServiceProvider_InvalidConfigFallsBack(t *testing.T) {
	var out bytes.Buffer
	cfg := testConfig()
	cfg.Log.Level = "chatty"
	c := registry(t, cfg, &providers.LogServiceProvider{Writer: &out})

	container.Resolve[*slog.Logger](c, "logger").Info("still logging")
	assert.Contains(t, out.String(), "invalid log configuration")
	assert.Contains(t, out.String(), "still logging")
}

func TestKernelServiceProvider(t *testing.T) {
	c := registry(t, testConfig(), &providers.LogServiceProvider{Writer: &bytes.Buffer{}}, &providers.KernelServiceProvider{})
	assert.True(t, c.Bound("dispatcher"))
	assert.NotNil(t, c.Make("kernel"))
	assert.Same(t, c.Make("request_stack"), c.Make("request_stack"))
}

func TestServiceControllerServiceProvider(t *testing.T) {
	c := registry(t, testConfig(), &providers.RoutingServiceProvider{}, &providers.ServiceControllerServiceProvider{})

	resolver, ok := c.Make("resolver").(*routing.ServiceControllerResolver)
	require.True(t, ok)
	assert.IsType(t, &routing.HandlerResolver{}, resolver.Inner())
}

func TestViewServiceProvider(t *testing.T) {
	c := registry(t, testConfig(), &providers.ViewServiceProvider{Dir: t.TempDir()})

	engine := container.Resolve[*gohttp.ViewEngine](c, "view")
	assert.Same(t, container.Resolve[*gohttp.Loader](c, "view.loader"), engine.Loader())
}

func TestTranslationServiceProvider(t *testing.T) {
	c := registry(t, testConfig(), &providers.TranslationServiceProvider{
		Locale:    "de",
		Fallbacks: []string{"en"},
		Messages: map[string]map[string]string{
			"en": {"hi": "Hi"},
			"de": {"bye": "Tschüss"},
		},
	})

	tr := container.Resolve[translation.Translator](c, "translator")
	assert.Equal(t, "de", c.Make("locale"))
	assert.Equal(t, "Tschüss", tr.Trans("bye", nil, "", ""))
	assert.Equal(t, "Hi", tr.Trans("hi", nil, "", ""))
}

func TestSecurityServiceProvider(t *testing.T) {
	c := registry(t, testConfig(),
		&providers.KernelServiceProvider{},
		&providers.RoutingServiceProvider{},
		&providers.SecurityServiceProvider{
			Firewall: "api",
			Authenticator: func(r *http.Request) *security.Token {
				if r.Header.Get("X-User") == "" {
					return nil
				}
				return &security.Token{User: r.Header.Get("X-User"), Authenticated: true}
			},
			Hierarchy:   map[string][]string{"ROLE_ADMIN": {"ROLE_USER"}},
			LogoutRoute: "logout",
		},
	)

	tagged := c.Tagged(providers.MiddlewareTag)
	require.Len(t, tagged, 1)
	mw := tagged[0].(func(http.Handler) http.Handler)

	storage := container.Resolve[*security.TokenStorage](c, "security.token_storage")
	var got *security.Token
	h := mw(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) { got = storage.Token(r) }))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User", "ada")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, got)
	assert.Equal(t, "ada", got.User)
	assert.Equal(t, "api", got.Firewall, "firewall defaults to the provider's")

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Nil(t, got)

	hierarchy := container.Resolve[*security.RoleHierarchy](c, "security.role_hierarchy")
	assert.ElementsMatch(t, []string{"ROLE_ADMIN", "ROLE_USER"}, hierarchy.ReachableRoles([]string{"ROLE_ADMIN"}))

	routes := container.Resolve[*routing.RouteCollection](c, "routes")
	routes.Add(routing.Route{Method: http.MethodGet, Pattern: "/logout", Name: "logout"})
	logout := container.Resolve[*security.LogoutURLGenerator](c, "security.logout_url_generator")
	assert.Equal(t, "/logout", logout.LogoutPath("api"))
	assert.Empty(t, logout.LogoutPath("admin"))
}

func TestFormServiceProvider(t *testing.T) {
	c := registry(t, testConfig(), &providers.FormServiceProvider{})

	factory := container.Resolve[*form.Factory](c, "form.factory")
	f, err := factory.Create("email", "contact", form.Options{"required": true})
	require.NoError(t, err)

	f.Submit(map[string]string{"contact": "not-an-email"})
	assert.False(t, f.IsValid())
}

func TestVarDumperServiceProvider(t *testing.T) {
	var out bytes.Buffer
	c := registry(t, testConfig(), &providers.VarDumperServiceProvider{Destination: &out})

	cloner := container.Resolve[*dump.Cloner](c, "var_dumper.cloner")
	dumper := container.Resolve[*dump.CliDumper](c, "var_dumper.cli_dumper")
	require.NoError(t, dumper.Dump(cloner.Clone(map[string]int{"answer": 42})))
	assert.Contains(t, out.String(), "answer")

	// no destination means stderr
	c = registry(t, testConfig(), &providers.VarDumperServiceProvider{})
	_, ok := container.Lookup[interface{ Write([]byte) (int, error) }](c, "var_dumper.dump_destination")
	assert.False(t, ok)
}
