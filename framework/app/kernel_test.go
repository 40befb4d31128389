package app_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-laravel-webprofiler/framework/app"
	"github.com/km-arc/go-laravel-webprofiler/framework/config"
	"github.com/km-arc/go-laravel-webprofiler/framework/container"
	"github.com/km-arc/go-laravel-webprofiler/framework/events"
	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
	"github.com/km-arc/go-laravel-webprofiler/framework/providers"
	"github.com/km-arc/go-laravel-webprofiler/framework/routing"
)

func newApp() *app.Application {
	cfg := &config.Config{
		App: config.AppConfig{Name: "Test", Env: "testing", Charset: "UTF-8"},
		Log: config.LogConfig{Level: "error", Format: "logfmt", BufferSize: 10},
	}
	a := app.NewWithConfig(cfg)
	// keep chi's request logger out of test output
	_ = a.Register(&providers.RoutingServiceProvider{Middleware: []func(http.Handler) http.Handler{}})
	return a
}

// listenerProvider counts its lifecycle calls.
type listenerProvider struct {
	container.BaseProvider
	subscribed, booted int
	bootErr            error
}

func (p *listenerProvider) Register(*container.Container) {}

func (p *listenerProvider) Boot(*container.Container) error {
	p.booted++
	return p.bootErr
}

func (p *listenerProvider) Subscribe(_ *container.Container, _ events.Dispatcher) {
	p.subscribed++
}

func TestApplication_CoreBindings(t *testing.T) {
	a := newApp()

	assert.Same(t, a.Config(), a.Make("configuration"))
	assert.Equal(t, "UTF-8", a.Make("charset"))
	assert.True(t, a.IsTesting())
	assert.False(t, a.IsProduction())
	assert.NotNil(t, a.Logger())
	assert.NotNil(t, a.Views())
	assert.Same(t, a, a.Make("app"))

	first := a.Make("controllers_factory")
	assert.NotSame(t, first, a.Make("controllers_factory"), "controllers_factory is not shared")
}

func TestApplication_SubscribesBeforeBoot(t *testing.T) {
	a := newApp()
	p := &listenerProvider{}
	require.NoError(t, a.Register(p))
	assert.Zero(t, p.subscribed, "nothing subscribes before Boot")

	require.NoError(t, a.Boot())
	require.NoError(t, a.Boot())
	assert.Equal(t, 1, p.subscribed)
	assert.Equal(t, 1, p.booted)

	late := &listenerProvider{}
	require.NoError(t, a.Register(late))
	assert.Equal(t, 1, late.subscribed, "providers registered after boot subscribe at once")
	assert.Equal(t, 1, late.booted)
}

func TestApplication_MountAndServe(t *testing.T) {
	a := newApp()
	container.Resolve[*routing.HandlerResolver](a.Container, "resolver").Register("hello",
		func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("hello")) })

	var controller string
	a.Dispatcher().AddListener(kernel.EventController, func(e events.Event) {
		controller = e.(*kernel.ControllerEvent).Controller
	}, 0)

	cc := routing.NewControllerCollection()
	cc.Get("/hi", "hello").Bind("greet_hi")
	require.NoError(t, a.Mount("/greet", cc))

	url, err := container.Resolve[*routing.URLGenerator](a.Container, "url_generator").Generate("greet_hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "/greet/hi", url)

	rr := httptest.NewRecorder()
	a.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/greet/hi", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "hello", rr.Body.String())
	assert.Equal(t, "hello", controller)
}

func TestApplication_MountUnknownController(t *testing.T) {
	a := newApp()
	cc := routing.NewControllerCollection()
	cc.Get("/", "missing")

	err := a.Mount("/x", cc)
	assert.ErrorIs(t, err, routing.ErrControllerNotFound)
}

type failingControllers struct{}

var errConnect = errors.New("connect failed")

func (failingControllers) Connect(*app.Application) (*routing.ControllerCollection, error) {
	return nil, errConnect
}

func TestApplication_MountProviderError(t *testing.T) {
	a := newApp()
	assert.ErrorIs(t, a.MountProvider("/x", failingControllers{}), errConnect)
}

func TestApplication_TaggedMiddleware(t *testing.T) {
	a := newApp()
	a.Instance("test.middleware", func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Tagged", "yes")
			next.ServeHTTP(w, r)
		})
	})
	a.Tag([]string{"test.middleware"}, providers.MiddlewareTag)
	a.Router().Get("/", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("root")) })

	rr := httptest.NewRecorder()
	a.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "yes", rr.Header().Get("X-Tagged"))
	assert.Equal(t, "root", rr.Body.String())
}

func TestApplication_BootFailure(t *testing.T) {
	a := newApp()
	require.NoError(t, a.Register(&listenerProvider{bootErr: errors.New("no database")}))

	_, err := a.Handler()
	require.Error(t, err)

	rr := httptest.NewRecorder()
	a.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "no database")
}
