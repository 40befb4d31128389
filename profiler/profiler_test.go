package profiler_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-laravel-webprofiler/framework/events"
	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
	"github.com/km-arc/go-laravel-webprofiler/framework/log"
	"github.com/km-arc/go-laravel-webprofiler/profiler"
	"github.com/km-arc/go-laravel-webprofiler/profiler/collector"
)

// countingCollector records how often it was collected, late or not.
type countingCollector struct {
	name string

	mu    sync.Mutex
	calls int
	late  int
	err   error
}

func (c *countingCollector) Name() string { return c.name }

func (c *countingCollector) Collect(_ *http.Request, _ *kernel.Response, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.err = err
}

func (c *countingCollector) LateCollect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.late++
}

func (c *countingCollector) Data() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := map[string]any{"calls": c.calls, "late": c.late}
	if c.err != nil {
		d["error"] = c.err.Error()
	}
	return d
}

func (c *countingCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls, c.late, c.err = 0, 0, nil
}

var _ collector.LateDataCollector = (*countingCollector)(nil)

func newProfiler(t *testing.T) *profiler.Profiler {
	t.Helper()
	s, err := profiler.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	return profiler.New(s, nil)
}

func TestProfiler_Collectors(t *testing.T) {
	p := newProfiler(t)
	p.Add(&countingCollector{name: "a"})
	p.Add(&countingCollector{name: "b"})
	replacement := &countingCollector{name: "a"}
	p.Add(replacement)

	all := p.All()
	require.Len(t, all, 2)
	assert.Same(t, replacement, all[0], "replaced in place")
	assert.Equal(t, "b", all[1].Name())

	assert.True(t, p.Has("b"))
	_, err := p.Get("missing")
	assert.ErrorIs(t, err, profiler.ErrUnknownCollector)
}

func TestProfiler_CollectAndSave(t *testing.T) {
	ctx := context.Background()
	p := newProfiler(t)
	c := &countingCollector{name: "count"}
	p.Add(c)

	req := httptest.NewRequest(http.MethodPost, "http://example.com/form?x=1", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	res := kernel.NewResponseWithBody(http.StatusCreated, "text/plain", "ok")

	profile := p.Collect(req, res, errors.New("boom"))
	require.NotNil(t, profile)
	assert.Len(t, profile.Token, 6)
	assert.Equal(t, profile.Token, res.Header().Get(profiler.TokenHeader))
	assert.Equal(t, "192.0.2.7", profile.IP)
	assert.Equal(t, http.MethodPost, profile.Method)
	assert.Equal(t, "http://example.com/form?x=1", profile.URL)
	assert.Equal(t, http.StatusCreated, profile.StatusCode)
	assert.Equal(t, map[string]any{"calls": 1, "late": 0, "error": "boom"}, profile.Collectors["count"])

	require.NoError(t, p.SaveProfile(ctx, profile))
	assert.Equal(t, 1, c.late, "late collectors run on save")

	loaded, err := p.LoadProfileFromResponse(ctx, res)
	require.NoError(t, err)
	data, ok := loaded.Collector("count")
	require.True(t, ok)
	assert.Equal(t, float64(1), data["late"])

	_, err = p.LoadProfileFromResponse(ctx, kernel.NewResponse())
	assert.ErrorIs(t, err, profiler.ErrProfileNotFound)

	found, err := p.Find(ctx, profiler.Criteria{Method: "POST"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, profile.Token, found[0].Token)

	require.NoError(t, p.Purge(ctx))
	_, err = p.LoadProfile(ctx, profile.Token)
	assert.ErrorIs(t, err, profiler.ErrProfileNotFound)
}

func TestProfiler_DisableAndReset(t *testing.T) {
	p := newProfiler(t)
	c := &countingCollector{name: "count"}
	p.Add(c)

	p.Disable()
	assert.False(t, p.IsEnabled())
	res := kernel.NewResponse()
	assert.Nil(t, p.Collect(httptest.NewRequest(http.MethodGet, "/", nil), res, nil))
	assert.Empty(t, res.Header().Get(profiler.TokenHeader))
	assert.Zero(t, c.calls)

	p.Collect(httptest.NewRequest(http.MethodGet, "/", nil), nil, nil)
	p.Reset()
	assert.True(t, p.IsEnabled())

	require.NotNil(t, p.Collect(httptest.NewRequest(http.MethodGet, "/", nil), nil, nil))
	assert.Equal(t, 1, c.calls)
	p.Reset()
	assert.Zero(t, c.calls)
}

func TestProfile_Children(t *testing.T) {
	parent := profiler.NewProfile("parent")
	child := profiler.NewProfile("child")
	parent.AddChild(child)
	parent.AddChild(child)

	assert.Equal(t, []string{"child"}, parent.Children)
	assert.Equal(t, "parent", child.Parent)
	assert.Equal(t, "parent", child.Summary().Parent)

	parent.Collectors["b"] = map[string]any{}
	parent.Collectors["a"] = map[string]any{}
	assert.Equal(t, []string{"a", "b"}, parent.CollectorNames())
	assert.True(t, parent.HasCollector("a"))
	assert.False(t, parent.HasCollector("c"))
}

// ── Listener ─────────────────────────────────────────────────────────────────

type listenerFixture struct {
	profiler   *profiler.Profiler
	dispatcher *events.EventDispatcher
	kernel     *kernel.Kernel
	collector  *countingCollector
}

func newListenerFixture(t *testing.T, opts profiler.ListenerOptions) *listenerFixture {
	t.Helper()
	p := newProfiler(t)
	c := &countingCollector{name: "count"}
	p.Add(c)

	d := events.NewDispatcher()
	stack := kernel.NewRequestStack()
	d.AddSubscriber(profiler.NewListener(p, stack, opts, nil))
	return &listenerFixture{profiler: p, dispatcher: d, kernel: kernel.New(d, stack, nil), collector: c}
}

func (f *listenerFixture) serve(target string, h http.HandlerFunc) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.kernel.Middleware(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func ok(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) }

func TestListener_SavesMainRequestProfile(t *testing.T) {
	f := newListenerFixture(t, profiler.ListenerOptions{})
	rr := f.serve("/hello", ok)

	token := rr.Header().Get(profiler.TokenHeader)
	require.NotEmpty(t, token)
	profile, err := f.profiler.LoadProfile(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, profile.StatusCode)
	assert.Zero(t, f.collector.calls, "reset after terminate")
}

func TestListener_SubRequestsBecomeChildren(t *testing.T) {
	f := newListenerFixture(t, profiler.ListenerOptions{})
	rr := f.serve("/main", func(w http.ResponseWriter, r *http.Request) {
		f.kernel.SubRequest(w, r.Clone(r.Context()), http.HandlerFunc(ok))
	})

	token := rr.Header().Get(profiler.TokenHeader)
	require.NotEmpty(t, token)
	main, err := f.profiler.LoadProfile(context.Background(), token)
	require.NoError(t, err)
	require.Len(t, main.Children, 1)

	child, err := f.profiler.LoadProfile(context.Background(), main.Children[0])
	require.NoError(t, err)
	assert.Equal(t, token, child.Parent)
}

func TestListener_SubRequestKeepsItsOwnLateData(t *testing.T) {
	f := newListenerFixture(t, profiler.ListenerOptions{})
	logger := slog.New(log.NewDebugHandler(nil, log.NewDebugBuffer(0)))
	f.profiler.Add(collector.NewLoggerCollector(logger))

	rr := f.serve("/main", func(w http.ResponseWriter, r *http.Request) {
		f.kernel.SubRequest(w, r.Clone(r.Context()), http.HandlerFunc(ok))
		logger.Warn("slow fragment")
	})

	ctx := context.Background()
	main, err := f.profiler.LoadProfile(ctx, rr.Header().Get(profiler.TokenHeader))
	require.NoError(t, err)
	require.Len(t, main.Children, 1)
	child, err := f.profiler.LoadProfile(ctx, main.Children[0])
	require.NoError(t, err)

	assert.EqualValues(t, 1, main.Collectors["logger"]["warning_count"])
	assert.EqualValues(t, 0, child.Collectors["logger"]["count"])
	assert.EqualValues(t, 0, child.Collectors["logger"]["warning_count"])
	assert.EqualValues(t, 1, child.Collectors["count"]["late"], "late collected once")
}

func TestListener_OnlyMainRequests(t *testing.T) {
	f := newListenerFixture(t, profiler.ListenerOptions{OnlyMainRequests: true})
	rr := f.serve("/main", func(w http.ResponseWriter, r *http.Request) {
		f.kernel.SubRequest(w, r.Clone(r.Context()), http.HandlerFunc(ok))
	})

	main, err := f.profiler.LoadProfile(context.Background(), rr.Header().Get(profiler.TokenHeader))
	require.NoError(t, err)
	assert.Empty(t, main.Children)
}

func TestListener_OnlyExceptions(t *testing.T) {
	f := newListenerFixture(t, profiler.ListenerOptions{OnlyExceptions: true})

	rr := f.serve("/fine", ok)
	assert.Empty(t, rr.Header().Get(profiler.TokenHeader))

	rr = f.serve("/broken", func(http.ResponseWriter, *http.Request) {
		kernel.Throw(&kernel.HTTPError{Status: http.StatusTeapot, Message: "short and stout"})
	})
	assert.Equal(t, http.StatusTeapot, rr.Code)
	token := rr.Header().Get(profiler.TokenHeader)
	require.NotEmpty(t, token)

	profile, err := f.profiler.LoadProfile(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "418 short and stout", profile.Collectors["count"]["error"])
}

func TestListener_Matcher(t *testing.T) {
	f := newListenerFixture(t, profiler.ListenerOptions{
		Matcher: profiler.RequestMatcherFunc(func(r *http.Request) bool { return r.URL.Path != "/health" }),
	})
	assert.Empty(t, f.serve("/health", ok).Header().Get(profiler.TokenHeader))
	assert.NotEmpty(t, f.serve("/hello", ok).Header().Get(profiler.TokenHeader))
}

func TestListener_SaveFailureIsLogged(t *testing.T) {
	s, err := profiler.OpenSQLiteStorage(":memory:")
	require.NoError(t, err)
	p := profiler.New(s, nil)
	d := events.NewDispatcher()
	stack := kernel.NewRequestStack()
	d.AddSubscriber(profiler.NewListener(p, stack, profiler.ListenerOptions{}, nil))
	k := kernel.New(d, stack, nil)

	require.NoError(t, s.Close())
	rr := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		k.Middleware(http.HandlerFunc(ok)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, "ok", rr.Body.String())
}
