package kernel_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-laravel-webprofiler/framework/events"
	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
)

func newKernel() (*kernel.Kernel, *events.EventDispatcher, *kernel.RequestStack) {
	d := events.NewDispatcher()
	stack := kernel.NewRequestStack()
	return kernel.New(d, stack, nil), d, stack
}

func serve(k *kernel.Kernel, h http.HandlerFunc) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	k.Middleware(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/hello", nil))
	return rr
}

func TestKernel_EventOrder(t *testing.T) {
	k, d, _ := newKernel()
	var seen []string
	for _, name := range []string{kernel.EventRequest, kernel.EventResponse, kernel.EventException, kernel.EventTerminate} {
		d.AddListener(name, func(events.Event) { seen = append(seen, name) }, 0)
	}

	rr := serve(k, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, "handler")
		_, _ = w.Write([]byte("hi"))
	})

	assert.Equal(t, "hi", rr.Body.String())
	assert.Equal(t, []string{kernel.EventRequest, "handler", kernel.EventResponse, kernel.EventTerminate}, seen)
}

func TestKernel_RequestListenerShortCircuits(t *testing.T) {
	k, d, _ := newKernel()
	d.AddListener(kernel.EventRequest, func(e events.Event) {
		e.(*kernel.RequestEvent).Response = kernel.NewResponseWithBody(http.StatusForbidden, "text/plain", "nope")
	}, 0)

	called := false
	rr := serve(k, func(http.ResponseWriter, *http.Request) { called = true })

	assert.False(t, called)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "nope", rr.Body.String())
}

func TestKernel_ResponseListenerRewrites(t *testing.T) {
	k, d, _ := newKernel()
	d.AddListener(kernel.EventResponse, func(e events.Event) {
		ev := e.(*kernel.ResponseEvent)
		ev.Response.Header().Set("X-Seen", "1")
		ev.Response.Body.WriteString(" world")
	}, 0)

	rr := serve(k, func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("hello")) })
	assert.Equal(t, "hello world", rr.Body.String())
	assert.Equal(t, "1", rr.Header().Get("X-Seen"))
}

func TestKernel_Exceptions(t *testing.T) {
	t.Run("http error keeps its status", func(t *testing.T) {
		k, d, _ := newKernel()
		var got error
		d.AddListener(kernel.EventException, func(e events.Event) { got = e.(*kernel.ExceptionEvent).Err }, 0)

		rr := serve(k, func(http.ResponseWriter, *http.Request) {
			kernel.Throw(&kernel.HTTPError{Status: http.StatusNotFound, Message: "no such user"})
		})
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "Not Found", rr.Body.String())
		assert.EqualError(t, got, "404 no such user")
	})

	t.Run("panic becomes a 500", func(t *testing.T) {
		k, d, _ := newKernel()
		var got error
		d.AddListener(kernel.EventException, func(e events.Event) { got = e.(*kernel.ExceptionEvent).Err }, 0)

		cause := errors.New("db gone")
		rr := serve(k, func(http.ResponseWriter, *http.Request) { panic(cause) })
		assert.Equal(t, http.StatusInternalServerError, rr.Code)

		var pe *kernel.PanicError
		require.ErrorAs(t, got, &pe)
		assert.NotEmpty(t, pe.Stack)
		assert.ErrorIs(t, got, cause)
	})

	t.Run("listener supplies the response", func(t *testing.T) {
		k, d, _ := newKernel()
		d.AddListener(kernel.EventException, func(e events.Event) {
			e.(*kernel.ExceptionEvent).Response = kernel.NewResponseWithBody(http.StatusServiceUnavailable, "text/html", "<p>later</p>")
		}, 0)

		rr := serve(k, func(http.ResponseWriter, *http.Request) { panic("nil map") })
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Equal(t, "<p>later</p>", rr.Body.String())
	})

	t.Run("abort handler is re-panicked", func(t *testing.T) {
		k, _, _ := newKernel()
		assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
			serve(k, func(http.ResponseWriter, *http.Request) { panic(http.ErrAbortHandler) })
		})
	})
}

func TestKernel_SubRequest(t *testing.T) {
	k, d, stack := newKernel()
	var types []kernel.RequestType
	terminated := 0
	d.AddListener(kernel.EventResponse, func(e events.Event) { types = append(types, e.(*kernel.ResponseEvent).Type) }, 0)
	d.AddListener(kernel.EventTerminate, func(events.Event) { terminated++ }, 0)

	var parent, main *http.Request
	rr := serve(k, func(w http.ResponseWriter, r *http.Request) {
		main = r
		k.SubRequest(w, r.Clone(r.Context()), http.HandlerFunc(func(w http.ResponseWriter, sub *http.Request) {
			parent = stack.Parent()
			assert.Equal(t, kernel.SubRequest, kernel.RequestTypeOf(sub))
			_, ok := kernel.StartTime(sub)
			assert.True(t, ok)
			_, _ = w.Write([]byte("fragment"))
		}))
	})

	assert.Equal(t, "fragment", rr.Body.String())
	assert.Equal(t, []kernel.RequestType{kernel.SubRequest, kernel.MainRequest}, types)
	assert.Equal(t, 1, terminated, "only the main request terminates")
	assert.Same(t, main, parent)
	assert.Nil(t, stack.Current(), "stack is empty once the request is done")
}

func TestRequestTypeOf_DefaultsToMain(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, kernel.MainRequest, kernel.RequestTypeOf(r))
	_, ok := kernel.StartTime(r)
	assert.False(t, ok)
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusTeapot, kernel.StatusCode(&kernel.HTTPError{Status: http.StatusTeapot}))
	assert.Equal(t, http.StatusInternalServerError, kernel.StatusCode(errors.New("boom")))
	assert.Equal(t, http.StatusInternalServerError, kernel.StatusCode(&kernel.PanicError{Value: "x"}))
	assert.Nil(t, (&kernel.PanicError{Value: "x"}).Unwrap())
}

func TestRequestStack(t *testing.T) {
	s := kernel.NewRequestStack()
	assert.Nil(t, s.Pop())
	assert.Nil(t, s.Main())

	a := httptest.NewRequest(http.MethodGet, "/a", nil)
	b := httptest.NewRequest(http.MethodGet, "/b", nil)
	s.Push(a)
	assert.Nil(t, s.Parent())
	s.Push(b)

	assert.Same(t, a, s.Main())
	assert.Same(t, b, s.Current())
	assert.Same(t, a, s.Parent())
	assert.Same(t, b, s.Pop())
	assert.Same(t, a, s.Current())
}

func TestResponse(t *testing.T) {
	res := kernel.NewResponse()
	assert.Empty(t, res.ContentType())

	res.WriteHeader(http.StatusAccepted)
	res.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusAccepted, res.StatusCode, "first WriteHeader wins")

	_, _ = res.Write([]byte("<html><body>hi</body></html>"))
	assert.True(t, res.IsHTML(), "sniffed as html")

	res.Header().Set("Content-Disposition", "Attachment; filename=x.html")
	assert.True(t, res.IsAttachment())

	redirect := kernel.NewResponseWithBody(http.StatusFound, "text/plain", "")
	assert.False(t, redirect.IsRedirect(), "no Location")
	redirect.Header().Set("Location", "/next")
	assert.True(t, redirect.IsRedirect())

	rr := httptest.NewRecorder()
	rr.Header().Set("Content-Length", "999")
	require.NoError(t, kernel.NewResponseWithBody(http.StatusCreated, "application/json", `{"ok":true}`).Send(rr))
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Empty(t, rr.Header().Get("Content-Length"))
	assert.JSONEq(t, `{"ok":true}`, rr.Body.String())
}
