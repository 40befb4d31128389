package webprofiler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gohttp "github.com/km-arc/go-laravel-webprofiler/framework/http"
	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
	"github.com/km-arc/go-laravel-webprofiler/framework/routing"
	"github.com/km-arc/go-laravel-webprofiler/profiler"
)

const htmlDoc = "<html><body><p>content</p></BODY></html>"

func toolbarFixture(t *testing.T, intercept bool, mode ToolbarMode) *ToolbarListener {
	t.Helper()
	loader := gohttp.NewLoader(".html")
	loader.AddPath(Templates("WebProfiler"), "WebProfiler")
	view := gohttp.NewViewEngine(loader)
	view.AddGlobal("charset", "UTF-8")

	routes := routing.NewRouteCollection()
	routes.Add(routing.Route{Method: http.MethodGet, Pattern: "/_profiler/{token}", Name: "_profiler"})
	routes.Add(routing.Route{Method: http.MethodGet, Pattern: "/_profiler/wdt/{token}", Name: "_wdt"})

	return NewToolbarListener(view, intercept, mode, routing.NewURLGenerator(routes), "")
}

func responseEvent(typ kernel.RequestType, res *kernel.Response, headers ...string) *kernel.ResponseEvent {
	req := httptest.NewRequest(http.MethodGet, "/page", nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return &kernel.ResponseEvent{Event: kernel.Event{Request: req, Type: typ}, Response: res}
}

func htmlResponse(token string) *kernel.Response {
	res := kernel.NewResponseWithBody(http.StatusOK, "text/html; charset=utf-8", htmlDoc)
	if token != "" {
		res.Header().Set(profiler.TokenHeader, token)
	}
	return res
}

func TestToolbarListener_Defaults(t *testing.T) {
	l := toolbarFixture(t, false, ToolbarEnabled)
	assert.True(t, l.IsEnabled())
	assert.Equal(t, "bottom", l.position)

	subs := l.SubscribedEvents()
	require.Len(t, subs, 1)
	assert.Equal(t, kernel.EventResponse, subs[0].Event)
	assert.Equal(t, -128, subs[0].Priority)

	assert.False(t, NewToolbarListener(nil, false, ToolbarDisabled, nil, "top").IsEnabled())
}

func TestToolbarListener_Injects(t *testing.T) {
	l := toolbarFixture(t, false, ToolbarEnabled)
	ev := responseEvent(kernel.MainRequest, htmlResponse("abc123"))
	l.onResponse(ev)

	body := ev.Response.Body.String()
	assert.Equal(t, "/_profiler/abc123", ev.Response.Header().Get(TokenLinkHeader))
	assert.Contains(t, body, `id="sfwdtabc123"`)
	assert.Contains(t, body, "wdt")
	assert.Less(t, strings.Index(body, "sfwdt"), strings.Index(body, "</BODY>"))
	assert.True(t, strings.HasPrefix(body, "<html><body><p>content</p>\n"))
	assert.True(t, strings.HasSuffix(body, "</BODY></html>"))
}

func TestToolbarListener_LeavesResponseAlone(t *testing.T) {
	attachment := htmlResponse("abc123")
	attachment.Header().Set("Content-Disposition", `attachment; filename="page.html"`)

	jsonRes := kernel.NewResponseWithBody(http.StatusOK, "application/json", `{"body":"</body>"}`)
	jsonRes.Header().Set(profiler.TokenHeader, "abc123")

	noBody := kernel.NewResponseWithBody(http.StatusOK, "text/html", "<p>fragment</p>")
	noBody.Header().Set(profiler.TokenHeader, "abc123")

	tests := []struct {
		name string
		mode ToolbarMode
		typ  kernel.RequestType
		res  *kernel.Response
	}{
		{"disabled", ToolbarDisabled, kernel.MainRequest, htmlResponse("abc123")},
		{"no token", ToolbarEnabled, kernel.MainRequest, htmlResponse("")},
		{"sub-request", ToolbarEnabled, kernel.SubRequest, htmlResponse("abc123")},
		{"attachment", ToolbarEnabled, kernel.MainRequest, attachment},
		{"not html", ToolbarEnabled, kernel.MainRequest, jsonRes},
		{"no body tag", ToolbarEnabled, kernel.MainRequest, noBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.res.Body.String()
			l := toolbarFixture(t, false, tt.mode)
			l.onResponse(responseEvent(tt.typ, tt.res))
			assert.Equal(t, before, tt.res.Body.String())
		})
	}
}

func TestToolbarListener_SubRequestStillGetsLink(t *testing.T) {
	l := toolbarFixture(t, false, ToolbarEnabled)
	ev := responseEvent(kernel.SubRequest, htmlResponse("sub1"))
	l.onResponse(ev)
	assert.Equal(t, "/_profiler/sub1", ev.Response.Header().Get(TokenLinkHeader))
}

func TestToolbarListener_XHR(t *testing.T) {
	l := toolbarFixture(t, true, ToolbarEnabled)

	ev := responseEvent(kernel.MainRequest, htmlResponse("abc123"), "X-Requested-With", "XMLHttpRequest")
	l.onResponse(ev)
	assert.Equal(t, "1", ev.Response.Header().Get(ToolbarReplaceHeader))
	assert.Equal(t, htmlDoc, ev.Response.Body.String())

	ev = responseEvent(kernel.MainRequest, htmlResponse(""), "X-Requested-With", "XMLHttpRequest")
	l.onResponse(ev)
	assert.Empty(t, ev.Response.Header().Get(ToolbarReplaceHeader))
}

func TestToolbarListener_InterceptRedirect(t *testing.T) {
	redirect := func() *kernel.Response {
		res := kernel.NewResponseWithBody(http.StatusMovedPermanently, "text/html", "")
		res.Header().Set("Location", "/elsewhere")
		res.Header().Set(profiler.TokenHeader, "abc123")
		return res
	}

	l := toolbarFixture(t, true, ToolbarDisabled)
	ev := responseEvent(kernel.MainRequest, redirect())
	l.onResponse(ev)
	assert.Equal(t, http.StatusOK, ev.Response.StatusCode)
	assert.Empty(t, ev.Response.Header().Get("Location"))
	assert.Contains(t, ev.Response.Body.String(), `<a href="/elsewhere">`)
	assert.Contains(t, ev.Response.Body.String(), "301 Moved Permanently")

	l = toolbarFixture(t, false, ToolbarEnabled)
	ev = responseEvent(kernel.MainRequest, redirect())
	l.onResponse(ev)
	assert.Equal(t, http.StatusMovedPermanently, ev.Response.StatusCode)
	assert.Equal(t, "/elsewhere", ev.Response.Header().Get("Location"))
}
