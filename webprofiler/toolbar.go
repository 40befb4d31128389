package webprofiler

import (
	"bytes"
	"net/http"

	"github.com/km-arc/go-laravel-webprofiler/framework/events"
	gohttp "github.com/km-arc/go-laravel-webprofiler/framework/http"
	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
	"github.com/km-arc/go-laravel-webprofiler/framework/routing"
	"github.com/km-arc/go-laravel-webprofiler/profiler"
)

// TokenLinkHeader carries the profiler URL of a profiled response.
const TokenLinkHeader = "X-Debug-Token-Link"

// ToolbarReplaceHeader tells the toolbar of the page that sent an XHR to
// reload itself with the XHR's profile.
const ToolbarReplaceHeader = "Symfony-Debug-Toolbar-Replace"

// ToolbarMode switches toolbar injection.
type ToolbarMode int

const (
	ToolbarDisabled ToolbarMode = iota
	ToolbarEnabled
)

// ToolbarListener injects the debug toolbar into HTML responses.
type ToolbarListener struct {
	view               *gohttp.ViewEngine
	interceptRedirects bool
	mode               ToolbarMode
	urls               *routing.URLGenerator
	position           string
}

// NewToolbarListener creates a listener. urls may be nil, in which case no
// links are generated.
func NewToolbarListener(view *gohttp.ViewEngine, interceptRedirects bool, mode ToolbarMode, urls *routing.URLGenerator, position string) *ToolbarListener {
	if position == "" {
		position = "bottom"
	}
	return &ToolbarListener{
		view:               view,
		interceptRedirects: interceptRedirects,
		mode:               mode,
		urls:               urls,
		position:           position,
	}
}

// IsEnabled reports whether the toolbar is injected.
func (l *ToolbarListener) IsEnabled() bool { return l.mode == ToolbarEnabled }

func (l *ToolbarListener) SubscribedEvents() []events.Subscription {
	return []events.Subscription{
		{Event: kernel.EventResponse, Listener: l.onResponse, Priority: -128},
	}
}

func (l *ToolbarListener) onResponse(e events.Event) {
	ev, ok := e.(*kernel.ResponseEvent)
	if !ok || ev.Response == nil {
		return
	}
	res := ev.Response
	token := res.Header().Get(profiler.TokenHeader)

	if token != "" && l.urls != nil {
		if link, err := l.urls.Generate("_profiler", map[string]string{"token": token}); err == nil {
			res.Header().Set(TokenLinkHeader, link)
		}
	}

	if !ev.IsMainRequest() {
		return
	}

	if gohttp.NewRequest(ev.Request).IsXHR() {
		if token != "" {
			res.Header().Set(ToolbarReplaceHeader, "1")
		}
		return
	}

	if token != "" && l.interceptRedirects && res.IsRedirect() {
		l.interceptRedirect(res)
		return
	}

	if l.mode != ToolbarEnabled || token == "" || res.IsRedirect() || !res.IsHTML() || res.IsAttachment() {
		return
	}
	l.inject(res, token)
}

type redirectPage struct {
	Location   string
	StatusCode int
	StatusText string
}

func (l *ToolbarListener) interceptRedirect(res *kernel.Response) {
	page := redirectPage{
		Location:   res.Header().Get("Location"),
		StatusCode: res.StatusCode,
		StatusText: http.StatusText(res.StatusCode),
	}
	body, err := l.view.RenderString("@WebProfiler/Profiler/toolbar_redirect", page)
	if err != nil {
		return
	}
	res.Header().Del("Location")
	res.Header().Set("Content-Type", "text/html; charset=utf-8")
	res.StatusCode = http.StatusOK
	res.Body.Reset()
	res.Body.WriteString(body)
}

type toolbarJS struct {
	Token      string
	ToolbarURL string
	Position   string
}

// inject puts the toolbar loader right before the last </body>.
func (l *ToolbarListener) inject(res *kernel.Response, token string) {
	content := res.Body.Bytes()
	pos := bytes.LastIndex(bytes.ToLower(content), []byte("</body>"))
	if pos < 0 {
		return
	}
	var wdt string
	if l.urls != nil {
		wdt = l.urls.MustGenerate("_wdt", map[string]string{"token": token})
	}
	snippet, err := l.view.RenderString("@WebProfiler/Profiler/toolbar_js", toolbarJS{
		Token:      token,
		ToolbarURL: wdt,
		Position:   l.position,
	})
	if err != nil {
		return
	}
	var out bytes.Buffer
	out.Grow(len(content) + len(snippet) + 1)
	out.Write(content[:pos])
	out.WriteString("\n" + snippet)
	out.Write(content[pos:])
	res.Body.Reset()
	res.Body.Write(out.Bytes())
}
