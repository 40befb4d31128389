package collector

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/km-arc/go-laravel-webprofiler/framework/events"
	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
)

// RequestCollector records the request, the response, and the controller
// that handled the main request. It subscribes to kernel.controller.
type RequestCollector struct {
	base

	mu         sync.Mutex
	controller string
	route      string
}

func NewRequestCollector() *RequestCollector { return &RequestCollector{} }

func (c *RequestCollector) Name() string { return "request" }

func (c *RequestCollector) SubscribedEvents() []events.Subscription {
	return []events.Subscription{
		{Event: kernel.EventController, Listener: c.onController},
	}
}

func (c *RequestCollector) onController(e events.Event) {
	ce, ok := e.(*kernel.ControllerEvent)
	if !ok || !ce.IsMainRequest() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller, c.route = ce.Controller, ce.Route
}

func (c *RequestCollector) Collect(r *http.Request, res *kernel.Response, _ error) {
	c.mu.Lock()
	controller, route := c.controller, c.route
	c.mu.Unlock()

	data := map[string]any{
		"method":          r.Method,
		"path":            r.URL.Path,
		"query":           r.URL.Query(),
		"request_headers": headerMap(r.Header),
		"remote_addr":     r.RemoteAddr,
		"protocol":        r.Proto,
		"controller":      controller,
		"route":           route,
		"request_id":      middleware.GetReqID(r.Context()),
	}
	cookies := make(map[string]string)
	for _, ck := range r.Cookies() {
		cookies[ck.Name] = ck.Value
	}
	data["request_cookies"] = cookies

	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		data["route_pattern"] = rctx.RoutePattern()
		params := make(map[string]string)
		for i, k := range rctx.URLParams.Keys {
			if k != "*" && i < len(rctx.URLParams.Values) {
				params[k] = rctx.URLParams.Values[i]
			}
		}
		data["route_params"] = params
	}
	if res != nil {
		data["status_code"] = res.StatusCode
		data["status_text"] = http.StatusText(res.StatusCode)
		data["content_type"] = res.ContentType()
		data["response_headers"] = headerMap(res.Header())
	}
	c.set(data)
}

func (c *RequestCollector) Reset() {
	c.base.Reset()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller, c.route = "", ""
}
