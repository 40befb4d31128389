package collector

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
)

// RouterCollector reports the matched route and whether the response
// redirected.
type RouterCollector struct{ base }

func NewRouterCollector() *RouterCollector { return &RouterCollector{} }

func (c *RouterCollector) Name() string { return "router" }

func (c *RouterCollector) Collect(r *http.Request, res *kernel.Response, _ error) {
	data := map[string]any{"redirect": false}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		data["route_pattern"] = rctx.RoutePattern()
	}
	if res != nil && res.IsRedirect() {
		data["redirect"] = true
		data["url"] = res.Header().Get("Location")
		data["status_code"] = res.StatusCode
	}
	c.set(data)
}
