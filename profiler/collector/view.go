package collector

import (
	"net/http"
	"sync"
	"time"

	gohttp "github.com/km-arc/go-laravel-webprofiler/framework/http"
	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
	"github.com/km-arc/go-laravel-webprofiler/framework/stopwatch"
)

// RenderProfile records template renders. Register its Record method with
// ViewEngine.OnRender.
type RenderProfile struct {
	stopwatch *stopwatch.Stopwatch

	mu      sync.Mutex
	renders []gohttp.RenderEvent
}

// NewRenderProfile creates a RenderProfile. Renders also show up as
// "template" stopwatch events when sw is not nil.
func NewRenderProfile(sw *stopwatch.Stopwatch) *RenderProfile {
	return &RenderProfile{stopwatch: sw}
}

func (p *RenderProfile) Record(e gohttp.RenderEvent) {
	p.mu.Lock()
	p.renders = append(p.renders, e)
	p.mu.Unlock()
	if p.stopwatch != nil {
		p.stopwatch.Start(e.Name, "template")
		p.stopwatch.Stop(e.Name)
	}
}

func (p *RenderProfile) Renders() []gohttp.RenderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]gohttp.RenderEvent(nil), p.renders...)
}

func (p *RenderProfile) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.renders = nil
}

// ViewCollector reports the templates rendered during the request.
type ViewCollector struct {
	base
	profile *RenderProfile
}

func NewViewCollector(p *RenderProfile) *ViewCollector {
	return &ViewCollector{profile: p}
}

func (c *ViewCollector) Name() string { return "view" }

func (c *ViewCollector) Collect(*http.Request, *kernel.Response, error) {}

func (c *ViewCollector) LateCollect() {
	type render struct {
		Name       string  `json:"name"`
		DurationMs float64 `json:"duration_ms"`
		Error      string  `json:"error,omitempty"`
	}
	renders := c.profile.Renders()
	out := make([]render, 0, len(renders))
	counts := map[string]int{}
	var total time.Duration
	for _, e := range renders {
		r := render{Name: e.Name, DurationMs: float64(e.Duration.Microseconds()) / 1000}
		if e.Err != nil {
			r.Error = e.Err.Error()
		}
		out = append(out, r)
		counts[e.Name]++
		total += e.Duration
	}
	c.set(map[string]any{
		"renders":        out,
		"render_count":   len(out),
		"template_count": len(counts),
		"templates":      counts,
		"total_time_ms":  float64(total.Microseconds()) / 1000,
	})
}

func (c *ViewCollector) Reset() {
	c.base.Reset()
	c.profile.Reset()
}
