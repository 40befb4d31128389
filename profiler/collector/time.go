package collector

import (
	"net/http"
	"time"

	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
	"github.com/km-arc/go-laravel-webprofiler/framework/stopwatch"
)

// TimeCollector reports the request duration and the stopwatch events
// recorded while handling it.
type TimeCollector struct {
	base
	stopwatch *stopwatch.Stopwatch
	start     time.Time
}

// NewTimeCollector creates a TimeCollector. sw may be nil.
func NewTimeCollector(sw *stopwatch.Stopwatch) *TimeCollector {
	return &TimeCollector{stopwatch: sw}
}

func (c *TimeCollector) Name() string { return "time" }

func (c *TimeCollector) Collect(r *http.Request, _ *kernel.Response, _ error) {
	start, ok := kernel.StartTime(r)
	if !ok {
		start = time.Now()
	}
	c.mu.Lock()
	c.start = start
	c.mu.Unlock()
	c.set(map[string]any{"start_time": start})
}

func (c *TimeCollector) LateCollect() {
	c.mu.Lock()
	start := c.start
	c.mu.Unlock()

	data := map[string]any{"duration_ms": msSince(start)}
	if c.stopwatch != nil {
		data["events"] = c.stopwatch.Events()
	}
	c.set(data)
}

func (c *TimeCollector) Reset() {
	c.base.Reset()
	if c.stopwatch != nil {
		c.stopwatch.Reset()
	}
}

func msSince(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(time.Since(t).Microseconds()) / 1000
}
