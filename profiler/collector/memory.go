package collector

import (
	"net/http"
	"runtime"

	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
)

// MemoryCollector reports Go heap statistics.
type MemoryCollector struct{ base }

func NewMemoryCollector() *MemoryCollector { return &MemoryCollector{} }

func (c *MemoryCollector) Name() string { return "memory" }

func (c *MemoryCollector) Collect(*http.Request, *kernel.Response, error) { c.LateCollect() }

func (c *MemoryCollector) LateCollect() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	c.set(map[string]any{
		"heap_alloc":   m.HeapAlloc,
		"total_alloc":  m.TotalAlloc,
		"sys":          m.Sys,
		"heap_objects": m.HeapObjects,
		"num_gc":       m.NumGC,
		"goroutines":   runtime.NumGoroutine(),
	})
}
