// Package collector holds the data collectors attached to the profiler.
//
// A collector snapshots one aspect of a request (timing, routing, logs...)
// into a JSON-friendly map. The profiler calls Collect once the response is
// ready, stores Data in the profile, and calls Reset before the next main
// request. Collectors implementing LateDataCollector are asked again right
// before the profile is saved, after the response has been sent.
package collector

import (
	"maps"
	"net/http"
	"sync"

	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
)

// DataCollector snapshots one aspect of a request.
type DataCollector interface {
	Name() string
	// Collect records data for r. res and err may be nil.
	Collect(r *http.Request, res *kernel.Response, err error)
	// Data returns the collected data; values must marshal to JSON.
	Data() map[string]any
	Reset()
}

// LateDataCollector is collected again after the response was sent.
type LateDataCollector interface {
	DataCollector
	LateCollect()
}

// base stores collected data behind a mutex.
type base struct {
	mu   sync.Mutex
	data map[string]any
}

func (b *base) set(kv map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		b.data = make(map[string]any, len(kv))
	}
	maps.Copy(b.data, kv)
}

func (b *base) Data() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]any, len(b.data))
	maps.Copy(out, b.data)
	return out
}

func (b *base) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = nil
}

func headerMap(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
