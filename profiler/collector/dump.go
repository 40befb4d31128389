package collector

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/km-arc/go-laravel-webprofiler/framework/dump"
	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
	"github.com/km-arc/go-laravel-webprofiler/framework/stopwatch"
)

// DumpCollector keeps the values passed to dump.Dump during the request.
// It implements dump.Collector.
type DumpCollector struct {
	base
	stopwatch *stopwatch.Stopwatch
	charset   string
	stack     *kernel.RequestStack
	dumper    dump.Dumper
	logger    *slog.Logger

	mu    sync.Mutex
	dumps []dumpEntry
}

type dumpEntry struct {
	*dump.Data
	Path string `json:"path,omitempty"`
}

// NewDumpCollector creates a DumpCollector. When dumper is not nil every
// value is also written to it. sw, stack and logger may be nil.
func NewDumpCollector(sw *stopwatch.Stopwatch, charset string, stack *kernel.RequestStack, dumper dump.Dumper, logger *slog.Logger) *DumpCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &DumpCollector{stopwatch: sw, charset: charset, stack: stack, dumper: dumper, logger: logger}
}

func (c *DumpCollector) Name() string { return "dump" }

func (c *DumpCollector) Dump(d *dump.Data) {
	if c.stopwatch != nil {
		c.stopwatch.Start("dump", "debug")
		defer c.stopwatch.Stop("dump")
	}
	entry := dumpEntry{Data: d}
	if c.stack != nil {
		if r := c.stack.Current(); r != nil {
			entry.Path = r.URL.Path
		}
	}
	c.mu.Lock()
	c.dumps = append(c.dumps, entry)
	c.mu.Unlock()

	if c.dumper != nil {
		if err := c.dumper.Dump(d); err != nil {
			c.logger.Warn("unable to write dump", "path", entry.Path, "error", err)
		}
	}
}

func (c *DumpCollector) Collect(*http.Request, *kernel.Response, error) { c.LateCollect() }

func (c *DumpCollector) LateCollect() {
	c.mu.Lock()
	dumps := append([]dumpEntry(nil), c.dumps...)
	c.mu.Unlock()
	c.set(map[string]any{"dumps": dumps, "count": len(dumps), "charset": c.charset})
}

func (c *DumpCollector) Reset() {
	c.base.Reset()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dumps = nil
}
