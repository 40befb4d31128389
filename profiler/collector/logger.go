package collector

import (
	"log/slog"
	"net/http"

	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
	"github.com/km-arc/go-laravel-webprofiler/framework/log"
)

// LoggerCollector reports the records captured by the logger's debug
// buffer. Loggers without one yield an empty panel.
type LoggerCollector struct {
	base
	logger log.DebugLogger
}

// NewLoggerCollector creates a LoggerCollector for logger.
func NewLoggerCollector(logger *slog.Logger) *LoggerCollector {
	dl, _ := log.DebugLoggerOf(logger)
	return &LoggerCollector{logger: dl}
}

func (c *LoggerCollector) Name() string { return "logger" }

func (c *LoggerCollector) Collect(*http.Request, *kernel.Response, error) {}

func (c *LoggerCollector) LateCollect() {
	if c.logger == nil {
		c.set(map[string]any{"logs": []log.Record{}, "error_count": 0, "warning_count": 0})
		return
	}
	records := c.logger.Records()
	counts := map[string]int{}
	for _, r := range records {
		counts[r.Level]++
	}
	c.set(map[string]any{
		"logs":          records,
		"count":         len(records),
		"error_count":   counts[slog.LevelError.String()],
		"warning_count": counts[slog.LevelWarn.String()],
		"levels":        counts,
	})
}

func (c *LoggerCollector) Reset() {
	c.base.Reset()
	if c.logger != nil {
		c.logger.Clear()
	}
}
