package collector

import (
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/km-arc/go-laravel-webprofiler/framework/config"
	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
)

// ConfigCollector reports the application and Go runtime configuration.
type ConfigCollector struct {
	base
	cfg     *config.Config
	version string
}

// NewConfigCollector creates a ConfigCollector. cfg may be nil.
func NewConfigCollector(cfg *config.Config, version string) *ConfigCollector {
	return &ConfigCollector{cfg: cfg, version: version}
}

func (c *ConfigCollector) Name() string { return "config" }

func (c *ConfigCollector) Collect(*http.Request, *kernel.Response, error) {
	data := map[string]any{
		"app_version": c.version,
		"go_version":  runtime.Version(),
		"goos":        runtime.GOOS,
		"goarch":      runtime.GOARCH,
		"num_cpu":     runtime.NumCPU(),
		"gomaxprocs":  runtime.GOMAXPROCS(0),
	}
	if c.cfg != nil {
		data["app_name"] = c.cfg.App.Name
		data["env"] = c.cfg.App.Env
		data["debug"] = c.cfg.App.Debug
		data["charset"] = c.cfg.App.Charset
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		data["module"] = info.Main.Path
		deps := make(map[string]string, len(info.Deps))
		for _, d := range info.Deps {
			deps[d.Path] = d.Version
		}
		data["dependencies"] = deps
	}
	c.set(data)
}
