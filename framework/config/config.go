package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the central typed configuration struct.
type Config struct {
	App      AppConfig
	Log      LogConfig
	Profiler ProfilerConfig
}

type AppConfig struct {
	Name    string
	Env     string // local | production | testing
	Debug   bool
	URL     string
	Port    string
	Key     string
	Charset string
}

type LogConfig struct {
	Level  string // debug | info | warn | error
	Format string // logfmt | json
	// BufferSize bounds the records kept for the logger collector.
	BufferSize int
}

type ProfilerConfig struct {
	Enabled          bool
	MountPrefix      string
	CacheDir         string
	DSN              string // file:/path or sqlite:/path; empty means file: + CacheDir
	OnlyExceptions   bool
	OnlyMainRequests bool
	FileLinkFormat   string
	Toolbar          ToolbarConfig
}

type ToolbarConfig struct {
	Enable             bool
	Position           string // bottom | top
	InterceptRedirects bool
}

// Values returns the profiler settings as container parameters, ready to
// be passed to ProviderRegistry.Register.
func (p ProfilerConfig) Values() map[string]any {
	v := map[string]any{
		"profiler.mount_prefix":                          p.MountPrefix,
		"profiler.cache_dir":                             p.CacheDir,
		"profiler.only_exceptions":                       p.OnlyExceptions,
		"profiler.only_main_requests":                    p.OnlyMainRequests,
		"web_profiler.debug_toolbar.enable":              p.Toolbar.Enable,
		"web_profiler.debug_toolbar.position":            p.Toolbar.Position,
		"web_profiler.debug_toolbar.intercept_redirects": p.Toolbar.InterceptRedirects,
	}
	if p.DSN != "" {
		v["profiler.dsn"] = p.DSN
	}
	if p.FileLinkFormat != "" {
		v["code.file_link_format"] = p.FileLinkFormat
	}
	return v
}

var defaults = map[string]any{
	"app.name":    "GoLaravel",
	"app.env":     "local",
	"app.debug":   true,
	"app.url":     "http://localhost",
	"app.port":    "8000",
	"app.key":     "",
	"app.charset": "UTF-8",

	"log.level":       "info",
	"log.format":      "logfmt",
	"log.buffer_size": 500,

	"profiler.enabled":            true,
	"profiler.mount_prefix":       "/_profiler",
	"profiler.cache_dir":          filepath.Join("storage", "profiler"),
	"profiler.dsn":                "",
	"profiler.only_exceptions":    false,
	"profiler.only_main_requests": false,
	"profiler.file_link_format":   "",

	"debug_toolbar.enable":              true,
	"debug_toolbar.position":            "bottom",
	"debug_toolbar.intercept_redirects": false,
}

// Load reads .env (if present) and populates a Config from environment
// variables. Keys map to variables by upper-casing and replacing dots:
// profiler.cache_dir is read from PROFILER_CACHE_DIR.
//
//	cfg := config.Load()
func Load(envFiles ...string) *Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist in production
	_ = godotenv.Load(files...)

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{
		App: AppConfig{
			Name:    v.GetString("app.name"),
			Env:     v.GetString("app.env"),
			Debug:   v.GetBool("app.debug"),
			URL:     v.GetString("app.url"),
			Port:    v.GetString("app.port"),
			Key:     v.GetString("app.key"),
			Charset: v.GetString("app.charset"),
		},
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			BufferSize: v.GetInt("log.buffer_size"),
		},
		Profiler: ProfilerConfig{
			Enabled:          v.GetBool("profiler.enabled"),
			MountPrefix:      v.GetString("profiler.mount_prefix"),
			CacheDir:         v.GetString("profiler.cache_dir"),
			DSN:              v.GetString("profiler.dsn"),
			OnlyExceptions:   v.GetBool("profiler.only_exceptions"),
			OnlyMainRequests: v.GetBool("profiler.only_main_requests"),
			FileLinkFormat:   v.GetString("profiler.file_link_format"),
			Toolbar: ToolbarConfig{
				Enable:             v.GetBool("debug_toolbar.enable"),
				Position:           v.GetString("debug_toolbar.position"),
				InterceptRedirects: v.GetBool("debug_toolbar.intercept_redirects"),
			},
		},
	}
}

// Get returns a raw env value, falling back to defaultVal.
func Get(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// GetInt returns an int env value.
func GetInt(key string, defaultVal int) int {
	i, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return i
}

// GetBool returns a bool env value.
func GetBool(key string, defaultVal bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return b
}
