package webprofiler

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"

	gohttp "github.com/km-arc/go-laravel-webprofiler/framework/http"
)

//go:embed templates
var embedded embed.FS

// Templates returns the built-in templates of namespace: WebProfiler,
// Debug or Security.
func Templates(namespace string) fs.FS {
	sub, err := fs.Sub(embedded, "templates/"+namespace)
	if err != nil {
		panic(err)
	}
	return sub
}

// bundleOverrides maps the override directories below
// {baseDir}/templates/bundles to the namespace they override.
var bundleOverrides = []struct{ dir, namespace string }{
	{"WebProfilerBundle", "WebProfiler"},
	{"SecurityBundle", "Security"},
	{"DebugBundle", "Debug"},
}

// addTemplatePaths registers the profiler namespaces on loader. A
// templates directory on disk and the application's bundle overrides take
// precedence over the embedded templates.
func addTemplatePaths(loader *gohttp.Loader, templatesPath, base string) {
	loader.AddPath(Templates("WebProfiler"), "WebProfiler")
	loader.AddPath(Templates("Debug"), "Debug")
	loader.AddPath(Templates("Security"), "Security")

	if isDir(templatesPath) {
		loader.PrependPath(os.DirFS(templatesPath), "WebProfiler")
	}
	if base == "" {
		return
	}
	for _, o := range bundleOverrides {
		dir := filepath.Join(base, "templates", "bundles", o.dir)
		if isDir(dir) {
			loader.PrependPath(os.DirFS(dir), o.namespace)
		}
	}
}

func isDir(path string) bool {
	if path == "" {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
