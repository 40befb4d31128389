package webprofiler

import (
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
)

// baseDir returns the longest directory shared by the program's entry
// point and this package, e.g. the module root when both live in one
// checkout. It is empty when they share nothing.
func baseDir() string {
	_, self, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	return commonDir(entryFile(), filepath.Dir(self))
}

// entryFile returns the source file of the outermost non-runtime frame:
// main.main, or the test function under go test.
func entryFile() string {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(1, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	var file string
	for {
		f, more := frames.Next()
		if f.File != "" && !strings.HasPrefix(f.Function, "runtime.") && !strings.HasPrefix(f.Function, "testing.") {
			file = f.File
		}
		if !more {
			break
		}
	}
	if abs, err := filepath.EvalSymlinks(file); err == nil {
		file = abs
	}
	return file
}

// commonDir returns the shared leading path elements of a and b.
func commonDir(a, b string) string {
	if a == "" || b == "" {
		return ""
	}
	as := strings.Split(filepath.ToSlash(a), "/")
	bs := strings.Split(filepath.ToSlash(b), "/")
	var shared []string
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] != bs[i] {
			break
		}
		shared = append(shared, as[i])
	}
	return filepath.FromSlash(strings.Join(shared, "/"))
}

// templatesPath returns the on-disk template directory of this package,
// located through the source file of the toolbar listener.
func templatesPath() string {
	fn := runtime.FuncForPC(reflect.ValueOf((*ToolbarListener).onResponse).Pointer())
	if fn == nil {
		return ""
	}
	file, _ := fn.FileLine(fn.Entry())
	if file == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(file), "templates", "WebProfiler")
}
