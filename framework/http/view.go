package http

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/sprig/v3"
)

// ErrTemplateNotFound is returned when no registered path holds a template.
var ErrTemplateNotFound = errors.New("view: template not found")

// ── Loader ───────────────────────────────────────────────────────────────────

// Loader finds template sources in namespaced file systems, like Twig's
// FilesystemLoader. The main namespace is "".
type Loader struct {
	mu    sync.RWMutex
	ext   string
	paths map[string][]fs.FS
	order []string
}

// NewLoader creates a Loader appending ext to names that have none.
func NewLoader(ext string) *Loader {
	return &Loader{ext: ext, paths: make(map[string][]fs.FS)}
}

// AddPath appends fsys to the lookup paths of namespace.
func (l *Loader) AddPath(fsys fs.FS, namespace string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.paths[namespace]; !ok {
		l.order = append(l.order, namespace)
	}
	l.paths[namespace] = append(l.paths[namespace], fsys)
}

// PrependPath puts fsys in front of the lookup paths of namespace.
func (l *Loader) PrependPath(fsys fs.FS, namespace string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.paths[namespace]; !ok {
		l.order = append(l.order, namespace)
	}
	l.paths[namespace] = append([]fs.FS{fsys}, l.paths[namespace]...)
}

// AddDir is AddPath for a directory on disk.
func (l *Loader) AddDir(dir, namespace string) {
	l.AddPath(os.DirFS(dir), namespace)
}

// Namespaces returns the registered namespaces in registration order.
func (l *Loader) Namespaces() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.order)
}

// Source returns the contents of the named template.
//
//	loader.Source("@WebProfiler/Profiler/layout")
func (l *Loader) Source(name string) (string, error) {
	ns, file := l.split(name)
	l.mu.RLock()
	paths := slices.Clone(l.paths[ns])
	l.mu.RUnlock()

	for _, fsys := range paths {
		b, err := fs.ReadFile(fsys, file)
		if err == nil {
			return string(b), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("view: reading %s: %w", name, err)
		}
	}
	return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
}

// Exists reports whether name can be loaded.
func (l *Loader) Exists(name string) bool {
	_, err := l.Source(name)
	return err == nil
}

func (l *Loader) split(name string) (namespace, file string) {
	if strings.HasPrefix(name, "@") {
		ns, rest, ok := strings.Cut(name[1:], "/")
		if ok {
			namespace, name = ns, rest
		}
	}
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if path.Ext(name) == "" {
		name += l.ext
	}
	return namespace, name
}

// ── ViewEngine ───────────────────────────────────────────────────────────────

// RenderEvent describes one finished render.
type RenderEvent struct {
	Name     string
	Start    time.Time
	Duration time.Duration
	Err      error
}

// ViewEngine renders html/template files through a Loader.
type ViewEngine struct {
	loader *Loader

	mu        sync.RWMutex
	funcs     template.FuncMap
	observers []func(RenderEvent)
	globals   map[string]any
}

// NewViewEngine creates a ViewEngine reading templates from loader.
func NewViewEngine(loader *Loader) *ViewEngine {
	return &ViewEngine{
		loader:  loader,
		funcs:   sprig.HtmlFuncMap(),
		globals: make(map[string]any),
	}
}

// Loader returns the engine's loader.
func (ve *ViewEngine) Loader() *Loader { return ve.loader }

// AddFunc makes fn available to templates as name. Later calls win.
func (ve *ViewEngine) AddFunc(name string, fn any) {
	ve.mu.Lock()
	defer ve.mu.Unlock()
	ve.funcs[name] = fn
}

// AddFuncs adds every function of fm.
func (ve *ViewEngine) AddFuncs(fm template.FuncMap) {
	ve.mu.Lock()
	defer ve.mu.Unlock()
	for k, v := range fm {
		ve.funcs[k] = v
	}
}

// HasFunc reports whether name is available to templates.
func (ve *ViewEngine) HasFunc(name string) bool {
	ve.mu.RLock()
	defer ve.mu.RUnlock()
	_, ok := ve.funcs[name]
	return ok
}

// AddGlobal exposes value to every template through the "global" function.
func (ve *ViewEngine) AddGlobal(name string, value any) {
	ve.mu.Lock()
	defer ve.mu.Unlock()
	ve.globals[name] = value
}

// OnRender registers fn to be called after every render.
func (ve *ViewEngine) OnRender(fn func(RenderEvent)) {
	ve.mu.Lock()
	defer ve.mu.Unlock()
	ve.observers = append(ve.observers, fn)
}

// Render executes the named template into w. Additional templates are
// parsed into the same set so the first one can call their blocks.
func (ve *ViewEngine) Render(w io.Writer, name string, data any, with ...string) error {
	return ve.execute(w, name, "", data, append([]string{name}, with...))
}

// RenderBlock executes the block defined by the named template.
func (ve *ViewEngine) RenderBlock(name, block string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := ve.execute(&buf, name, block, data, []string{name}); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// RenderWithLayout executes layout after parsing name into the same set,
// so name can override the layout's blocks.
func (ve *ViewEngine) RenderWithLayout(w io.Writer, layout, name string, data any) error {
	return ve.execute(w, name, "", data, []string{layout, name})
}

// RenderString is Render into a string.
func (ve *ViewEngine) RenderString(name string, data any) (string, error) {
	var buf bytes.Buffer
	err := ve.Render(&buf, name, data)
	return buf.String(), err
}

func (ve *ViewEngine) execute(w io.Writer, name, block string, data any, files []string) (err error) {
	start := time.Now()
	defer func() { ve.notify(RenderEvent{Name: name, Start: start, Duration: time.Since(start), Err: err}) }()

	tmpl, err := ve.parse(files)
	if err != nil {
		return err
	}
	if block == "" {
		return tmpl.Execute(w, data)
	}
	if tmpl.Lookup(block) == nil {
		return fmt.Errorf("%w: block %q in %s", ErrTemplateNotFound, block, name)
	}
	return tmpl.ExecuteTemplate(w, block, data)
}

func (ve *ViewEngine) parse(files []string) (*template.Template, error) {
	ve.mu.RLock()
	funcs := make(template.FuncMap, len(ve.funcs)+2)
	for k, v := range ve.funcs {
		funcs[k] = v
	}
	globals := ve.globals
	ve.mu.RUnlock()

	funcs["global"] = func(key string) any {
		ve.mu.RLock()
		defer ve.mu.RUnlock()
		return globals[key]
	}
	funcs["include"] = func(name string, data any) (template.HTML, error) {
		var buf bytes.Buffer
		if err := ve.Render(&buf, name, data); err != nil {
			return "", err
		}
		return template.HTML(buf.String()), nil
	}

	var tmpl *template.Template
	for _, name := range files {
		src, err := ve.loader.Source(name)
		if err != nil {
			return nil, err
		}
		if tmpl == nil {
			tmpl = template.New(name).Funcs(funcs)
		} else {
			tmpl = tmpl.New(name)
		}
		if _, err := tmpl.Parse(src); err != nil {
			return nil, fmt.Errorf("view: parsing %s: %w", name, err)
		}
	}
	return tmpl.Lookup(files[0]), nil
}

func (ve *ViewEngine) notify(ev RenderEvent) {
	ve.mu.RLock()
	observers := slices.Clone(ve.observers)
	ve.mu.RUnlock()
	for _, fn := range observers {
		fn(ev)
	}
}

// View renders a template as an HTML response.
//
//	engine.View(res.Raw(), "home", map[string]any{"title": "Home"})
func (ve *ViewEngine) View(w http.ResponseWriter, name string, data any) {
	ve.write(w, http.StatusOK, func(buf io.Writer) error { return ve.Render(buf, name, data) })
}

// ViewWithLayout renders name inside layout as an HTML response.
func (ve *ViewEngine) ViewWithLayout(w http.ResponseWriter, layout, name string, data any) {
	ve.write(w, http.StatusOK, func(buf io.Writer) error { return ve.RenderWithLayout(buf, layout, name, data) })
}

// ViewStatus is ViewWithLayout with an explicit status code.
func (ve *ViewEngine) ViewStatus(w http.ResponseWriter, status int, layout, name string, data any) {
	ve.write(w, status, func(buf io.Writer) error { return ve.RenderWithLayout(buf, layout, name, data) })
}

func (ve *ViewEngine) write(w http.ResponseWriter, status int, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		code := http.StatusInternalServerError
		msg := "Render error: " + err.Error()
		if errors.Is(err, ErrTemplateNotFound) {
			msg = "Template not found: " + err.Error()
		}
		http.Error(w, msg, code)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
