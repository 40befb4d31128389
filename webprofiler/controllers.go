package webprofiler

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"

	gohttp "github.com/km-arc/go-laravel-webprofiler/framework/http"
	"github.com/km-arc/go-laravel-webprofiler/framework/http/validation"
	"github.com/km-arc/go-laravel-webprofiler/framework/routing"
	"github.com/km-arc/go-laravel-webprofiler/profiler"
)

const layoutTemplate = "@WebProfiler/Profiler/layout"

// page is the data every profiler page is rendered with.
type page struct {
	Title   string
	Token   string
	Profile *profiler.Profile
	Panel   string
	Menu    []menuItem
	Content template.HTML
	Data    any
}

type menuItem struct {
	Name   string
	Label  template.HTML
	Active bool
}

// collectorPage is the data a collector template is rendered with.
type collectorPage struct {
	Token     string
	Name      string
	Profile   *profiler.Profile
	Collector map[string]any
}

// ── ProfilerController ───────────────────────────────────────────────────────

// ProfilerController serves the profiler pages.
type ProfilerController struct {
	urls      *routing.URLGenerator
	profiler  *profiler.Profiler
	view      *gohttp.ViewEngine
	templates []TemplateDescriptor
	baseDir   string
}

// NewProfilerController creates the controller. baseDir bounds the files
// Open may show; empty disables it.
func NewProfilerController(urls *routing.URLGenerator, p *profiler.Profiler, view *gohttp.ViewEngine, templates []TemplateDescriptor, baseDir string) *ProfilerController {
	return &ProfilerController{urls: urls, profiler: p, view: view, templates: templates, baseDir: baseDir}
}

// Home redirects to the latest profiles.
func (c *ProfilerController) Home(w http.ResponseWriter, r *http.Request) {
	c.profiler.Disable()
	c.redirect(w, r, "_profiler_search_results", map[string]string{
		"token": "empty",
		"limit": strconv.Itoa(profiler.DefaultLimit),
	})
}

// Panel shows one collector panel of a profile.
func (c *ProfilerController) Panel(w http.ResponseWriter, r *http.Request) {
	c.profiler.Disable()
	req := gohttp.NewRequest(r)
	token := req.RouteParam("token")

	if token == "latest" {
		found, err := c.profiler.Find(r.Context(), profiler.Criteria{Limit: 1})
		if err == nil && len(found) > 0 {
			params := map[string]string{"token": found[0].Token}
			if panel := req.Query("panel"); panel != "" {
				params["panel"] = panel
			}
			c.redirect(w, r, "_profiler", params)
			return
		}
	}

	profile, err := c.profiler.LoadProfile(r.Context(), token)
	if err != nil {
		c.notFound(w, token, err)
		return
	}

	panel := req.Query("panel", "request")
	if !profile.HasCollector(panel) {
		c.notFound(w, token, fmt.Errorf("panel %q is not available for token %q", panel, token))
		return
	}
	tmpl, ok := FindTemplate(c.templates, panel)
	if !ok {
		c.notFound(w, token, fmt.Errorf("panel %q has no template", panel))
		return
	}

	data := collectorPage{Token: token, Name: panel, Profile: profile, Collector: profile.Collectors[panel]}
	content, err := c.view.RenderBlock(tmpl, "panel", data)
	if err != nil && !errors.Is(err, gohttp.ErrTemplateNotFound) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	c.view.ViewWithLayout(w, layoutTemplate, "@WebProfiler/Profiler/panel", page{
		Title:   panel,
		Token:   token,
		Profile: profile,
		Panel:   panel,
		Menu:    c.menu(profile, panel),
		Content: content,
	})
}

// menu renders the menu entry of every collector of profile.
func (c *ProfilerController) menu(profile *profiler.Profile, active string) []menuItem {
	var items []menuItem
	for _, t := range c.templates {
		data, ok := profile.Collector(t.Name)
		if !ok {
			continue
		}
		label, err := c.view.RenderBlock(t.Template, "menu", collectorPage{
			Token:     profile.Token,
			Name:      t.Name,
			Profile:   profile,
			Collector: data,
		})
		if err != nil || strings.TrimSpace(string(label)) == "" {
			continue
		}
		items = append(items, menuItem{Name: t.Name, Label: label, Active: t.Name == active})
	}
	return items
}

type toolbarPage struct {
	Token    string
	Profile  *profiler.Profile
	Panels   []template.HTML
	Position string
}

// Toolbar renders the toolbar fragment of a profile.
func (c *ProfilerController) Toolbar(w http.ResponseWriter, r *http.Request) {
	c.profiler.Disable()
	req := gohttp.NewRequest(r)
	token := req.RouteParam("token")
	if token == "" || token == "empty" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		return
	}

	profile, err := c.profiler.LoadProfile(r.Context(), token)
	if err != nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		return
	}

	tp := toolbarPage{Token: token, Profile: profile, Position: req.Query("position", "bottom")}
	for _, t := range c.templates {
		data, ok := profile.Collector(t.Name)
		if !ok {
			continue
		}
		html, err := c.view.RenderBlock(t.Template, "toolbar", collectorPage{
			Token:     token,
			Name:      t.Name,
			Profile:   profile,
			Collector: data,
		})
		if err != nil {
			continue
		}
		tp.Panels = append(tp.Panels, html)
	}
	c.view.View(w, "@WebProfiler/Profiler/toolbar", tp)
}

// SearchBar renders the search form.
func (c *ProfilerController) SearchBar(w http.ResponseWriter, r *http.Request) {
	c.profiler.Disable()
	c.view.View(w, "@WebProfiler/Profiler/search", searchForm(gohttp.NewRequest(r)))
}

// Search redirects to the results of the submitted search, or straight to
// a profile when a token is given.
func (c *ProfilerController) Search(w http.ResponseWriter, r *http.Request) {
	c.profiler.Disable()
	req := gohttp.NewRequest(r)
	if token := req.Query("_token"); token != "" {
		c.redirect(w, r, "_profiler", map[string]string{"token": token})
		return
	}
	params := map[string]string{"token": "empty"}
	for _, k := range []string{"ip", "method", "status_code", "url", "start", "end", "limit"} {
		if v := req.Query(k); v != "" {
			params[k] = v
		}
	}
	c.redirect(w, r, "_profiler_search_results", params)
}

type searchPage struct {
	Form    searchFormData
	Results []profiler.Summary
	// Errors lists the fields dropped from the criteria.
	Errors []string
}

type searchFormData struct {
	IP, Method, StatusCode, URL, Start, End string
	Limit                                    int
}

var searchRules = validation.Rules{
	"ip":          "nullable|regex:^[0-9a-fA-F:.]+$",
	"method":      "nullable|alpha",
	"status_code": "nullable|integer|gte:100|lte:599",
	"start":       "nullable|date",
	"end":         "nullable|date",
}

func searchForm(req *gohttp.Request) searchFormData {
	return searchFormData{
		IP:         req.Query("ip"),
		Method:     req.Query("method"),
		StatusCode: req.Query("status_code"),
		URL:        req.Query("url"),
		Start:      req.Query("start"),
		End:        req.Query("end"),
		Limit:      req.QueryInt("limit", profiler.DefaultLimit),
	}
}

// criteria validates the form and builds the storage query from the fields
// that passed. The ip filter is a prefix, so partial addresses are allowed.
func (f searchFormData) criteria() (profiler.Criteria, *validation.Errors) {
	v := validation.Make(map[string]string{
		"ip":          f.IP,
		"method":      f.Method,
		"status_code": f.StatusCode,
		"start":       f.Start,
		"end":         f.End,
	}, searchRules)
	valid := v.Valid()

	c := profiler.Criteria{
		IP:     valid["ip"],
		URL:    f.URL,
		Method: valid["method"],
		Limit:  f.Limit,
	}
	c.StatusCode, _ = strconv.Atoi(valid["status_code"])
	c.Start, _ = validation.ParseDate(valid["start"])
	c.End, _ = validation.ParseDate(valid["end"])
	return c, v.Errors()
}

// SearchResults lists the stored profiles matching the query. Invalid
// filters are ignored and reported on the page.
func (c *ProfilerController) SearchResults(w http.ResponseWriter, r *http.Request) {
	c.profiler.Disable()
	req := gohttp.NewRequest(r)
	token := req.RouteParam("token")
	form := searchForm(req)

	criteria, verrs := form.criteria()

	results, err := c.profiler.Find(r.Context(), criteria)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var profile *profiler.Profile
	if token != "empty" {
		profile, _ = c.profiler.LoadProfile(r.Context(), token)
	}
	data := searchPage{Form: form, Results: results}
	for _, f := range verrs.Fields() {
		data.Errors = append(data.Errors, verrs.First(f))
	}
	p := page{
		Title: "Search results",
		Token: token,
		Data:  data,
	}
	if profile != nil {
		p.Profile = profile
		p.Menu = c.menu(profile, "")
	}
	c.view.ViewWithLayout(w, layoutTemplate, "@WebProfiler/Profiler/search_results", p)
}

// Purge deletes every stored profile.
func (c *ProfilerController) Purge(w http.ResponseWriter, r *http.Request) {
	c.profiler.Disable()
	if err := c.profiler.Purge(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	c.redirect(w, r, "_profiler_info", map[string]string{"about": "purge"})
}

// Info shows an informational message: purge, no_token, upload_error.
func (c *ProfilerController) Info(w http.ResponseWriter, r *http.Request) {
	c.profiler.Disable()
	about := gohttp.NewRequest(r).RouteParam("about")
	c.view.ViewWithLayout(w, layoutTemplate, "@WebProfiler/Profiler/info", page{
		Title: "Information",
		Data:  map[string]string{"About": about},
	})
}

// RuntimeInfo describes the Go runtime and the build of the running
// program.
type RuntimeInfo struct {
	GoVersion    string
	GOOS         string
	GOARCH       string
	NumCPU       int
	GOMAXPROCS   int
	NumGoroutine int
	Executable   string
	Build        *debug.BuildInfo
	Env          []string
}

// RuntimeInfo renders the Go runtime and build information.
func (c *ProfilerController) RuntimeInfo(w http.ResponseWriter, r *http.Request) {
	c.profiler.Disable()
	info := RuntimeInfo{
		GoVersion:    runtime.Version(),
		GOOS:         runtime.GOOS,
		GOARCH:       runtime.GOARCH,
		NumCPU:       runtime.NumCPU(),
		GOMAXPROCS:   runtime.GOMAXPROCS(0),
		NumGoroutine: runtime.NumGoroutine(),
	}
	info.Executable, _ = os.Executable()
	info.Build, _ = debug.ReadBuildInfo()
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "GO") {
			info.Env = append(info.Env, kv)
		}
	}
	c.view.ViewWithLayout(w, layoutTemplate, "@WebProfiler/Profiler/runtime_info", page{
		Title: "Runtime information",
		Data:  info,
	})
}

var hiddenPath = regexp.MustCompile(`(^|/)\.`)

type sourceFile struct {
	File  string
	Name  string
	Line  int
	Lines []sourceLine
}

type sourceLine struct {
	Number   int
	Text     string
	Selected bool
}

// Open renders a source file below the base dir with line anchors.
func (c *ProfilerController) Open(w http.ResponseWriter, r *http.Request) {
	c.profiler.Disable()
	req := gohttp.NewRequest(r)
	file := req.Query("file")
	line := req.QueryInt("line", 0)

	path, ok := c.resolveSource(file)
	if !ok {
		http.Error(w, fmt.Sprintf("The file %q cannot be opened.", file), http.StatusNotFound)
		return
	}
	lines, err := readLines(path)
	if err != nil {
		http.Error(w, fmt.Sprintf("The file %q cannot be opened.", file), http.StatusNotFound)
		return
	}

	src := sourceFile{File: path, Name: file, Line: line, Lines: make([]sourceLine, len(lines))}
	for i, text := range lines {
		src.Lines[i] = sourceLine{Number: i + 1, Text: text, Selected: i+1 == line}
	}
	c.view.ViewWithLayout(w, layoutTemplate, "@WebProfiler/Profiler/open", page{
		Title: filepath.Base(path),
		Data:  src,
	})
}

// resolveSource maps a base-dir relative file to a regular file on disk,
// refusing hidden paths and anything outside the base dir.
func (c *ProfilerController) resolveSource(file string) (string, bool) {
	if c.baseDir == "" || file == "" || hiddenPath.MatchString(filepath.ToSlash(file)) {
		return "", false
	}
	path := filepath.Join(c.baseDir, filepath.FromSlash(file))
	if _, ok := relativeTo(c.baseDir, path); !ok {
		return "", false
	}
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return "", false
	}
	return path, true
}

func (c *ProfilerController) notFound(w http.ResponseWriter, token string, err error) {
	c.view.ViewStatus(w, http.StatusNotFound, layoutTemplate, "@WebProfiler/Profiler/info", page{
		Title: "Token not found",
		Token: token,
		Data:  map[string]string{"About": "no_token", "Error": err.Error()},
	})
}

func (c *ProfilerController) redirect(w http.ResponseWriter, r *http.Request, route string, params map[string]string) {
	target, err := c.urls.Generate(route, params)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// ── RouterController ─────────────────────────────────────────────────────────

// RouterController shows how the profiled request was routed.
type RouterController struct {
	profiler *profiler.Profiler
	view     *gohttp.ViewEngine
	matcher  *routing.URLMatcher
	routes   *routing.RouteCollection
}

// NewRouterController creates the controller. matcher may be nil.
func NewRouterController(p *profiler.Profiler, view *gohttp.ViewEngine, matcher *routing.URLMatcher, routes *routing.RouteCollection) *RouterController {
	return &RouterController{profiler: p, view: view, matcher: matcher, routes: routes}
}

type routerPage struct {
	Token   string
	Method  string
	Path    string
	Matched bool
	Match   routing.RouteMatch
	Error   string
	Routes  []routing.Route
}

// Panel renders the routing panel of a profile.
func (c *RouterController) Panel(w http.ResponseWriter, r *http.Request) {
	c.profiler.Disable()
	token := gohttp.NewRequest(r).RouteParam("token")
	if c.matcher == nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("The router panel needs a request matcher."))
		return
	}

	profile, err := c.profiler.LoadProfile(r.Context(), token)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	rp := routerPage{Token: token, Method: profile.Method}
	if data, ok := profile.Collector("request"); ok {
		rp.Path, _ = data["path"].(string)
	}
	if rp.Path == "" {
		rp.Path = profile.URL
	}
	rp.Match, err = c.matcher.Match(rp.Method, rp.Path)
	rp.Matched = err == nil
	if err != nil {
		rp.Error = err.Error()
	}
	if c.routes != nil {
		rp.Routes = c.routes.All()
	}
	c.view.View(w, "@WebProfiler/Router/panel", rp)
}

// ── ExceptionPanelController ─────────────────────────────────────────────────

// ExceptionPanelController renders the exception of a profile.
type ExceptionPanelController struct {
	view     *gohttp.ViewEngine
	profiler *profiler.Profiler
}

// NewExceptionPanelController creates the controller.
func NewExceptionPanelController(view *gohttp.ViewEngine, p *profiler.Profiler) *ExceptionPanelController {
	return &ExceptionPanelController{view: view, profiler: p}
}

// Show renders the exception page, 404 when the profile has none.
func (c *ExceptionPanelController) Show(w http.ResponseWriter, r *http.Request) {
	c.profiler.Disable()
	token := gohttp.NewRequest(r).RouteParam("token")
	profile, err := c.profiler.LoadProfile(r.Context(), token)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	data, ok := profile.Collector("exception")
	if has, _ := data["has_exception"].(bool); !ok || !has {
		http.Error(w, fmt.Sprintf("Profile %q has no exception.", token), http.StatusNotFound)
		return
	}
	c.view.View(w, "@WebProfiler/Exception/show", collectorPage{
		Token:     token,
		Name:      "exception",
		Profile:   profile,
		Collector: data,
	})
}

// CSS serves the exception page stylesheet.
func (c *ExceptionPanelController) CSS(w http.ResponseWriter, r *http.Request) {
	c.profiler.Disable()
	css, err := c.view.Loader().Source("@WebProfiler/Exception/exception.css")
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(css))
}
