package webprofiler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"html"
	"html/template"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
)

// FileLinkFormatter turns a file and line into a link: an editor URL when
// a format such as "vscode://file/%f:%l" is configured, otherwise the
// profiler's own source viewer for files below the base dir.
//
// The format may end with path mappings, "&from>to", applied to the file
// before formatting:
//
//	vscode://file/%f:%l&/app/>/home/me/project/
type FileLinkFormatter struct {
	format    string
	mappings  [][2]string
	stack     *kernel.RequestStack
	baseDir   string
	urlFormat string
}

// NewFileLinkFormatter creates a formatter. urlFormat is used for the
// source viewer and only while a request is being handled.
func NewFileLinkFormatter(format string, stack *kernel.RequestStack, baseDir, urlFormat string) *FileLinkFormatter {
	f := &FileLinkFormatter{stack: stack, baseDir: baseDir, urlFormat: urlFormat}
	cut := max(strings.LastIndex(format, "%f"), strings.LastIndex(format, "%l"))
	if i := strings.Index(format[max(cut, 0):], "&"); cut >= 0 && i >= 0 {
		f.format = format[:cut+i]
		for _, m := range strings.Split(format[cut+i+1:], "&") {
			if from, to, ok := strings.Cut(m, ">"); ok {
				f.mappings = append(f.mappings, [2]string{from, to})
			}
		}
	} else {
		f.format = format
	}
	return f
}

// Format returns the link to line of file, or "" when none applies.
func (f *FileLinkFormatter) Format(file string, line int) string {
	if f == nil {
		return ""
	}
	if f.format != "" {
		for _, m := range f.mappings {
			if strings.HasPrefix(file, m[0]) {
				file = m[1] + file[len(m[0]):]
				break
			}
		}
		return expandLink(f.format, file, line)
	}
	if f.urlFormat == "" || f.baseDir == "" || f.stack == nil || f.stack.Current() == nil {
		return ""
	}
	rel, ok := relativeTo(f.baseDir, file)
	if !ok {
		return ""
	}
	return expandLink(f.urlFormat, urlQueryEscape(rel), line)
}

func expandLink(format, file string, line int) string {
	return strings.NewReplacer("%f", file, "%l", strconv.Itoa(line)).Replace(format)
}

func urlQueryEscape(s string) string {
	return strings.NewReplacer("%", "%25", "&", "%26", "#", "%23", " ", "%20", "+", "%2B").Replace(s)
}

func relativeTo(base, file string) (string, bool) {
	rel, err := filepath.Rel(base, file)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// ── Template functions ───────────────────────────────────────────────────────

// CodeFuncs are the source-code helpers available to profiler templates.
func CodeFuncs(links *FileLinkFormatter, baseDir, charset string) template.FuncMap {
	return template.FuncMap{
		"file_link": links.Format,
		"file_relative": func(file string) string {
			if rel, ok := relativeTo(baseDir, file); ok && baseDir != "" {
				return rel
			}
			return file
		},
		"format_file": func(file string, line int) template.HTML {
			text := html.EscapeString(file)
			if rel, ok := relativeTo(baseDir, file); ok && baseDir != "" {
				text = `<abbr title="` + html.EscapeString(file) + `">` + html.EscapeString(rel) + `</abbr>`
			}
			if line > 0 {
				text += " at line " + strconv.Itoa(line)
			}
			if href := links.Format(file, line); href != "" {
				return template.HTML(`<a href="` + html.EscapeString(href) + `" title="Click to open this file" class="file_link">` + text + `</a>`)
			}
			return template.HTML(text)
		},
		"abbr_class": func(class string) template.HTML {
			short := class
			if i := strings.LastIndexAny(class, "./"); i >= 0 {
				short = class[i+1:]
			}
			return template.HTML(`<abbr title="` + html.EscapeString(class) + `">` + html.EscapeString(short) + `</abbr>`)
		},
		"file_excerpt": fileExcerpt,
		"charset":      func() string { return charset },
	}
}

// fileExcerpt renders lines around line of file as an ordered list.
func fileExcerpt(file string, line, around int) (template.HTML, error) {
	lines, err := readLines(file)
	if err != nil {
		return "", err
	}
	from, to := max(line-around, 1), min(line+around, len(lines))
	var b strings.Builder
	fmt.Fprintf(&b, `<ol start="%d">`, from)
	for i := from; i <= to; i++ {
		class := ""
		if i == line {
			class = ` class="selected"`
		}
		fmt.Fprintf(&b, `<li%s><a id="line%d"></a><code>%s</code></li>`, class, i, html.EscapeString(lines[i-1]))
	}
	b.WriteString("</ol>")
	return template.HTML(b.String()), nil
}

func readLines(file string) ([]string, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

var logPlaceholder = regexp.MustCompile(`\{([\w.]+)\}`)

// ProfilerFuncs are the formatting helpers of the profiler templates.
func ProfilerFuncs() template.FuncMap {
	return template.FuncMap{
		"profiler_dump": func(v any) template.HTML {
			b, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return template.HTML(`<pre class="sf-dump">` + html.EscapeString(fmt.Sprint(v)) + `</pre>`)
			}
			return template.HTML(`<pre class="sf-dump">` + html.EscapeString(string(b)) + `</pre>`)
		},
		"profiler_dump_log": func(msg string, context any) template.HTML {
			attrs, _ := context.(map[string]any)
			out := logPlaceholder.ReplaceAllStringFunc(html.EscapeString(msg), func(m string) string {
				v, ok := attrs[m[1:len(m)-1]]
				if !ok {
					return m
				}
				return `<span class="dump-inline">` + html.EscapeString(fmt.Sprint(v)) + `</span>`
			})
			return template.HTML(out)
		},
		"format_bytes":    formatBytes,
		"format_duration": formatDuration,
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}

func formatBytes(v any) string {
	n := toFloat(v)
	units := []string{"B", "KiB", "MiB", "GiB"}
	i := 0
	for n >= 1024 && i < len(units)-1 {
		n /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%.0f %s", n, units[i])
	}
	return fmt.Sprintf("%.1f %s", n, units[i])
}

func formatDuration(ms any) string {
	return fmt.Sprintf("%.1f ms", toFloat(ms))
}

// yamlEncode renders v as YAML.
func yamlEncode(v any) (string, error) {
	b, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
