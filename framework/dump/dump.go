// Package dump prints Go values for debugging, like Symfony's VarDumper.
//
//	dump.Dump(user, r.Header)
//
// By default values go to stderr. A Handler installed with SetHandler
// receives them instead; the web profiler uses that to show dumps in its
// panel.
package dump

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
)

// Data is a cloned value, safe to keep after the original changes.
type Data struct {
	Type  string    `json:"type"`
	Value string    `json:"value"`
	File  string    `json:"file,omitempty"`
	Line  int       `json:"line,omitempty"`
	Time  time.Time `json:"time"`
}

// Cloner snapshots values into Data.
type Cloner struct {
	cfg *spew.ConfigState
}

// NewCloner creates a Cloner descending at most maxDepth levels; 0 means
// unlimited.
func NewCloner(maxDepth int) *Cloner {
	return &Cloner{cfg: &spew.ConfigState{
		Indent:                  "  ",
		MaxDepth:                maxDepth,
		DisablePointerAddresses: true,
		DisableCapacities:       true,
		SortKeys:                true,
	}}
}

// Clone snapshots v.
func (c *Cloner) Clone(v any) *Data {
	return &Data{
		Type:  fmt.Sprintf("%T", v),
		Value: c.cfg.Sdump(v),
		Time:  time.Now(),
	}
}

// Dumper writes Data somewhere.
type Dumper interface {
	Dump(d *Data) error
}

// CliDumper writes Data as text.
type CliDumper struct {
	w io.Writer
}

// NewCliDumper creates a CliDumper writing to w, or stderr when w is nil.
func NewCliDumper(w io.Writer) *CliDumper {
	if w == nil {
		w = os.Stderr
	}
	return &CliDumper{w: w}
}

func (d *CliDumper) Dump(data *Data) error {
	if data.File != "" {
		if _, err := fmt.Fprintf(d.w, "%s:%d:\n", data.File, data.Line); err != nil {
			return err
		}
	}
	_, err := io.WriteString(d.w, data.Value)
	return err
}

// ── Global handler ───────────────────────────────────────────────────────────

// Handler receives dumped values with the location of the Dump call.
type Handler func(v any, file string, line int)

var (
	mu      sync.RWMutex
	handler Handler
)

// SetHandler installs h and returns the previous handler. A nil h restores
// the default stderr output.
func SetHandler(h Handler) Handler {
	mu.Lock()
	defer mu.Unlock()
	prev := handler
	handler = h
	return prev
}

// Dump passes every value to the installed handler.
func Dump(vars ...any) {
	_, file, line, _ := runtime.Caller(1)
	mu.RLock()
	h := handler
	mu.RUnlock()
	if h == nil {
		h = defaultHandler
	}
	for _, v := range vars {
		h(v, file, line)
	}
}

var stderrCloner = NewCloner(0)

func defaultHandler(v any, file string, line int) {
	d := stderrCloner.Clone(v)
	d.File, d.Line = file, line
	_ = NewCliDumper(nil).Dump(d)
}

// ── Listener ─────────────────────────────────────────────────────────────────

// Collector stores dumped values.
type Collector interface {
	Dump(d *Data)
}

// Listener routes Dump calls to a Collector once configured.
type Listener struct {
	cloner    *Cloner
	collector Collector
}

// NewListener creates a Listener.
func NewListener(cloner *Cloner, collector Collector) *Listener {
	return &Listener{cloner: cloner, collector: collector}
}

// Configure installs the listener as the global Handler.
func (l *Listener) Configure() {
	SetHandler(func(v any, file string, line int) {
		d := l.cloner.Clone(v)
		d.File, d.Line = file, line
		l.collector.Dump(d)
	})
}
