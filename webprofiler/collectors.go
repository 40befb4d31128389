package webprofiler

import (
	"slices"

	"github.com/km-arc/go-laravel-webprofiler/framework/container"
	"github.com/km-arc/go-laravel-webprofiler/profiler/collector"
)

// Features switches the optional integrations. A feature is only wired
// when it is on and the host also binds the services it needs.
type Features struct {
	Form        bool // needs form.resolved_type_factory
	View        bool // template render profiling
	Dump        bool // needs var_dumper.cli_dumper
	Ajax        bool
	Security    bool // needs security.token_storage
	Translation bool // needs translator
	Pprof       bool // net/http/pprof under {prefix}/debug
}

// AllFeatures returns Features with everything on.
func AllFeatures() Features {
	return Features{
		Form:        true,
		View:        true,
		Dump:        true,
		Ajax:        true,
		Security:    true,
		Translation: true,
		Pprof:       true,
	}
}

// CollectorFactory builds a collector from the container.
type CollectorFactory func(c *container.Container) collector.DataCollector

// CollectorFactories is the ordered set of collectors the profiler is
// built with. Setting an existing name replaces its factory in place.
type CollectorFactories struct {
	names     []string
	factories map[string]CollectorFactory
}

// NewCollectorFactories creates an empty set.
func NewCollectorFactories() *CollectorFactories {
	return &CollectorFactories{factories: make(map[string]CollectorFactory)}
}

func (s *CollectorFactories) Set(name string, f CollectorFactory) {
	if _, ok := s.factories[name]; !ok {
		s.names = append(s.names, name)
	}
	s.factories[name] = f
}

func (s *CollectorFactories) Get(name string) (CollectorFactory, bool) {
	f, ok := s.factories[name]
	return f, ok
}

func (s *CollectorFactories) Has(name string) bool {
	_, ok := s.factories[name]
	return ok
}

// Names returns the collector names in insertion order.
func (s *CollectorFactories) Names() []string { return slices.Clone(s.names) }

func (s *CollectorFactories) Len() int { return len(s.names) }

// TemplateDescriptor names the template showing a collector's data. The
// template defines the blocks "toolbar", "menu" and "panel"; any may be
// missing.
type TemplateDescriptor struct {
	Name     string
	Template string
}

// FindTemplate returns the template of the collector called name.
func FindTemplate(templates []TemplateDescriptor, name string) (string, bool) {
	for _, t := range templates {
		if t.Name == name {
			return t.Template, true
		}
	}
	return "", false
}
