package collector

import (
	"net/http"
	"sync"

	"github.com/km-arc/go-laravel-webprofiler/framework/form"
	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
)

// FormCollector records the forms built during the request. It implements
// form.DataCollector.
type FormCollector struct {
	base
	extractor *form.DataExtractor

	mu    sync.Mutex
	forms map[string]map[string]any // form ID → merged data
	order []string
}

func NewFormCollector(extractor *form.DataExtractor) *FormCollector {
	return &FormCollector{extractor: extractor, forms: make(map[string]map[string]any)}
}

func (c *FormCollector) Name() string { return "form" }

func (c *FormCollector) CollectConfiguration(f *form.Form) {
	c.merge(f, c.extractor.ExtractConfiguration(f))
}

func (c *FormCollector) CollectDefaultData(f *form.Form) {
	c.merge(f, c.extractor.ExtractDefaultData(f))
}

func (c *FormCollector) CollectSubmittedData(f *form.Form) {
	c.merge(f, c.extractor.ExtractSubmittedData(f))
}

func (c *FormCollector) merge(f *form.Form, kv map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := f.ID()
	entry, ok := c.forms[id]
	if !ok {
		entry = make(map[string]any)
		c.forms[id] = entry
		c.order = append(c.order, id)
	}
	for k, v := range kv {
		entry[k] = v
	}
}

func (c *FormCollector) Collect(*http.Request, *kernel.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	forms := make([]map[string]any, 0, len(c.order))
	nbErrors := 0
	for _, id := range c.order {
		entry := c.forms[id]
		if errs, ok := entry["errors"].([]string); ok {
			nbErrors += len(errs)
		}
		forms = append(forms, entry)
	}
	c.set(map[string]any{"forms": forms, "count": len(forms), "nb_errors": nbErrors})
}

func (c *FormCollector) Reset() {
	c.base.Reset()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forms = make(map[string]map[string]any)
	c.order = nil
}
