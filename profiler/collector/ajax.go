package collector

import (
	"net/http"

	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
)

// AjaxCollector has no server-side data; the toolbar script tracks XHR
// calls in the browser.
type AjaxCollector struct{ base }

func NewAjaxCollector() *AjaxCollector { return &AjaxCollector{} }

func (c *AjaxCollector) Name() string { return "ajax" }

func (c *AjaxCollector) Collect(*http.Request, *kernel.Response, error) {}
