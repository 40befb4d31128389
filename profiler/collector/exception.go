package collector

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
)

// ExceptionCollector records the error that aborted the request, if any.
type ExceptionCollector struct{ base }

func NewExceptionCollector() *ExceptionCollector { return &ExceptionCollector{} }

func (c *ExceptionCollector) Name() string { return "exception" }

func (c *ExceptionCollector) Collect(_ *http.Request, _ *kernel.Response, err error) {
	if err == nil {
		c.set(map[string]any{"has_exception": false})
		return
	}
	data := map[string]any{
		"has_exception": true,
		"message":       err.Error(),
		"class":         fmt.Sprintf("%T", err),
		"status_code":   kernel.StatusCode(err),
	}
	var perr *kernel.PanicError
	if errors.As(err, &perr) {
		data["trace"] = string(perr.Stack)
		if inner := perr.Unwrap(); inner != nil {
			data["class"] = fmt.Sprintf("%T", inner)
			data["message"] = inner.Error()
		}
	}
	c.set(data)
}
