package collector

import (
	"net/http"

	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
	"github.com/km-arc/go-laravel-webprofiler/framework/translation"
)

// TranslationCollector reports the messages recorded by a
// DataCollectorTranslator found in the decoration chain of t.
type TranslationCollector struct {
	base
	translator translation.Translator
	recorder   *translation.DataCollectorTranslator
}

func NewTranslationCollector(t translation.Translator) *TranslationCollector {
	return &TranslationCollector{translator: t, recorder: findRecorder(t)}
}

func findRecorder(t translation.Translator) *translation.DataCollectorTranslator {
	for t != nil {
		if rec, ok := t.(*translation.DataCollectorTranslator); ok {
			return rec
		}
		inner, ok := t.(interface{ Inner() translation.Translator })
		if !ok {
			return nil
		}
		t = inner.Inner()
	}
	return nil
}

func (c *TranslationCollector) Name() string { return "translation" }

func (c *TranslationCollector) Collect(*http.Request, *kernel.Response, error) {}

func (c *TranslationCollector) LateCollect() {
	data := map[string]any{"locale": c.translator.Locale()}
	if lookup, ok := c.translator.(translation.CatalogueLookup); ok {
		data["fallback_locales"] = lookup.FallbackLocales()
	}
	var messages []translation.Message
	if c.recorder != nil {
		messages = c.recorder.CollectedMessages()
		if lookup, ok := c.recorder.Inner().(translation.CatalogueLookup); ok {
			data["fallback_locales"] = lookup.FallbackLocales()
		}
	}
	counts := map[string]int{}
	for _, m := range messages {
		counts[m.State.String()]++
	}
	data["messages"] = messages
	data["count_defined"] = counts[translation.StateDefined.String()]
	data["count_fallback"] = counts[translation.StateEqualsFallback.String()]
	data["count_missing"] = counts[translation.StateMissing.String()]
	c.set(data)
}

func (c *TranslationCollector) Reset() {
	c.base.Reset()
	if c.recorder != nil {
		c.recorder.Reset()
	}
}
