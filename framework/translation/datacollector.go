package translation

import "sync"

// MessageState tells how a message was translated.
type MessageState int

const (
	StateDefined MessageState = iota
	StateEqualsFallback
	StateMissing
)

func (s MessageState) String() string {
	switch s {
	case StateDefined:
		return "defined"
	case StateEqualsFallback:
		return "fallback"
	default:
		return "missing"
	}
}

// Message is a translation recorded by DataCollectorTranslator.
type Message struct {
	Locale      string            `json:"locale"`
	Domain      string            `json:"domain"`
	ID          string            `json:"id"`
	Translation string            `json:"translation"`
	Parameters  map[string]string `json:"parameters,omitempty"`
	State       MessageState      `json:"state"`
	// FallbackLocale is set when State is StateEqualsFallback.
	FallbackLocale string `json:"fallback_locale,omitempty"`
}

// DataCollectorTranslator decorates a Translator, recording every message
// it translates. Translations are returned unchanged.
type DataCollectorTranslator struct {
	inner Translator

	mu       sync.Mutex
	messages []Message
}

// NewDataCollectorTranslator wraps t.
func NewDataCollectorTranslator(t Translator) *DataCollectorTranslator {
	return &DataCollectorTranslator{inner: t}
}

// Inner returns the decorated translator.
func (d *DataCollectorTranslator) Inner() Translator { return d.inner }

func (d *DataCollectorTranslator) Locale() string          { return d.inner.Locale() }
func (d *DataCollectorTranslator) SetLocale(locale string) { d.inner.SetLocale(locale) }

func (d *DataCollectorTranslator) Trans(id string, params map[string]string, domain, locale string) string {
	out := d.inner.Trans(id, params, domain, locale)
	d.collect(id, params, domain, locale, out)
	return out
}

// Lookup implements CatalogueLookup by asking the decorated translator.
// Without one, every message counts as defined in locale.
func (d *DataCollectorTranslator) Lookup(id, domain, locale string) (string, string, bool) {
	if lookup, ok := d.inner.(CatalogueLookup); ok {
		return lookup.Lookup(id, domain, locale)
	}
	return id, locale, true
}

// FallbackLocales implements CatalogueLookup.
func (d *DataCollectorTranslator) FallbackLocales() []string {
	if lookup, ok := d.inner.(CatalogueLookup); ok {
		return lookup.FallbackLocales()
	}
	return nil
}

// CollectedMessages returns the recorded messages in call order.
func (d *DataCollectorTranslator) CollectedMessages() []Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Message(nil), d.messages...)
}

// Reset drops the recorded messages.
func (d *DataCollectorTranslator) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = nil
}

func (d *DataCollectorTranslator) collect(id string, params map[string]string, domain, locale, translation string) {
	if domain == "" {
		domain = DefaultDomain
	}
	if locale == "" {
		locale = d.inner.Locale()
	}
	m := Message{
		Locale:      locale,
		Domain:      domain,
		ID:          id,
		Translation: translation,
		Parameters:  params,
		State:       StateDefined,
	}
	if lookup, ok := d.inner.(CatalogueLookup); ok {
		_, found, ok := lookup.Lookup(id, domain, locale)
		switch {
		case !ok:
			m.State = StateMissing
		case found != locale:
			m.State = StateEqualsFallback
			m.FallbackLocale = found
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, m)
}

var _ CatalogueLookup = (*DataCollectorTranslator)(nil)
