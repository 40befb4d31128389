// Package translation translates messages from in-memory catalogues with
// locale fallback, and can record every translation it serves.
package translation

import (
	"sort"
	"strings"
	"sync"
)

// DefaultDomain is used when no domain is given.
const DefaultDomain = "messages"

// Translator translates message ids.
type Translator interface {
	// Trans translates id. Empty domain and locale mean the defaults.
	// Parameters replace their keys verbatim, e.g. {"%name%": "Ada"}.
	Trans(id string, params map[string]string, domain, locale string) string
	Locale() string
	SetLocale(locale string)
}

// CatalogueLookup is implemented by translators that can tell where a
// translation came from.
type CatalogueLookup interface {
	// Lookup returns the raw message and the locale it was found in.
	Lookup(id, domain, locale string) (message, foundLocale string, ok bool)
	FallbackLocales() []string
}

// MessageTranslator is a Translator over in-memory catalogues.
type MessageTranslator struct {
	mu        sync.RWMutex
	locale    string
	fallbacks []string
	// locale → domain → id → message
	catalogues map[string]map[string]map[string]string
}

// NewMessageTranslator creates a translator for locale, falling back to
// the given locales in order.
func NewMessageTranslator(locale string, fallbacks ...string) *MessageTranslator {
	return &MessageTranslator{
		locale:     locale,
		fallbacks:  fallbacks,
		catalogues: make(map[string]map[string]map[string]string),
	}
}

// AddMessages merges messages into the catalogue of locale and domain.
func (t *MessageTranslator) AddMessages(locale, domain string, messages map[string]string) {
	if domain == "" {
		domain = DefaultDomain
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.catalogues[locale] == nil {
		t.catalogues[locale] = make(map[string]map[string]string)
	}
	if t.catalogues[locale][domain] == nil {
		t.catalogues[locale][domain] = make(map[string]string)
	}
	for id, msg := range messages {
		t.catalogues[locale][domain][id] = msg
	}
}

func (t *MessageTranslator) Locale() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.locale
}

func (t *MessageTranslator) SetLocale(locale string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.locale = locale
}

func (t *MessageTranslator) FallbackLocales() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.fallbacks...)
}

// Locales returns every locale with a catalogue, sorted.
func (t *MessageTranslator) Locales() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.catalogues))
	for l := range t.catalogues {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func (t *MessageTranslator) Lookup(id, domain, locale string) (string, string, bool) {
	if domain == "" {
		domain = DefaultDomain
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if locale == "" {
		locale = t.locale
	}
	for _, l := range append([]string{locale}, t.fallbacks...) {
		if msg, ok := t.catalogues[l][domain][id]; ok {
			return msg, l, true
		}
	}
	return "", "", false
}

func (t *MessageTranslator) Trans(id string, params map[string]string, domain, locale string) string {
	msg, _, ok := t.Lookup(id, domain, locale)
	if !ok {
		msg = id
	}
	return Replace(msg, params)
}

// Replace substitutes params in msg.
func Replace(msg string, params map[string]string) string {
	if len(params) == 0 {
		return msg
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, k, v)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}
