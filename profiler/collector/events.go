package collector

import (
	"net/http"

	"github.com/km-arc/go-laravel-webprofiler/framework/events"
	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
)

// EventCollector reports the listeners run by a TraceableDispatcher.
// With any other dispatcher it only lists registered listeners.
type EventCollector struct {
	base
	dispatcher events.Dispatcher
}

func NewEventCollector(d events.Dispatcher) *EventCollector {
	return &EventCollector{dispatcher: d}
}

func (c *EventCollector) Name() string { return "events" }

func (c *EventCollector) Collect(*http.Request, *kernel.Response, error) {}

func (c *EventCollector) LateCollect() {
	td, ok := c.dispatcher.(*events.TraceableDispatcher)
	if !ok {
		registered := map[string][]string{}
		for _, name := range c.dispatcher.EventNames() {
			for _, l := range c.dispatcher.Listeners(name) {
				registered[name] = append(registered[name], l.Name)
			}
		}
		c.set(map[string]any{"registered_listeners": registered})
		return
	}
	called := td.CalledListeners()
	c.set(map[string]any{
		"called_listeners":     called,
		"called_count":         len(called),
		"not_called_listeners": td.NotCalledListeners(),
		"orphaned_events":      td.OrphanedEvents(),
	})
}

func (c *EventCollector) Reset() {
	c.base.Reset()
	if td, ok := c.dispatcher.(*events.TraceableDispatcher); ok {
		td.Reset()
	}
}
