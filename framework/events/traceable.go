package events

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/km-arc/go-laravel-webprofiler/framework/stopwatch"
)

// CalledListener records one listener invocation.
type CalledListener struct {
	Event    string        `json:"event"`
	Listener string        `json:"listener"`
	Priority int           `json:"priority"`
	Duration time.Duration `json:"duration"`
	Stopped  bool          `json:"stopped_propagation"`
}

// TraceableDispatcher decorates a Dispatcher and records which listeners
// ran, how long they took, and which events had no listener at all.
type TraceableDispatcher struct {
	inner     Dispatcher
	stopwatch *stopwatch.Stopwatch
	logger    *slog.Logger

	mu       sync.Mutex
	called   []CalledListener
	orphaned []string
}

// NewTraceableDispatcher wraps inner. stopwatch and logger may be nil.
func NewTraceableDispatcher(inner Dispatcher, sw *stopwatch.Stopwatch, logger *slog.Logger) *TraceableDispatcher {
	return &TraceableDispatcher{inner: inner, stopwatch: sw, logger: logger}
}

// Inner returns the wrapped dispatcher.
func (d *TraceableDispatcher) Inner() Dispatcher { return d.inner }

// Dispatch runs the listeners of the wrapped dispatcher, timing each one.
func (d *TraceableDispatcher) Dispatch(name string, e Event) Event {
	listeners := d.inner.Listeners(name)
	if len(listeners) == 0 {
		d.mu.Lock()
		if !slices.Contains(d.orphaned, name) {
			d.orphaned = append(d.orphaned, name)
		}
		d.mu.Unlock()
		return e
	}

	if d.stopwatch != nil {
		d.stopwatch.Start(name, "event_listener")
		defer d.stopwatch.Stop(name)
	}

	for _, l := range listeners {
		if e.IsPropagationStopped() {
			break
		}
		start := time.Now()
		l.Listener(e)
		call := CalledListener{
			Event:    name,
			Listener: l.Name,
			Priority: l.Priority,
			Duration: time.Since(start),
			Stopped:  e.IsPropagationStopped(),
		}
		d.mu.Lock()
		d.called = append(d.called, call)
		d.mu.Unlock()

		if d.logger != nil {
			d.logger.Debug("notified event", "event", name, "listener", l.Name)
			if call.Stopped {
				d.logger.Debug("listener stopped propagation", "event", name, "listener", l.Name)
			}
		}
	}
	return e
}

func (d *TraceableDispatcher) AddListener(name string, l Listener, priority int) {
	d.inner.AddListener(name, l, priority)
}

func (d *TraceableDispatcher) AddSubscriber(s Subscriber) { d.inner.AddSubscriber(s) }

func (d *TraceableDispatcher) Listeners(name string) []RegisteredListener {
	return d.inner.Listeners(name)
}

func (d *TraceableDispatcher) HasListeners(name string) bool { return d.inner.HasListeners(name) }

func (d *TraceableDispatcher) EventNames() []string { return d.inner.EventNames() }

// CalledListeners returns the recorded invocations in call order.
func (d *TraceableDispatcher) CalledListeners() []CalledListener {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.called)
}

// NotCalledListeners returns registered listeners that did not run since
// the last Reset.
func (d *TraceableDispatcher) NotCalledListeners() []CalledListener {
	d.mu.Lock()
	called := make(map[string]bool, len(d.called))
	for _, c := range d.called {
		called[c.Event+"\x00"+c.Listener] = true
	}
	d.mu.Unlock()

	var out []CalledListener
	for _, name := range d.inner.EventNames() {
		for _, l := range d.inner.Listeners(name) {
			if !called[name+"\x00"+l.Name] {
				out = append(out, CalledListener{Event: name, Listener: l.Name, Priority: l.Priority})
			}
		}
	}
	return out
}

// OrphanedEvents returns events dispatched without any listener.
func (d *TraceableDispatcher) OrphanedEvents() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.orphaned)
}

// Reset clears the recorded calls.
func (d *TraceableDispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.called = nil
	d.orphaned = nil
}
