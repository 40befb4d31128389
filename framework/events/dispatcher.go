// Package events provides the event dispatcher the framework uses to expose
// its request lifecycle, mirroring Symfony's EventDispatcher as used by
// Laravel and Silex.
//
//	d := events.NewDispatcher()
//	d.AddListener("kernel.response", func(e events.Event) {
//	    ...
//	}, 0)
//	d.Dispatch("kernel.response", evt)
package events

import (
	"cmp"
	"reflect"
	"runtime"
	"slices"
	"sync"
)

// Event is anything passed to listeners. Embed BaseEvent to get
// propagation control.
type Event interface {
	StopPropagation()
	IsPropagationStopped() bool
}

// BaseEvent implements Event.
type BaseEvent struct {
	stopped bool
}

func (e *BaseEvent) StopPropagation()           { e.stopped = true }
func (e *BaseEvent) IsPropagationStopped() bool { return e.stopped }

// Listener handles a dispatched event.
type Listener func(e Event)

// Subscription describes one listener of a Subscriber.
type Subscription struct {
	Event    string
	Listener Listener
	Priority int
}

// Subscriber registers several listeners at once.
type Subscriber interface {
	SubscribedEvents() []Subscription
}

// RegisteredListener is a listener as stored by a dispatcher.
type RegisteredListener struct {
	Name     string
	Listener Listener
	Priority int
}

// Dispatcher is implemented by EventDispatcher and TraceableDispatcher.
type Dispatcher interface {
	Dispatch(name string, e Event) Event
	AddListener(name string, l Listener, priority int)
	AddSubscriber(s Subscriber)
	Listeners(name string) []RegisteredListener
	HasListeners(name string) bool
	EventNames() []string
}

// EventDispatcher is the default Dispatcher. Listeners run by descending
// priority, then registration order.
type EventDispatcher struct {
	mu        sync.RWMutex
	listeners map[string][]RegisteredListener
	names     []string
}

// NewDispatcher creates an empty EventDispatcher.
func NewDispatcher() *EventDispatcher {
	return &EventDispatcher{listeners: make(map[string][]RegisteredListener)}
}

// Dispatch calls every listener of name until one stops propagation.
func (d *EventDispatcher) Dispatch(name string, e Event) Event {
	for _, l := range d.Listeners(name) {
		if e.IsPropagationStopped() {
			break
		}
		l.Listener(e)
	}
	return e
}

// AddListener registers l for name.
func (d *EventDispatcher) AddListener(name string, l Listener, priority int) {
	d.add(name, RegisteredListener{Name: ListenerName(l), Listener: l, Priority: priority})
}

// AddSubscriber registers every subscription of s.
func (d *EventDispatcher) AddSubscriber(s Subscriber) {
	for _, sub := range s.SubscribedEvents() {
		d.AddListener(sub.Event, sub.Listener, sub.Priority)
	}
}

func (d *EventDispatcher) add(name string, rl RegisteredListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.listeners[name]; !ok {
		d.names = append(d.names, name)
	}
	list := append(d.listeners[name], rl)
	slices.SortStableFunc(list, func(a, b RegisteredListener) int {
		return cmp.Compare(b.Priority, a.Priority)
	})
	d.listeners[name] = list
}

// Listeners returns the listeners of name in call order.
func (d *EventDispatcher) Listeners(name string) []RegisteredListener {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.listeners[name])
}

// HasListeners reports whether name has at least one listener.
func (d *EventDispatcher) HasListeners(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners[name]) > 0
}

// EventNames returns event names in first-registration order.
func (d *EventDispatcher) EventNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.names)
}

// ListenerName returns the fully qualified function name of l.
func ListenerName(l Listener) string {
	if l == nil {
		return ""
	}
	fn := runtime.FuncForPC(reflect.ValueOf(l).Pointer())
	if fn == nil {
		return "unknown"
	}
	return fn.Name()
}
