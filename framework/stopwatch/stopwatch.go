// Package stopwatch times named sections of a request.
//
//	sw := stopwatch.New()
//	sw.Start("controller", "section")
//	...
//	sw.Stop("controller")
package stopwatch

import (
	"sync"
	"time"
)

// Period is one start/stop interval, relative to the stopwatch origin.
type Period struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// Duration of the period.
func (p Period) Duration() time.Duration { return p.End - p.Start }

// Event is a named, categorised series of periods.
type Event struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Periods  []Period `json:"periods"`

	started []time.Duration
}

// Duration returns the sum of all completed periods.
func (e *Event) Duration() time.Duration {
	var total time.Duration
	for _, p := range e.Periods {
		total += p.Duration()
	}
	return total
}

// IsStarted reports whether the event has an open period.
func (e *Event) IsStarted() bool { return len(e.started) > 0 }

// Stopwatch records events. Safe for concurrent use.
type Stopwatch struct {
	mu     sync.Mutex
	origin time.Time
	events map[string]*Event
	order  []string
	now    func() time.Time
}

// New creates a Stopwatch whose origin is now.
func New() *Stopwatch {
	s := &Stopwatch{now: time.Now}
	s.Reset()
	return s
}

// Origin returns the time all periods are relative to.
func (s *Stopwatch) Origin() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.origin
}

// Start opens a period for name. Nested starts of the same name are allowed
// and are closed in LIFO order.
func (s *Stopwatch) Start(name, category string) *Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[name]
	if !ok {
		e = &Event{Name: name, Category: category}
		s.events[name] = e
		s.order = append(s.order, name)
	}
	e.started = append(e.started, s.now().Sub(s.origin))
	return e
}

// Stop closes the latest open period for name. Stopping an event that is
// not started is a no-op and returns nil.
func (s *Stopwatch) Stop(name string) *Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[name]
	if !ok || len(e.started) == 0 {
		return nil
	}
	start := e.started[len(e.started)-1]
	e.started = e.started[:len(e.started)-1]
	e.Periods = append(e.Periods, Period{Start: start, End: s.now().Sub(s.origin)})
	return e
}

// IsStarted reports whether name has an open period.
func (s *Stopwatch) IsStarted(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[name]
	return ok && e.IsStarted()
}

// Event returns the event called name, if any.
func (s *Stopwatch) Event(name string) (*Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[name]
	return e, ok
}

// Events returns copies of all events in start order.
func (s *Stopwatch) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, 0, len(s.order))
	for _, name := range s.order {
		e := *s.events[name]
		e.Periods = make([]Period, len(e.Periods))
		copy(e.Periods, s.events[name].Periods)
		e.started = nil
		out = append(out, e)
	}
	return out
}

// Reset drops all events and moves the origin to now.
func (s *Stopwatch) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.origin = s.now()
	s.events = make(map[string]*Event)
	s.order = nil
}
