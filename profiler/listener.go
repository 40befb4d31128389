package profiler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"go.uber.org/multierr"

	"github.com/km-arc/go-laravel-webprofiler/framework/events"
	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
)

// RequestMatcher selects the requests to profile.
type RequestMatcher interface {
	Matches(r *http.Request) bool
}

// RequestMatcherFunc adapts a function to RequestMatcher.
type RequestMatcherFunc func(r *http.Request) bool

func (f RequestMatcherFunc) Matches(r *http.Request) bool { return f(r) }

// ListenerOptions tune which requests the Listener profiles.
type ListenerOptions struct {
	// Matcher, when set, must accept a request for it to be profiled.
	Matcher          RequestMatcher
	OnlyExceptions   bool
	OnlyMainRequests bool
}

// Listener collects a profile on kernel.response and saves every profile
// of the main request on kernel.terminate. Sub-request profiles are late
// collected as soon as their response is ready.
//
// A Listener tracks one main request at a time: it shares the RequestStack
// and the collectors, so concurrent main requests interleave their data.
type Listener struct {
	profiler *Profiler
	stack    *kernel.RequestStack
	opts     ListenerOptions
	logger   *slog.Logger

	mu         sync.Mutex
	exceptions map[*http.Request]error
	profiles   map[*http.Request]*Profile
	parents    map[*http.Request]*http.Request
	order      []*http.Request
}

// NewListener creates a Listener. logger may be nil.
func NewListener(p *Profiler, stack *kernel.RequestStack, opts ListenerOptions, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		profiler:   p,
		stack:      stack,
		opts:       opts,
		logger:     logger,
		exceptions: make(map[*http.Request]error),
		profiles:   make(map[*http.Request]*Profile),
		parents:    make(map[*http.Request]*http.Request),
	}
}

func (l *Listener) SubscribedEvents() []events.Subscription {
	return []events.Subscription{
		{Event: kernel.EventException, Listener: l.onException},
		{Event: kernel.EventResponse, Listener: l.onResponse, Priority: -100},
		{Event: kernel.EventTerminate, Listener: l.onTerminate, Priority: -1024},
	}
}

func (l *Listener) onException(e events.Event) {
	ev, ok := e.(*kernel.ExceptionEvent)
	if !ok || (l.opts.OnlyMainRequests && !ev.IsMainRequest()) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exceptions[ev.Request] = ev.Err
}

func (l *Listener) onResponse(e events.Event) {
	ev, ok := e.(*kernel.ResponseEvent)
	if !ok || (l.opts.OnlyMainRequests && !ev.IsMainRequest()) {
		return
	}

	l.mu.Lock()
	err := l.exceptions[ev.Request]
	delete(l.exceptions, ev.Request)
	l.mu.Unlock()

	if l.opts.OnlyExceptions && err == nil {
		return
	}
	if l.opts.Matcher != nil && !l.opts.Matcher.Matches(ev.Request) {
		return
	}
	profile := l.profiler.Collect(ev.Request, ev.Response, err)
	if profile == nil {
		return
	}
	if !ev.IsMainRequest() {
		// The parent keeps running; its logs and timings are not ours.
		l.profiler.LateCollect(profile)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.profiles[ev.Request] = profile
	l.order = append(l.order, ev.Request)
	if l.stack != nil {
		l.parents[ev.Request] = l.stack.Parent()
	}
}

func (l *Listener) onTerminate(e events.Event) {
	ev, ok := e.(*kernel.TerminateEvent)
	if !ok {
		return
	}

	l.mu.Lock()
	profiles := make([]*Profile, 0, len(l.order))
	for _, req := range l.order {
		profile := l.profiles[req]
		if parent, ok := l.profiles[l.parents[req]]; ok {
			parent.AddChild(profile)
		}
		profiles = append(profiles, profile)
	}
	l.exceptions = make(map[*http.Request]error)
	l.profiles = make(map[*http.Request]*Profile)
	l.parents = make(map[*http.Request]*http.Request)
	l.order = nil
	l.mu.Unlock()

	ctx := context.WithoutCancel(ev.Request.Context())
	var errs error
	for _, p := range profiles {
		errs = multierr.Append(errs, l.profiler.SaveProfile(ctx, p))
	}
	if errs != nil {
		l.logger.Warn("unable to store the profiler information",
			"failed", len(multierr.Errors(errs)),
			"error", errs)
	}
	l.profiler.Reset()
}
