package routing

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/km-arc/go-laravel-webprofiler/framework/container"
	"github.com/km-arc/go-laravel-webprofiler/framework/events"
	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
)

// ErrControllerNotFound is returned when a route target cannot be resolved.
var ErrControllerNotFound = errors.New("routing: controller not found")

// ControllerResolver turns a route target into a handler.
type ControllerResolver interface {
	Resolve(target string) (http.Handler, error)
}

// HandlerResolver resolves targets registered by name. It is the default
// "resolver" binding.
type HandlerResolver struct {
	mu       sync.RWMutex
	handlers map[string]http.Handler
}

// NewHandlerResolver creates an empty resolver.
func NewHandlerResolver() *HandlerResolver {
	return &HandlerResolver{handlers: make(map[string]http.Handler)}
}

// Register makes h available under name.
func (r *HandlerResolver) Register(name string, h http.HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

func (r *HandlerResolver) Resolve(target string) (http.Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[target]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrControllerNotFound, target)
	}
	return h, nil
}

var serviceTarget = regexp.MustCompile(`^[\w.\-]+:[A-Z]\w*$`)

// ServiceControllerResolver resolves "service:Method" targets against the
// container, falling back to the wrapped resolver for anything else.
//
// The service is looked up when the route is hit, not when it is mounted,
// so controllers stay lazy. Methods must have the signature
// func(http.ResponseWriter, *http.Request).
type ServiceControllerResolver struct {
	inner ControllerResolver
	app   *container.Container
}

// NewServiceControllerResolver wraps inner.
func NewServiceControllerResolver(inner ControllerResolver, app *container.Container) *ServiceControllerResolver {
	return &ServiceControllerResolver{inner: inner, app: app}
}

// Inner returns the wrapped resolver.
func (r *ServiceControllerResolver) Inner() ControllerResolver { return r.inner }

func (r *ServiceControllerResolver) Resolve(target string) (http.Handler, error) {
	if !serviceTarget.MatchString(target) {
		if r.inner == nil {
			return nil, fmt.Errorf("%w: %q", ErrControllerNotFound, target)
		}
		return r.inner.Resolve(target)
	}
	key, method, _ := strings.Cut(target, ":")
	if !r.app.Bound(key) {
		return nil, fmt.Errorf("%w: service %q is not bound", ErrControllerNotFound, key)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		action, err := r.action(key, method)
		if err != nil {
			kernel.Throw(err)
		}
		action(w, req)
	}), nil
}

func (r *ServiceControllerResolver) action(key, method string) (func(http.ResponseWriter, *http.Request), error) {
	svc := r.app.Make(key)
	m := reflect.ValueOf(svc).MethodByName(method)
	if !m.IsValid() {
		return nil, fmt.Errorf("%w: %T has no method %s", ErrControllerNotFound, svc, method)
	}
	action, ok := m.Interface().(func(http.ResponseWriter, *http.Request))
	if !ok {
		return nil, fmt.Errorf("%w: %T.%s is not a handler", ErrControllerNotFound, svc, method)
	}
	return action, nil
}

// Build resolves every route of c and returns a router serving them. Each
// handler dispatches kernel.controller on d (when non-nil) before it runs.
func (c *ControllerCollection) Build(resolver ControllerResolver, d events.Dispatcher) (chi.Router, error) {
	mux := chi.NewRouter()
	for _, route := range c.Routes() {
		h, err := resolver.Resolve(route.Target)
		if err != nil {
			return nil, fmt.Errorf("route %s %s: %w", route.Method, route.Pattern, err)
		}
		mux.Method(route.Method, route.Pattern, controllerHandler(route, h, d))
	}
	return mux, nil
}

func controllerHandler(route Route, h http.Handler, d events.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d != nil {
			d.Dispatch(kernel.EventController, &kernel.ControllerEvent{
				Event:      kernel.Event{Request: r, Type: kernel.RequestTypeOf(r)},
				Controller: route.Target,
				Route:      route.Name,
			})
		}
		h.ServeHTTP(w, r)
	}
}
