package container

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	// ErrNotBound is raised when an abstract has no binding.
	ErrNotBound = errors.New("container: no binding registered")
	// ErrCircularDependency is raised when a factory (indirectly) resolves itself.
	ErrCircularDependency = errors.New("container: circular dependency")
)

// ── Binding types ─────────────────────────────────────────────────────────────

// Factory is a function that builds a concrete value from the container.
type Factory func(c *Container) any

// Decorator wraps an instance produced by a previously registered factory.
type Decorator func(instance any, c *Container) any

// binding holds a registered factory and whether it is a singleton.
type binding struct {
	factory   Factory
	singleton bool
	// build serialises construction of a singleton
	build sync.Mutex
}

// ── Container ─────────────────────────────────────────────────────────────────

// Container is the IoC container, mirroring Laravel's Illuminate\Container\Container.
//
// It supports:
//   - Bind / Singleton / Instance / Alias
//   - Make / Resolve / Lookup (generic)
//   - Tags (group multiple abstractions under one tag)
//   - Extend (decorate a factory, applied in registration order)
//   - Rebound callbacks
//   - Resolved event callbacks
//
// Registration is expected to happen from a single goroutine at startup;
// resolution is safe from any number of goroutines. Factories receive a view
// of the container that shares every binding but carries the chain of keys
// being built, which is how cycles are detected.
type Container struct {
	*store

	// innermost key this view is building, nil for the root
	frame *frame
}

// frame is one key under construction. done is set once its factory has
// returned, so a view kept by the built value no longer counts it.
type frame struct {
	key    string
	parent *frame
	done   atomic.Bool
}

// store is the state shared by a container and its views.
type store struct {
	mu sync.RWMutex

	// abstract → binding
	bindings map[string]*binding

	// abstract → resolved singleton instance
	instances map[string]any

	// alias → abstract (canonical key)
	aliases map[string]string

	// tag → []abstract
	tags map[string][]string

	// rebound callbacks: abstract → []func(any)
	reboundCallbacks map[string][]func(any)

	// resolved callbacks: []func(abstract, instance)
	afterResolving []func(string, any)

	// loaders register deferred abstracts on first use
	loaders []loader
}

// loader is implemented by registries that can bind an abstract on demand.
type loader interface {
	provides(abstract string) bool
	load(abstract string)
}

// New creates an empty container.
func New() *Container {
	c := &Container{store: &store{
		bindings:         make(map[string]*binding),
		instances:        make(map[string]any),
		aliases:          make(map[string]string),
		tags:             make(map[string][]string),
		reboundCallbacks: make(map[string][]func(any)),
	}}
	// Bind the container to itself, like Laravel's $app->instance()
	c.Instance("container", c)
	return c
}

// ── Registration ──────────────────────────────────────────────────────────────

// Bind registers a transient (new instance each Make) factory.
//
//	c.Bind("controllers_factory", func(c *container.Container) any {
//	    return routing.NewControllerCollection()
//	})
func (c *Container) Bind(abstract string, factory Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bind(abstract, factory, false)
}

// Singleton registers a factory whose result is cached after first resolution.
//
//	c.Singleton("stopwatch", func(c *container.Container) any {
//	    return stopwatch.New()
//	})
func (c *Container) Singleton(abstract string, factory Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bind(abstract, factory, true)
}

// Instance registers a pre-built value (or parameter) as a singleton.
// A nil value still counts as bound.
//
//	c.Instance("profiler.mount_prefix", "/_profiler")
func (c *Container) Instance(abstract string, instance any) {
	c.mu.Lock()
	key := c.canonical(abstract)
	delete(c.bindings, key)
	c.instances[key] = instance
	c.mu.Unlock()
	c.fireRebound(abstract, instance)
}

// bind is the internal registration helper (must hold mu.Lock).
// Re-binding replaces the factory together with every decoration applied to it.
func (c *Container) bind(abstract string, factory Factory, singleton bool) {
	key := c.canonical(abstract)

	// Drop existing singleton instance so it's rebuilt with the new factory
	_, wasResolved := c.instances[key]
	delete(c.instances, key)

	c.bindings[key] = &binding{factory: factory, singleton: singleton}

	if wasResolved && len(c.reboundCallbacks[abstract]) > 0 {
		c.mu.Unlock()
		c.fireRebound(abstract, c.make(abstract))
		c.mu.Lock()
	}
}

// Alias registers an alternative name for an abstract.
//
//	c.Alias("config", "configuration")
func (c *Container) Alias(abstract, alias string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if abstract == alias {
		panic(fmt.Sprintf("container: [%s] is aliased to itself", abstract))
	}
	c.aliases[alias] = c.canonical(abstract)
}

// ── Extend ────────────────────────────────────────────────────────────────────

// Extend replaces the factory of abstract with one that first runs the
// current factory and then passes its result through fn. Calls stack in
// registration order. If the abstract has already been resolved (or was
// registered with Instance), the cached value is decorated right away.
//
// Extending an abstract that was never bound panics with ErrNotBound.
//
//	c.Extend("translator", func(instance any, c *container.Container) any {
//	    return translation.NewDataCollectorTranslator(instance.(translation.Translator))
//	})
func (c *Container) Extend(abstract string, fn Decorator) {
	c.mu.Lock()
	key := c.canonical(abstract)
	b, hasBinding := c.bindings[key]
	inst, hasInstance := c.instances[key]

	if hasBinding {
		prev := b.factory
		c.bindings[key] = &binding{
			factory:   func(c *Container) any { return fn(prev(c), c) },
			singleton: b.singleton,
		}
	}
	c.mu.Unlock()

	if !hasBinding && !hasInstance {
		panic(fmt.Errorf("%w: cannot extend [%s]", ErrNotBound, abstract))
	}

	if hasInstance {
		extended := fn(inst, c)
		c.mu.Lock()
		c.instances[key] = extended
		c.mu.Unlock()
		c.fireRebound(abstract, extended)
	}
}

// ── Tags ──────────────────────────────────────────────────────────────────────

// Tag associates multiple abstracts under a named group.
//
//	c.Tag([]string{"form.type.text", "form.type.email"}, "form.types")
func (c *Container) Tag(abstracts []string, tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags[tag] = append(c.tags[tag], abstracts...)
}

// Tagged resolves all abstracts registered under a tag, in tag order.
func (c *Container) Tagged(tag string) []any {
	c.mu.RLock()
	abstracts := append([]string(nil), c.tags[tag]...)
	c.mu.RUnlock()

	result := make([]any, 0, len(abstracts))
	for _, abs := range abstracts {
		result = append(result, c.make(abs))
	}
	return result
}

// ── Resolution ────────────────────────────────────────────────────────────────

// Make resolves an abstract from the container.
// It panics with ErrNotBound or ErrCircularDependency on misconfiguration.
func (c *Container) Make(abstract string) any {
	return c.make(abstract)
}

// make is the internal resolver (no outer lock; individual ops lock as needed).
func (c *Container) make(abstract string) any {
	key := c.canonical(abstract)

	// Check singleton instance cache
	c.mu.RLock()
	if inst, ok := c.instances[key]; ok {
		c.mu.RUnlock()
		return inst
	}
	b, ok := c.bindings[key]
	loaders := c.loaders
	c.mu.RUnlock()

	if !ok {
		for _, l := range loaders {
			if l.provides(abstract) {
				l.load(abstract)
				return c.make(abstract)
			}
		}
		panic(fmt.Errorf("%w for [%s]", ErrNotBound, abstract))
	}

	if path := c.cycle(key); path != nil {
		panic(fmt.Errorf("%w: %s", ErrCircularDependency, strings.Join(path, " -> ")))
	}

	if !b.singleton {
		return c.runFactory(key, b.factory)
	}

	// another goroutine may have finished building while we waited
	b.build.Lock()
	defer b.build.Unlock()
	c.mu.RLock()
	inst, ok := c.instances[key]
	c.mu.RUnlock()
	if ok {
		return inst
	}
	return c.runFactory(key, b.factory)
}

// cycle returns the dependency path ending in key when key is already being
// built by this resolution chain.
func (c *Container) cycle(key string) []string {
	var path []string
	for f := c.frame; f != nil; f = f.parent {
		if f.done.Load() {
			continue
		}
		path = append(path, f.key)
		if f.key == key {
			slices.Reverse(path)
			return append(path, key)
		}
	}
	return nil
}

// runFactory executes a factory on a view that records key, caching the
// result when the binding is a singleton.
func (c *Container) runFactory(key string, f Factory) any {
	fr := &frame{key: key, parent: c.frame}
	defer fr.done.Store(true)

	instance := f(&Container{store: c.store, frame: fr})

	c.mu.Lock()
	if b, ok := c.bindings[key]; ok && b.singleton {
		c.instances[key] = instance
	}
	c.mu.Unlock()

	c.fireAfterResolving(key, instance)
	return instance
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// Bound returns true if an abstract has been registered.
func (c *Container) Bound(abstract string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key := c.canonical(abstract)
	_, hasBinding := c.bindings[key]
	_, hasInstance := c.instances[key]
	if hasBinding || hasInstance {
		return true
	}
	for _, l := range c.loaders {
		if l.provides(abstract) {
			return true
		}
	}
	return false
}

// Resolved returns true if the abstract has been resolved at least once.
func (c *Container) Resolved(abstract string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key := c.canonical(abstract)
	_, ok := c.instances[key]
	return ok
}

// Forget removes all registrations for an abstract (binding + instance).
func (c *Container) Forget(abstract string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.canonical(abstract)
	delete(c.bindings, key)
	delete(c.instances, key)
}

// Flush resets the entire container.
func (c *Container) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings = make(map[string]*binding)
	c.instances = make(map[string]any)
	c.aliases = make(map[string]string)
	c.tags = make(map[string][]string)
}

// Bindings returns a copy of all registered abstract keys (for debugging).
func (c *Container) Bindings() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.bindings)+len(c.instances))
	for k := range c.bindings {
		out = append(out, k)
	}
	for k := range c.instances {
		if _, already := c.bindings[k]; !already {
			out = append(out, k)
		}
	}
	return out
}

// canonical resolves an alias to its canonical key.
func (c *Container) canonical(abstract string) string {
	if target, ok := c.aliases[abstract]; ok {
		return target
	}
	return abstract
}

// ── Callbacks ─────────────────────────────────────────────────────────────────

// Rebinding registers a callback to be called whenever an abstract is re-bound
// or its resolved instance is decorated.
func (c *Container) Rebinding(abstract string, cb func(any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reboundCallbacks[abstract] = append(c.reboundCallbacks[abstract], cb)
}

// AfterResolving registers a callback fired after any abstract is built.
func (c *Container) AfterResolving(cb func(abstract string, instance any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.afterResolving = append(c.afterResolving, cb)
}

func (c *Container) fireRebound(abstract string, instance any) {
	c.mu.RLock()
	cbs := c.reboundCallbacks[abstract]
	c.mu.RUnlock()
	for _, cb := range cbs {
		cb(instance)
	}
}

func (c *Container) fireAfterResolving(abstract string, instance any) {
	c.mu.RLock()
	cbs := c.afterResolving
	c.mu.RUnlock()
	for _, cb := range cbs {
		cb(abstract, instance)
	}
}

// ── Generics helpers ──────────────────────────────────────────────────────────

// Resolve is a generic helper that calls Make and type-asserts the result.
//
//	// Instead of: p := c.Make("profiler").(*profiler.Profiler)
//	// Write:      p := container.Resolve[*profiler.Profiler](c, "profiler")
func Resolve[T any](c *Container, abstract string) T {
	instance := c.Make(abstract)
	typed, ok := instance.(T)
	if !ok {
		panic(fmt.Sprintf("container: Resolve[%T]: [%s] resolved to %T", *new(T), abstract, instance))
	}
	return typed
}

// Lookup resolves an optional abstract. It returns false when the abstract
// is not bound or does not hold a T (a bound nil counts as absent).
func Lookup[T any](c *Container, abstract string) (T, bool) {
	var zero T
	if !c.Bound(abstract) {
		return zero, false
	}
	typed, ok := c.Make(abstract).(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Try resolves abstract and converts container panics into an error.
func Try(c *Container, abstract string) (instance any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("container: resolving [%s]: %v", abstract, r)
		}
	}()
	return c.Make(abstract), nil
}
