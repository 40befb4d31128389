package form

import "sync"

// ResolvedType is a Type bound to its parent chain and extensions.
type ResolvedType interface {
	Name() string
	Parent() ResolvedType
	InnerType() Type
	Extensions() []TypeExtension
	// Build runs the parent chain first, then the type, then its extensions.
	Build(b *Builder, opts Options)
}

// ResolvedTypeFactory creates resolved types.
type ResolvedTypeFactory interface {
	CreateResolvedType(t Type, extensions []TypeExtension, parent ResolvedType) ResolvedType
}

// DefaultResolvedTypeFactory is the plain ResolvedTypeFactory.
type DefaultResolvedTypeFactory struct{}

func (DefaultResolvedTypeFactory) CreateResolvedType(t Type, extensions []TypeExtension, parent ResolvedType) ResolvedType {
	return &resolvedType{inner: t, extensions: extensions, parent: parent}
}

type resolvedType struct {
	inner      Type
	extensions []TypeExtension
	parent     ResolvedType
}

func (r *resolvedType) Name() string                { return r.inner.Name() }
func (r *resolvedType) Parent() ResolvedType        { return r.parent }
func (r *resolvedType) InnerType() Type             { return r.inner }
func (r *resolvedType) Extensions() []TypeExtension { return r.extensions }

func (r *resolvedType) Build(b *Builder, opts Options) {
	if r.parent != nil {
		r.parent.Build(b, opts)
	}
	r.inner.Build(b, opts)
	for _, ext := range r.extensions {
		ext.Build(b, opts)
	}
}

// ── Registry ─────────────────────────────────────────────────────────────────

// Registry resolves type names, caching resolved types.
type Registry struct {
	mu         sync.Mutex
	types      map[string]Type
	extensions []TypeExtension
	factory    ResolvedTypeFactory
	resolved   map[string]ResolvedType
}

// NewRegistry creates a registry holding the core types plus types.
func NewRegistry(factory ResolvedTypeFactory, extensions []TypeExtension, types ...Type) *Registry {
	r := &Registry{
		types:      make(map[string]Type),
		extensions: extensions,
		factory:    factory,
		resolved:   make(map[string]ResolvedType),
	}
	for _, t := range append(CoreTypes(), types...) {
		r.types[t.Name()] = t
	}
	return r
}

// Type returns the resolved type called name.
func (r *Registry) Type(name string) (ResolvedType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolve(name)
}

func (r *Registry) resolve(name string) (ResolvedType, error) {
	if rt, ok := r.resolved[name]; ok {
		return rt, nil
	}
	t, ok := r.types[name]
	if !ok {
		return nil, errUnknown(name)
	}
	var parent ResolvedType
	if p := t.Parent(); p != "" {
		var err error
		if parent, err = r.resolve(p); err != nil {
			return nil, err
		}
	}
	var exts []TypeExtension
	for _, e := range r.extensions {
		if e.ExtendedType() == name {
			exts = append(exts, e)
		}
	}
	rt := r.factory.CreateResolvedType(t, exts, parent)
	r.resolved[name] = rt
	return rt, nil
}

// HasType reports whether name is registered.
func (r *Registry) HasType(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.types[name]
	return ok
}

// ── Core types ───────────────────────────────────────────────────────────────

// CoreTypes returns the built-in types: form, text, email, number,
// password and checkbox.
func CoreTypes() []Type {
	return []Type{
		rootType{},
		leafType{name: "text", parent: "form"},
		leafType{name: "email", parent: "text", rules: "email"},
		leafType{name: "number", parent: "text", rules: "numeric"},
		leafType{name: "password", parent: "text"},
		leafType{name: "checkbox", parent: "form", rules: "in:,0,1,on,true,false"},
	}
}

// rootType is "form": compound unless it has a parent type below it.
// Options: "required" (bool), "constraints" (rule string).
type rootType struct{}

func (rootType) Name() string   { return "form" }
func (rootType) Parent() string { return "" }

func (rootType) Build(b *Builder, opts Options) {
	b.SetCompound(true)
	if opts.Bool("required") {
		b.AddRules("required")
	}
	b.AddRules(opts.String("constraints"))
}

type leafType struct {
	name, parent, rules string
}

func (t leafType) Name() string   { return t.name }
func (t leafType) Parent() string { return t.parent }

func (t leafType) Build(b *Builder, _ Options) {
	b.SetCompound(false)
	b.AddRules(t.rules)
}
