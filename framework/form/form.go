// Package form builds and validates HTML forms from composable types.
//
// A Type contributes to a Builder; types form a parent chain ("email"
// extends "text" extends "form") and TypeExtensions hook into any type of
// the chain. Submitted values are validated with the framework's
// Laravel-style rule strings.
//
//	factory := form.NewFactory(form.NewRegistry(form.DefaultResolvedTypeFactory{}, nil))
//	f, _ := factory.CreateBuilder("form", "signup", nil).
//	    Add("email", "email", form.Options{"required": true}).
//	    Form()
//	f.Submit(map[string]string{"email": "ada@example.com"})
//	f.IsValid()
package form

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/km-arc/go-laravel-webprofiler/framework/http/validation"
)

// ErrUnknownType is returned when a type name is not registered.
var ErrUnknownType = errors.New("form: unknown type")

// Form events.
const (
	PostSetData = "form.post_set_data"
	PostSubmit  = "form.post_submit"
)

// Options configure a form type.
type Options map[string]any

func (o Options) Bool(key string) bool {
	b, _ := o[key].(bool)
	return b
}

func (o Options) String(key string) string {
	s, _ := o[key].(string)
	return s
}

// Type is a form type.
type Type interface {
	Name() string
	// Parent returns the name of the parent type, "" for the root type.
	Parent() string
	Build(b *Builder, opts Options)
}

// TypeExtension hooks into every form built from ExtendedType or one of
// its descendants.
type TypeExtension interface {
	ExtendedType() string
	Build(b *Builder, opts Options)
}

// ── Builder ──────────────────────────────────────────────────────────────────

// Builder collects the configuration of a form and its children.
type Builder struct {
	name      string
	typ       ResolvedType
	opts      Options
	factory   *Factory
	compound  bool
	rules     []string
	children  []*Builder
	listeners map[string][]func(*Form)
	err       error
}

func (b *Builder) Name() string       { return b.name }
func (b *Builder) Type() ResolvedType { return b.typ }
func (b *Builder) Options() Options   { return b.opts }

// SetCompound marks the form as holding children rather than a value.
func (b *Builder) SetCompound(c bool) { b.compound = c }

// AddRules appends validation rules (pipe-separated) for the value.
func (b *Builder) AddRules(rules string) {
	if rules != "" {
		b.rules = append(b.rules, rules)
	}
}

// AddEventListener registers fn for a form event.
func (b *Builder) AddEventListener(event string, fn func(*Form)) {
	if b.listeners == nil {
		b.listeners = make(map[string][]func(*Form))
	}
	b.listeners[event] = append(b.listeners[event], fn)
}

// Add appends a child built from typeName. Errors surface from Form.
func (b *Builder) Add(name, typeName string, opts Options) *Builder {
	child, err := b.factory.CreateNamedBuilder(typeName, name, opts)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return b
	}
	b.children = append(b.children, child)
	return b
}

// Form creates the form.
func (b *Builder) Form() (*Form, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.form(nil), nil
}

func (b *Builder) form(parent *Form) *Form {
	f := &Form{
		name:      b.name,
		typ:       b.typ,
		opts:      b.opts,
		parent:    parent,
		compound:  b.compound,
		rules:     strings.Join(b.rules, "|"),
		listeners: b.listeners,
	}
	for _, c := range b.children {
		f.children = append(f.children, c.form(f))
	}
	return f
}

// ── Form ─────────────────────────────────────────────────────────────────────

// Form is a built form tree.
type Form struct {
	name      string
	typ       ResolvedType
	opts      Options
	parent    *Form
	compound  bool
	rules     string
	children  []*Form
	listeners map[string][]func(*Form)

	value     string
	submitted bool
	errors    []string
}

func (f *Form) Name() string         { return f.name }
func (f *Form) Type() ResolvedType   { return f.typ }
func (f *Form) Options() Options     { return f.opts }
func (f *Form) Parent() *Form        { return f.parent }
func (f *Form) IsRoot() bool         { return f.parent == nil }
func (f *Form) IsCompound() bool     { return f.compound }
func (f *Form) IsSubmitted() bool    { return f.submitted }
func (f *Form) Rules() string        { return f.rules }
func (f *Form) Value() string        { return f.value }
func (f *Form) Errors() []string     { return slices.Clone(f.errors) }
func (f *Form) Children() []*Form    { return slices.Clone(f.children) }
func (f *Form) Child(name string) *Form {
	for _, c := range f.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// ID is the form's path from the root, e.g. "signup_email".
func (f *Form) ID() string {
	if f.parent == nil {
		return f.name
	}
	return f.parent.ID() + "_" + f.name
}

// SetData fills the form from data, keyed by child name. Leaf forms take
// data[their name].
func (f *Form) SetData(data map[string]string) {
	f.setData(data)
}

func (f *Form) setData(data map[string]string) {
	if f.compound {
		for _, c := range f.children {
			c.setData(data)
		}
	} else {
		f.value = data[f.name]
	}
	f.dispatch(PostSetData)
}

// Data returns the leaf values of the tree keyed by name.
func (f *Form) Data() map[string]string {
	out := make(map[string]string)
	f.collect(out)
	return out
}

func (f *Form) collect(out map[string]string) {
	if !f.compound {
		out[f.name] = f.value
		return
	}
	for _, c := range f.children {
		c.collect(out)
	}
}

// Submit binds values and validates every leaf. Children dispatch
// PostSubmit before their parent.
func (f *Form) Submit(values map[string]string) {
	f.submitted = true
	f.errors = nil
	if f.compound {
		for _, c := range f.children {
			c.Submit(values)
		}
	} else {
		f.value = values[f.name]
		if f.rules != "" {
			rules := f.rules
			// optional fields skip their rules when left empty
			if !slices.Contains(strings.Split(rules, "|"), "required") {
				rules = "sometimes|" + rules
			}
			v := validation.Make(map[string]string{f.name: f.value}, validation.Rules{f.name: rules})
			if v.Fails() {
				f.errors = v.Errors().Bag[f.name]
			}
		}
	}
	f.dispatch(PostSubmit)
}

// IsValid reports whether the submitted tree has no errors.
func (f *Form) IsValid() bool {
	if !f.submitted || len(f.errors) > 0 {
		return false
	}
	for _, c := range f.children {
		if !c.IsValid() {
			return false
		}
	}
	return true
}

func (f *Form) dispatch(event string) {
	for _, fn := range f.listeners[event] {
		fn(f)
	}
}

// ── Factory ──────────────────────────────────────────────────────────────────

// Factory creates forms from registered types.
type Factory struct {
	registry *Registry
}

// NewFactory creates a Factory.
func NewFactory(r *Registry) *Factory { return &Factory{registry: r} }

// Registry returns the factory's type registry.
func (f *Factory) Registry() *Registry { return f.registry }

// CreateBuilder returns a builder for a form named like its type.
func (f *Factory) CreateBuilder(typeName, name string, opts Options) *Builder {
	b, err := f.CreateNamedBuilder(typeName, name, opts)
	if err != nil {
		return &Builder{name: name, factory: f, err: err}
	}
	return b
}

// CreateNamedBuilder resolves typeName and lets its chain build.
func (f *Factory) CreateNamedBuilder(typeName, name string, opts Options) (*Builder, error) {
	t, err := f.registry.Type(typeName)
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = Options{}
	}
	b := &Builder{name: name, typ: t, opts: opts, factory: f}
	t.Build(b, opts)
	return b, nil
}

// Create builds a form without children.
func (f *Factory) Create(typeName, name string, opts Options) (*Form, error) {
	return f.CreateBuilder(typeName, name, opts).Form()
}

func errUnknown(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownType, name)
}
