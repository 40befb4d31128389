package form

// DataCollector receives forms as they are built, filled and submitted.
// Implementations must tolerate being called several times per form.
type DataCollector interface {
	CollectConfiguration(f *Form)
	CollectDefaultData(f *Form)
	CollectSubmittedData(f *Form)
}

// DataExtractor turns a form into plain data for the profiler.
type DataExtractor struct{}

// NewDataExtractor creates a DataExtractor.
func NewDataExtractor() *DataExtractor { return &DataExtractor{} }

// ExtractConfiguration returns the static configuration of f.
func (DataExtractor) ExtractConfiguration(f *Form) map[string]any {
	var chain []string
	for t := f.Type(); t != nil; t = t.Parent() {
		chain = append(chain, t.Name())
	}
	opts := make(map[string]any, len(f.Options()))
	for k, v := range f.Options() {
		opts[k] = v
	}
	return map[string]any{
		"id":       f.ID(),
		"name":     f.Name(),
		"type":     f.Type().Name(),
		"types":    chain,
		"compound": f.IsCompound(),
		"rules":    f.Rules(),
		"options":  opts,
	}
}

// ExtractDefaultData returns the value f was filled with.
func (DataExtractor) ExtractDefaultData(f *Form) map[string]any {
	if f.IsCompound() {
		return map[string]any{"default_data": f.Data()}
	}
	return map[string]any{"default_data": f.Value()}
}

// ExtractSubmittedData returns the submitted value and validation errors.
func (DataExtractor) ExtractSubmittedData(f *Form) map[string]any {
	out := map[string]any{
		"submitted_data": f.Value(),
		"valid":          f.IsValid(),
	}
	if f.IsCompound() {
		out["submitted_data"] = f.Data()
	}
	if errs := f.Errors(); len(errs) > 0 {
		out["errors"] = errs
	}
	return out
}

// ── Type extension ───────────────────────────────────────────────────────────

// DataCollectorTypeExtension reports every form to a DataCollector.
type DataCollectorTypeExtension struct {
	collector DataCollector
}

// NewDataCollectorTypeExtension creates the extension.
func NewDataCollectorTypeExtension(c DataCollector) *DataCollectorTypeExtension {
	return &DataCollectorTypeExtension{collector: c}
}

func (e *DataCollectorTypeExtension) ExtendedType() string { return "form" }

func (e *DataCollectorTypeExtension) Build(b *Builder, _ Options) {
	b.AddEventListener(PostSetData, e.collector.CollectDefaultData)
	b.AddEventListener(PostSubmit, e.collector.CollectSubmittedData)
}

// ── Resolved type proxy ──────────────────────────────────────────────────────

// ResolvedTypeFactoryDataCollectorProxy wraps a ResolvedTypeFactory so that
// every resolved type reports the forms it builds.
type ResolvedTypeFactoryDataCollectorProxy struct {
	inner     ResolvedTypeFactory
	collector DataCollector
}

// NewResolvedTypeFactoryDataCollectorProxy wraps inner.
func NewResolvedTypeFactoryDataCollectorProxy(inner ResolvedTypeFactory, c DataCollector) *ResolvedTypeFactoryDataCollectorProxy {
	return &ResolvedTypeFactoryDataCollectorProxy{inner: inner, collector: c}
}

// Inner returns the wrapped factory.
func (p *ResolvedTypeFactoryDataCollectorProxy) Inner() ResolvedTypeFactory { return p.inner }

func (p *ResolvedTypeFactoryDataCollectorProxy) CreateResolvedType(t Type, extensions []TypeExtension, parent ResolvedType) ResolvedType {
	return &resolvedTypeDataCollectorProxy{
		ResolvedType: p.inner.CreateResolvedType(t, extensions, parent),
		collector:    p.collector,
	}
}

type resolvedTypeDataCollectorProxy struct {
	ResolvedType
	collector DataCollector
}

func (p *resolvedTypeDataCollectorProxy) Build(b *Builder, opts Options) {
	p.ResolvedType.Build(b, opts)
	if b.Type() == ResolvedType(p) {
		b.AddEventListener(PostSetData, p.collector.CollectConfiguration)
		b.AddEventListener(PostSubmit, p.collector.CollectConfiguration)
	}
}
