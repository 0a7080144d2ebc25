package goserde

// ServiceLocator resolves hook and normalizer refs to service values. It is
// the only way the compiler and engine reach user code, so no global registry
// is involved.
type ServiceLocator interface {
	Lookup(id string) (any, bool)
}

// Services is a map-backed ServiceLocator.
type Services map[string]any

func (s Services) Lookup(id string) (any, bool) {
	v, ok := s[id]
	return v, ok
}

// HookContext is handed to hooks and normalizers.
type HookContext struct {
	Direction Direction
	Class     string
	Property  string
	// Values is the context attached to the property by an earlier hook
	// override, or the context returned by DecodeObject.
	Values map[string]any
}

// PropertyOverride is returned by property hooks. Zero fields keep the
// resolved value.
type PropertyOverride struct {
	WireName string
	Type     *Type
	// Accessor replaces the property accessor on encode.
	Accessor Accessor
	// Context is stored in the compiled program and passed to normalizers of
	// this property. It must be JSON serializable when a ProgramStore is used.
	Context map[string]any
}

// EncodeHook customizes object properties for encoding. It runs at compile
// time, after name resolution and before the property type is compiled.
type EncodeHook interface {
	EncodeProperty(prop Property, ctx HookContext) (PropertyOverride, error)
}

// DecodeResult is returned by DecodeHook.DecodeObject. A nil Properties keeps
// the collected properties.
type DecodeResult struct {
	Properties map[string]any
	Context    map[string]any
}

// DecodeHook customizes object decoding. DecodeProperty runs at compile time
// and may remap the wire name a property is read from. DecodeObject runs for
// every decoded object, after all of its properties were read and before the
// Instantiator is called.
type DecodeHook interface {
	DecodeProperty(prop Property, ctx HookContext) (PropertyOverride, error)
	DecodeObject(class string, props map[string]any, ctx HookContext) (DecodeResult, error)
}

// ContextInstantiator is an Instantiator that also receives the context
// produced by a DecodeHook.
type ContextInstantiator interface {
	Instantiator
	InstantiateWithContext(class string, props map[string]any, ctx map[string]any) (any, error)
}

// HookFuncs implements EncodeHook and DecodeHook from optional functions. A nil
// function leaves its input unchanged.
type HookFuncs struct {
	Encode         func(prop Property, ctx HookContext) (PropertyOverride, error)
	DecodeProp     func(prop Property, ctx HookContext) (PropertyOverride, error)
	DecodeInstance func(class string, props map[string]any, ctx HookContext) (DecodeResult, error)
}

func (h HookFuncs) EncodeProperty(prop Property, ctx HookContext) (PropertyOverride, error) {
	if h.Encode == nil {
		return PropertyOverride{}, nil
	}
	return h.Encode(prop, ctx)
}

func (h HookFuncs) DecodeProperty(prop Property, ctx HookContext) (PropertyOverride, error) {
	if h.DecodeProp == nil {
		return PropertyOverride{}, nil
	}
	return h.DecodeProp(prop, ctx)
}

func (h HookFuncs) DecodeObject(class string, props map[string]any, ctx HookContext) (DecodeResult, error) {
	if h.DecodeInstance == nil {
		return DecodeResult{}, nil
	}
	return h.DecodeInstance(class, props, ctx)
}

// RenameHook returns an EncodeHook and DecodeHook mapping source property
// names to wire names.
func RenameHook(names map[string]string) HookFuncs {
	rename := func(prop Property, _ HookContext) (PropertyOverride, error) {
		return PropertyOverride{WireName: names[prop.Name]}, nil
	}
	return HookFuncs{Encode: rename, DecodeProp: rename}
}

// Normalizer converts values of the type it is registered for into values of
// NormalizedType before encoding.
type Normalizer interface {
	NormalizedType() Type
	Normalize(v any, ctx HookContext) (any, error)
}

// Denormalizer is the decode counterpart of Normalizer. A normalizer
// registered for a decode program must implement it.
type Denormalizer interface {
	Denormalize(v any, ctx HookContext) (any, error)
}
