package goserde

import (
	"bytes"
	"context"
	"io"
	"iter"
	"os"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/reoring/goserde/internal/assign"
	"github.com/reoring/goserde/internal/ir"
)

// Marshaller compiles, caches and executes programs for one Resolver. It is
// safe for concurrent use; every Encode or Decode call owns its own state.
type Marshaller struct {
	resolver     Resolver
	instantiator Instantiator
	cfg          Config
	cfgHash      string
	cache        *Cache
	bindErr      error
	// accessors holds resolved property accessors by accessorKey. Accessors
	// depend on the services, so every Config gets its own map.
	accessors *sync.Map
}

type accessorKey struct {
	class  string
	source string
}

// Option configures a Marshaller.
type Option func(*Marshaller)

// WithConfig sets the compile configuration.
func WithConfig(cfg Config) Option { return func(m *Marshaller) { m.cfg = cfg } }

// WithCache shares a program cache between marshallers. A cache is bound to
// the first resolver it is used with; marshallers over any other resolver
// fail with ErrCacheResolverMismatch.
func WithCache(c *Cache) Option { return func(m *Marshaller) { m.cache = c } }

// WithInstantiator overrides how decoded objects are built. By default the
// resolver is used when it implements Instantiator, and MapInstantiator
// otherwise.
func WithInstantiator(i Instantiator) Option { return func(m *Marshaller) { m.instantiator = i } }

// New returns a Marshaller reading object properties from r.
func New(r Resolver, opts ...Option) *Marshaller {
	m := &Marshaller{resolver: r, cfg: NewConfig(), accessors: &sync.Map{}}
	for _, opt := range opts {
		opt(m)
	}
	m.cfgHash = m.cfg.Hash()
	if m.cache == nil {
		m.cache = NewCache()
	}
	m.bindErr = m.cache.bind(r)
	if m.instantiator == nil {
		if inst, ok := r.(Instantiator); ok {
			m.instantiator = inst
		} else {
			m.instantiator = MapInstantiator{Resolver: r}
		}
	}
	return m
}

// Config returns the configuration programs are compiled with.
func (m *Marshaller) Config() Config { return m.cfg }

// Cache returns the program cache.
func (m *Marshaller) Cache() *Cache { return m.cache }

// With returns a Marshaller using cfg that shares m's resolver, instantiator
// and cache.
func (m *Marshaller) With(cfg Config) *Marshaller {
	cp := *m
	cp.cfg = cfg
	cp.cfgHash = cfg.Hash()
	cp.accessors = &sync.Map{}
	return &cp
}

// Program returns the cached program of t for dir, compiling it on first use.
func (m *Marshaller) Program(t Type, dir Direction) (*Program, error) {
	if m.bindErr != nil {
		return nil, m.bindErr
	}
	key := CacheKey{Type: t.Signature(), Config: m.cfgHash, Direction: dir}
	return m.cache.GetOrCompile(key, func() (*Program, error) {
		return Compile(t, m.cfg, dir, m.resolver)
	})
}

// Encode returns a lazy, single-use sequence of JSON chunks for v. Nothing is
// compiled or written until the sequence is pulled; stopping early releases
// everything.
func (m *Marshaller) Encode(ctx context.Context, t Type, v any, opts EncodeOptions) iter.Seq2[[]byte, error] {
	var used atomic.Bool
	return func(yield func([]byte, error) bool) {
		if used.Swap(true) {
			yield(nil, ErrSequenceConsumed)
			return
		}
		p, err := m.Program(t, Encode)
		if err != nil {
			yield(nil, err)
			return
		}
		err = newEncoder(ctx, m, p, opts, yield).run(p, v)
		if err != nil && !errors.Is(err, errStopped) {
			yield(nil, err)
		}
	}
}

// Marshal encodes v into a byte slice.
func (m *Marshaller) Marshal(ctx context.Context, t Type, v any) ([]byte, error) {
	var buf bytes.Buffer
	for chunk, err := range m.Encode(ctx, t, v, EncodeOptions{ChunkSize: 4096}) {
		if err != nil {
			return nil, err
		}
		buf.Write(chunk)
	}
	return buf.Bytes(), nil
}

// EncodeTo streams the encoding of v to w.
func (m *Marshaller) EncodeTo(ctx context.Context, w io.Writer, t Type, v any) error {
	for chunk, err := range m.Encode(ctx, t, v, EncodeOptions{ChunkSize: 4096}) {
		if err != nil {
			return err
		}
		if _, err := w.Write(chunk); err != nil {
			return errors.Wrap(err, "goserde: write")
		}
	}
	return nil
}

// Decode reads one value of type t from src in a single forward pass.
func (m *Marshaller) Decode(ctx context.Context, t Type, src Source, opts DecodeOptions) (any, error) {
	p, err := m.Program(t, Decode)
	if err != nil {
		return nil, err
	}
	return newDecoder(ctx, m, src).run(p, opts)
}

// Unmarshal decodes data with the current JSON driver.
func (m *Marshaller) Unmarshal(ctx context.Context, t Type, data []byte) (any, error) {
	return m.Decode(ctx, t, JSONBytes(data), DecodeOptions{})
}

// DecodeFile decodes the JSON file at path. The file is closed on return.
func (m *Marshaller) DecodeFile(ctx context.Context, t Type, path string) (any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "goserde: open")
	}
	defer f.Close()
	return m.Decode(ctx, t, JSONReader(f), DecodeOptions{Resource: path})
}

// DecodeAs decodes into a T. Decoded values are converted with the same
// rules the reflect resolver uses to fill struct fields.
func DecodeAs[T any](ctx context.Context, m *Marshaller, t Type, src Source, opts DecodeOptions) (T, error) {
	var out T
	v, err := m.Decode(ctx, t, src, opts)
	if err != nil {
		return out, err
	}
	if err := assign.Value(reflect.ValueOf(&out).Elem(), v); err != nil {
		return out, &InvalidValueError{Path: "/", Reason: err.Error(), Offset: -1}
	}
	return out, nil
}

func (m *Marshaller) recurse(sig string, dir Direction) (*ir.Node, error) {
	t, err := ParseType(sig)
	if err != nil {
		return nil, err
	}
	p, err := m.Program(t, dir)
	if err != nil {
		return nil, err
	}
	return p.p.Root, nil
}

func (m *Marshaller) service(ref string) (any, error) {
	svc, ok := m.cfg.lookup(ref)
	if !ok {
		return nil, &InvalidHookSignatureError{Ref: ref, Reason: "no such service"}
	}
	return svc, nil
}

func (m *Marshaller) normalizer(ref string) (Normalizer, error) {
	svc, err := m.service(ref)
	if err != nil {
		return nil, err
	}
	n, ok := svc.(Normalizer)
	if !ok {
		return nil, &InvalidHookSignatureError{Ref: ref, Reason: "service does not implement Normalizer"}
	}
	return n, nil
}

// denormalizer checks the service again at run time: a cached program may be
// executed with services other than the ones it was compiled against.
func (m *Marshaller) denormalizer(ref string) (Denormalizer, error) {
	svc, err := m.service(ref)
	if err != nil {
		return nil, err
	}
	d, ok := svc.(Denormalizer)
	if !ok {
		return nil, &InvalidHookSignatureError{Ref: ref, Reason: "service does not implement Denormalizer"}
	}
	return d, nil
}

// accessor returns the accessor of field f of class, re-asking the encode
// hook when it overrode the resolved one.
func (m *Marshaller) accessor(class string, f *ir.Field) (Accessor, error) {
	key := accessorKey{class: class, source: f.Source}
	if acc, ok := m.accessors.Load(key); ok {
		return acc.(Accessor), nil
	}
	props, err := m.resolver.Resolve(class)
	if err != nil {
		return nil, unresolvable(class, err)
	}
	i := slices.IndexFunc(props, func(p Property) bool { return p.Name == f.Source })
	if i < 0 {
		return nil, &UnresolvableTypeError{Class: class, Cause: errors.Newf("property %q disappeared", f.Source)}
	}
	prop := props[i]
	acc := prop.Accessor
	if f.AccessorHook != "" {
		svc, err := m.service(f.AccessorHook)
		if err != nil {
			return nil, err
		}
		hook, ok := svc.(EncodeHook)
		if !ok {
			return nil, &InvalidHookSignatureError{Type: class, Ref: f.AccessorHook, Reason: "service does not implement encode hook"}
		}
		ov, err := hook.EncodeProperty(prop, HookContext{Direction: Encode, Class: class, Property: prop.Name})
		if err != nil {
			return nil, errors.Wrapf(err, "goserde: hook %q on %s.%s", f.AccessorHook, class, prop.Name)
		}
		if ov.Accessor != nil {
			acc = ov.Accessor
		}
	}
	if acc == nil {
		acc = MapAccessor(prop.Name)
	}
	actual, _ := m.accessors.LoadOrStore(key, acc)
	return actual.(Accessor), nil
}

func (m *Marshaller) classOf(v any) (string, bool) {
	if cr, ok := m.resolver.(ClassResolver); ok && v != nil {
		return cr.ClassOf(v)
	}
	return "", false
}

// matches reports whether v can be encoded by alt. The exact pass only
// accepts values whose shape or class identifies alt; the second pass allows
// int to float widening and unidentified objects.
func (m *Marshaller) matches(alt *ir.Node, v any, exact bool) bool {
	rv := deref(v)
	switch alt.Op {
	case ir.OpNullCheck:
		return !rv.IsValid() || m.matches(alt.Else, v, exact)
	case ir.OpDepthGuard:
		return m.matches(alt.Elem, v, exact)
	case ir.OpUnion:
		return slices.ContainsFunc(alt.Alts, func(a *ir.Node) bool { return m.matches(a, v, exact) })
	}
	if !rv.IsValid() {
		return false
	}
	class, known := m.classOf(v)
	switch alt.Op {
	case ir.OpScalar:
		switch alt.Scalar {
		case ir.ScalarBool:
			return rv.Kind() == reflect.Bool
		case ir.ScalarInt:
			return rv.CanInt() || rv.CanUint()
		case ir.ScalarFloat:
			return rv.CanFloat() || (!exact && (rv.CanInt() || rv.CanUint()))
		case ir.ScalarString:
			return rv.Kind() == reflect.String
		}
	case ir.OpList:
		return rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
	case ir.OpDict:
		if rv.Kind() != reflect.Map || (exact && known) {
			return false
		}
		for _, k := range rv.MapKeys() {
			if !keyFits(alt.KeyScalar, k) {
				return false
			}
		}
		return true
	case ir.OpObject, ir.OpRecurse:
		if known {
			return class == alt.Class
		}
		return !exact && (rv.Kind() == reflect.Struct || rv.Kind() == reflect.Map)
	case ir.OpOneOf:
		if known {
			return slices.Contains(alt.Classes, class)
		}
		return !exact && (rv.Kind() == reflect.Struct || rv.Kind() == reflect.Map)
	case ir.OpNormalize:
		return known && Object(class).Signature() == alt.Sig
	}
	return false
}

// variant picks the oneof alternative for v: by class when the resolver can
// tell, then by a discriminator entry in a map value.
func (m *Marshaller) variant(n *ir.Node, v any) (int, bool) {
	if class, ok := m.classOf(v); ok {
		if i := slices.Index(n.Classes, class); i >= 0 {
			return i, true
		}
	}
	if mv, ok := v.(map[string]any); ok {
		if tag, ok := mv[n.Discriminator].(string); ok {
			if i := slices.Index(n.Tags, tag); i >= 0 {
				return i, true
			}
		}
	}
	if len(n.Alts) == 1 {
		return 0, true
	}
	return -1, false
}

func (m *Marshaller) instantiate(n *ir.Node, props map[string]any) (any, error) {
	var hookCtx map[string]any
	if n.Hook != "" {
		svc, err := m.service(n.Hook)
		if err != nil {
			return nil, err
		}
		hook, ok := svc.(DecodeHook)
		if !ok {
			return nil, &InvalidHookSignatureError{Type: n.Class, Ref: n.Hook, Reason: "service does not implement decode hook"}
		}
		res, err := hook.DecodeObject(n.Class, props, HookContext{Direction: Decode, Class: n.Class})
		if err != nil {
			return nil, errors.Wrapf(err, "goserde: hook %q on %s", n.Hook, n.Class)
		}
		if res.Properties != nil {
			props = res.Properties
		}
		hookCtx = res.Context
	}
	var (
		v   any
		err error
	)
	if ci, ok := m.instantiator.(ContextInstantiator); ok && hookCtx != nil {
		v, err = ci.InstantiateWithContext(n.Class, props, hookCtx)
	} else {
		v, err = m.instantiator.Instantiate(n.Class, props)
	}
	if err != nil {
		var ie *InstantiationError
		if errors.As(err, &ie) {
			return nil, err
		}
		return nil, &InstantiationError{Class: n.Class, Cause: err}
	}
	return v, nil
}
