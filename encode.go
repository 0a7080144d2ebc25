package goserde

import (
	"cmp"
	"context"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	eng "github.com/reoring/goserde/internal/engine"
	"github.com/reoring/goserde/internal/ir"
)

// EncodeOptions tunes an encode sequence.
type EncodeOptions struct {
	// ChunkSize coalesces output until at least ChunkSize bytes are pending.
	// Zero yields every emitted token (a bracket, a separator, a key, a
	// scalar) as its own chunk.
	ChunkSize int
}

// errStopped unwinds the encoder when the consumer stops pulling.
var errStopped = errors.New("goserde: encode consumer stopped")

type encoder struct {
	ctx    context.Context
	m      *Marshaller
	flags  uint32
	pretty bool
	chunk  int
	buf    []byte
	yield  func([]byte, error) bool

	depth int
	level int
	path  []string
	hctx  HookContext
	// disc is written as the first member of the next object.
	disc *discriminator
}

type discriminator struct {
	wire string
	key  string // escaped key literal with separator
	tag  string
}

func newEncoder(ctx context.Context, m *Marshaller, p *Program, opts EncodeOptions, yield func([]byte, error) bool) *encoder {
	return &encoder{
		ctx:    ctx,
		m:      m,
		flags:  p.p.Flags,
		pretty: p.p.Flags&eng.FlagPrettyPrint != 0,
		chunk:  opts.ChunkSize,
		yield:  yield,
		hctx:   HookContext{Direction: Encode},
	}
}

func (e *encoder) run(p *Program, v any) error {
	if err := e.encode(p.p.Root, v); err != nil {
		return err
	}
	return e.flush(true)
}

func (e *encoder) flush(force bool) error {
	if len(e.buf) == 0 || (!force && len(e.buf) < e.chunk) {
		return nil
	}
	out := e.buf
	e.buf = nil
	if !e.yield(out, nil) {
		return errStopped
	}
	return nil
}

func (e *encoder) write(s string) error {
	e.buf = append(e.buf, s...)
	return e.flush(false)
}

func (e *encoder) writeBytes(b []byte) error {
	e.buf = append(e.buf, b...)
	return e.flush(false)
}

// separate writes the item separator unless first, then the indentation.
func (e *encoder) separate(first bool) error {
	if !first {
		e.buf = append(e.buf, ',')
	}
	if e.pretty {
		e.buf = eng.AppendNewline(e.buf, e.level)
	}
	return e.flush(false)
}

func (e *encoder) closeWith(s string, empty bool) error {
	e.level--
	if e.pretty && !empty {
		e.buf = eng.AppendNewline(e.buf, e.level)
	}
	return e.write(s)
}

func (e *encoder) pathString() string {
	if len(e.path) == 0 {
		return "/"
	}
	return "/" + strings.Join(e.path, "/")
}

func (e *encoder) invalid(format string, args ...any) error {
	return &InvalidValueError{Path: e.pathString(), Reason: fmt.Sprintf(format, args...), Offset: -1}
}

func (e *encoder) encode(n *ir.Node, v any) error {
	switch n.Op {
	case ir.OpLiteral:
		return e.write(n.Literal)
	case ir.OpScalar:
		return e.scalar(n, v)
	case ir.OpNullCheck:
		if isNil(v) {
			return e.encode(n.Then, nil)
		}
		return e.encode(n.Else, v)
	case ir.OpList:
		return e.list(n, v)
	case ir.OpDict:
		return e.dict(n, v)
	case ir.OpObject:
		return e.object(n, v)
	case ir.OpDepthGuard:
		if e.depth > n.Limit {
			return &MaxDepthExceededError{Class: n.Class, Limit: n.Limit, Depth: e.depth}
		}
		e.depth++
		err := e.encode(n.Elem, v)
		e.depth--
		return err
	case ir.OpRecurse:
		root, err := e.m.recurse(n.Sig, Encode)
		if err != nil {
			return err
		}
		return e.encode(root, v)
	case ir.OpNormalize:
		norm, err := e.m.normalizer(n.Ref)
		if err != nil {
			return err
		}
		out, err := norm.Normalize(v, e.hctx)
		if err != nil {
			return errors.Wrapf(err, "goserde: normalizer %q at %s", n.Ref, e.pathString())
		}
		return e.encode(n.Elem, out)
	case ir.OpUnion:
		for _, exact := range []bool{true, false} {
			for _, alt := range n.Alts {
				if e.m.matches(alt, v, exact) {
					return e.encode(alt, v)
				}
			}
		}
		return e.invalid("%T matches no alternative of %s", v, n.Sig)
	case ir.OpOneOf:
		i, ok := e.m.variant(n, v)
		if !ok {
			return e.invalid("cannot tell the %s variant of %T", n.Sig, v)
		}
		key, err := eng.AppendString(nil, n.Discriminator, e.flags)
		if err != nil {
			return err
		}
		e.disc = &discriminator{wire: n.Discriminator, key: string(key) + eng.KeySeparator(e.flags), tag: n.Tags[i]}
		err = e.encode(n.Alts[i], v)
		e.disc = nil
		return err
	}
	return errors.Newf("goserde: unknown instruction %s", n.Op)
}

func (e *encoder) scalar(n *ir.Node, v any) error {
	rv := deref(v)
	if !rv.IsValid() {
		return e.invalid("null for non-nullable %s", n.Scalar)
	}
	switch n.Scalar {
	case ir.ScalarBool:
		if rv.Kind() == reflect.Bool {
			return e.writeBytes(eng.AppendBool(nil, rv.Bool()))
		}
	case ir.ScalarInt:
		switch {
		case rv.CanInt():
			return e.writeBytes(eng.AppendInt(nil, rv.Int()))
		case rv.CanUint():
			return e.writeBytes(eng.AppendUint(nil, rv.Uint()))
		}
	case ir.ScalarFloat:
		var f float64
		switch {
		case rv.CanFloat():
			f = rv.Float()
		case rv.CanInt():
			f = float64(rv.Int())
		case rv.CanUint():
			f = float64(rv.Uint())
		default:
			return e.invalid("expected float, got %T", v)
		}
		b, err := eng.AppendFloat(nil, f, e.flags)
		if err != nil {
			return e.invalid("%v", err)
		}
		return e.writeBytes(b)
	case ir.ScalarString:
		if rv.Kind() == reflect.String {
			b, err := eng.AppendString(nil, rv.String(), e.flags)
			if err != nil {
				return e.invalid("%v", err)
			}
			return e.writeBytes(b)
		}
	}
	return e.invalid("expected %s, got %T", n.Scalar, v)
}

func (e *encoder) list(n *ir.Node, v any) error {
	if err := e.ctx.Err(); err != nil {
		return err
	}
	rv := deref(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return e.invalid("expected list, got %T", v)
	}
	if err := e.write("["); err != nil {
		return err
	}
	e.level++
	first := true
	for i := 0; i < rv.Len(); i++ {
		if err := e.separate(first); err != nil {
			return err
		}
		first = false
		e.path = append(e.path, strconv.Itoa(i))
		err := e.encode(n.Elem, rv.Index(i).Interface())
		e.path = e.path[:len(e.path)-1]
		if err != nil {
			return err
		}
	}
	return e.closeWith("]", first)
}

func (e *encoder) dict(n *ir.Node, v any) error {
	if err := e.ctx.Err(); err != nil {
		return err
	}
	rv := deref(v)
	if !rv.IsValid() || rv.Kind() != reflect.Map {
		return e.invalid("expected dict, got %T", v)
	}
	keys := rv.MapKeys()
	for _, k := range keys {
		if !keyFits(n.KeyScalar, k) {
			return e.invalid("dict key %v is not %s", k.Interface(), n.KeyScalar)
		}
	}
	if n.KeyScalar == ir.ScalarString {
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(a.String(), b.String()) })
	} else {
		slices.SortFunc(keys, compareIntKeys)
	}
	if err := e.write("{"); err != nil {
		return err
	}
	e.level++
	first := true
	for _, k := range keys {
		if err := e.separate(first); err != nil {
			return err
		}
		first = false
		name := keyString(k)
		b, err := eng.AppendString(nil, name, e.flags)
		if err != nil {
			return e.invalid("dict key %q: %v", name, err)
		}
		e.buf = append(e.buf, b...)
		if err := e.write(eng.KeySeparator(e.flags)); err != nil {
			return err
		}
		e.path = append(e.path, escapePointer(name))
		err = e.encode(n.Elem, rv.MapIndex(k).Interface())
		e.path = e.path[:len(e.path)-1]
		if err != nil {
			return err
		}
	}
	return e.closeWith("}", first)
}

func (e *encoder) object(n *ir.Node, v any) error {
	if err := e.ctx.Err(); err != nil {
		return err
	}
	if isNil(v) {
		return e.invalid("null for non-nullable %s", n.Class)
	}
	disc := e.disc
	e.disc = nil
	if err := e.write("{"); err != nil {
		return err
	}
	e.level++
	first := true
	if disc != nil {
		if err := e.separate(first); err != nil {
			return err
		}
		first = false
		tag, err := eng.AppendString(nil, disc.tag, e.flags)
		if err != nil {
			return err
		}
		e.buf = append(e.buf, disc.key...)
		if err := e.writeBytes(tag); err != nil {
			return err
		}
	}
	outer := e.hctx
	defer func() { e.hctx = outer }()
	for i := range n.Fields {
		f := &n.Fields[i]
		if disc != nil && f.Wire == disc.wire {
			continue
		}
		acc, err := e.m.accessor(n.Class, f)
		if err != nil {
			return err
		}
		val, err := acc.Get(v)
		if err != nil {
			return errors.Wrapf(err, "goserde: read %s.%s", n.Class, f.Source)
		}
		if err := e.separate(first); err != nil {
			return err
		}
		first = false
		if err := e.write(f.Key); err != nil {
			return err
		}
		e.hctx = HookContext{Direction: Encode, Class: n.Class, Property: f.Source, Values: f.Context}
		e.path = append(e.path, escapePointer(f.Wire))
		err = e.encode(f.Node, val)
		e.path = e.path[:len(e.path)-1]
		if err != nil {
			return err
		}
	}
	return e.closeWith("}", first)
}

// deref follows pointers and interfaces. The result is invalid for nil.
func deref(v any) reflect.Value {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func keyFits(scalar string, k reflect.Value) bool {
	if scalar == ir.ScalarString {
		return k.Kind() == reflect.String
	}
	return k.CanInt() || k.CanUint()
}

func keyString(k reflect.Value) string {
	switch {
	case k.Kind() == reflect.String:
		return k.String()
	case k.CanInt():
		return strconv.FormatInt(k.Int(), 10)
	default:
		return strconv.FormatUint(k.Uint(), 10)
	}
}

func compareIntKeys(a, b reflect.Value) int {
	if a.CanUint() && b.CanUint() {
		return cmp.Compare(a.Uint(), b.Uint())
	}
	return cmp.Compare(a.Int(), b.Int())
}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

func escapePointer(s string) string { return pointerEscaper.Replace(s) }
