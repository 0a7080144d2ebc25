package goserde

import (
	"context"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	eng "github.com/reoring/goserde/internal/engine"
	"github.com/reoring/goserde/internal/ir"
	"github.com/reoring/goserde/internal/stream"
)

// DecodeOptions tunes a decode call.
type DecodeOptions struct {
	// Resource names the input in PartialDecodeError, e.g. a file path.
	Resource string
	// KeepPartial attaches the value built before a failure to
	// PartialDecodeError.Partial for diagnostics.
	KeepPartial bool
}

// tokenError marks failures of the token source itself: truncated or
// malformed input.
type tokenError struct {
	err error
}

func (e *tokenError) Error() string { return e.err.Error() }
func (e *tokenError) Unwrap() error { return e.err }

type decoder struct {
	ctx     context.Context
	m       *Marshaller
	tracker *eng.Tracker
	src     eng.TokenSource
	depth   int
	// allowKey is a discriminator key the next object accepts without a
	// matching property.
	allowKey string
}

func newDecoder(ctx context.Context, m *Marshaller, src Source) *decoder {
	tracker := eng.WrapWithEnforcement(engineTokenSource(src), eng.EnforceOptions{RejectDuplicates: m.cfg.rejectDuplicates})
	return &decoder{ctx: ctx, m: m, tracker: tracker, src: tracker}
}

// run decodes exactly one value and rejects trailing data.
func (d *decoder) run(p *Program, opts DecodeOptions) (any, error) {
	tok, err := d.next()
	if err != nil {
		return nil, d.finish(nil, err, opts)
	}
	v, err := d.decode(p.p.Root, tok)
	if err != nil {
		return nil, d.finish(v, err, opts)
	}
	switch extra, err := d.src.NextToken(); {
	case errors.Is(err, io.EOF):
		return v, nil
	case err != nil:
		return nil, d.finish(nil, &tokenError{err: err}, opts)
	default:
		return nil, d.finish(nil, &tokenError{err: errors.Newf("trailing %s after value", extra.Kind)}, opts)
	}
}

func (d *decoder) finish(partial any, err error, opts DecodeOptions) error {
	var te *tokenError
	if !errors.As(err, &te) {
		return err
	}
	cause := te.err
	if errors.Is(cause, io.EOF) {
		cause = io.ErrUnexpectedEOF
	}
	var dup *eng.DuplicateKeyError
	if errors.As(cause, &dup) {
		return &InvalidValueError{Path: dup.Path, Reason: "duplicate key " + strconv.Quote(dup.Key), Offset: dup.Offset}
	}
	pe := &PartialDecodeError{Resource: opts.Resource, Offset: d.src.Location(), Cause: cause}
	if opts.KeepPartial {
		pe.Partial = partial
	}
	return pe
}

func (d *decoder) next() (eng.Token, error) {
	if err := d.ctx.Err(); err != nil {
		return eng.Token{}, err
	}
	tok, err := d.src.NextToken()
	if err != nil {
		return eng.Token{}, &tokenError{err: err}
	}
	return tok, nil
}

func (d *decoder) invalid(tok eng.Token, reason string) error {
	return &InvalidValueError{Path: d.tracker.Path(), Reason: reason, Offset: tok.Offset}
}

func (d *decoder) expect(tok eng.Token, want eng.Kind, what string) error {
	if tok.Kind != want {
		return d.invalid(tok, "expected "+what+", got "+tok.Kind.String())
	}
	return nil
}

// decode reads the value starting at tok. On failure the returned value is
// whatever was built so far.
func (d *decoder) decode(n *ir.Node, tok eng.Token) (any, error) {
	switch n.Op {
	case ir.OpLiteral:
		return nil, d.expect(tok, eng.KindNull, "null")
	case ir.OpScalar:
		return d.scalar(n.Scalar, tok)
	case ir.OpNullCheck:
		if tok.Kind == eng.KindNull {
			return nil, nil
		}
		return d.decode(n.Else, tok)
	case ir.OpList:
		return d.list(n, tok)
	case ir.OpDict:
		return d.dict(n, tok)
	case ir.OpObject:
		return d.object(n, tok)
	case ir.OpDepthGuard:
		if d.depth > n.Limit {
			return nil, &MaxDepthExceededError{Class: n.Class, Limit: n.Limit, Depth: d.depth}
		}
		d.depth++
		v, err := d.decode(n.Elem, tok)
		d.depth--
		return v, err
	case ir.OpRecurse:
		root, err := d.m.recurse(n.Sig, Decode)
		if err != nil {
			return nil, err
		}
		return d.decode(root, tok)
	case ir.OpNormalize:
		v, err := d.decode(n.Elem, tok)
		if err != nil {
			return v, err
		}
		norm, err := d.m.denormalizer(n.Ref)
		if err != nil {
			return nil, err
		}
		out, err := norm.Denormalize(v, HookContext{Direction: Decode, Class: n.Sig})
		if err != nil {
			return nil, errors.Wrapf(err, "goserde: denormalizer %q at %s", n.Ref, d.tracker.Path())
		}
		return out, nil
	case ir.OpUnion:
		alt := pickByToken(n, tok)
		if alt == nil {
			return nil, d.invalid(tok, tok.Kind.String()+" matches no alternative of "+n.Sig)
		}
		return d.decode(alt, tok)
	case ir.OpOneOf:
		return d.oneOf(n, tok)
	}
	return nil, errors.Newf("goserde: unknown instruction %s", n.Op)
}

func (d *decoder) scalar(kind string, tok eng.Token) (any, error) {
	if tok.Kind == eng.KindNull {
		return nil, d.invalid(tok, "null for non-nullable "+kind)
	}
	switch kind {
	case ir.ScalarBool:
		if tok.Kind == eng.KindBool {
			return tok.Bool, nil
		}
	case ir.ScalarInt:
		if tok.Kind == eng.KindNumber {
			if i, err := strconv.ParseInt(tok.Number, 10, 64); err == nil {
				return i, nil
			}
			f, err := strconv.ParseFloat(tok.Number, 64)
			if err == nil && f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
				return int64(f), nil
			}
			return nil, d.invalid(tok, "number "+tok.Number+" is not an int")
		}
	case ir.ScalarFloat:
		if tok.Kind == eng.KindNumber {
			f, err := strconv.ParseFloat(tok.Number, 64)
			if err != nil {
				return nil, d.invalid(tok, "number "+tok.Number+" is out of range")
			}
			return f, nil
		}
	case ir.ScalarString:
		if tok.Kind == eng.KindString {
			return tok.String, nil
		}
	}
	return nil, d.invalid(tok, "expected "+kind+", got "+tok.Kind.String())
}

func (d *decoder) list(n *ir.Node, tok eng.Token) (any, error) {
	if err := d.expect(tok, eng.KindBeginArray, "list"); err != nil {
		return nil, err
	}
	out := []any{}
	for {
		tok, err := d.next()
		if err != nil {
			return out, err
		}
		if tok.Kind == eng.KindEndArray {
			return out, nil
		}
		v, err := d.decode(n.Elem, tok)
		if err != nil {
			return append(out, v), err
		}
		out = append(out, v)
	}
}

func (d *decoder) dict(n *ir.Node, tok eng.Token) (any, error) {
	if err := d.expect(tok, eng.KindBeginObject, "dict"); err != nil {
		return nil, err
	}
	var byString map[string]any
	var byInt map[int64]any
	var out any
	if n.KeyScalar == ir.ScalarInt {
		byInt = map[int64]any{}
		out = byInt
	} else {
		byString = map[string]any{}
		out = byString
	}
	for {
		tok, err := d.next()
		if err != nil {
			return out, err
		}
		if tok.Kind == eng.KindEndObject {
			return out, nil
		}
		key := tok.String
		var ikey int64
		if byInt != nil {
			if ikey, err = strconv.ParseInt(key, 10, 64); err != nil {
				return out, d.invalid(tok, "dict key "+strconv.Quote(key)+" is not an int")
			}
		}
		vt, err := d.next()
		if err != nil {
			return out, err
		}
		v, err := d.decode(n.Elem, vt)
		if byInt != nil {
			byInt[ikey] = v
		} else {
			byString[key] = v
		}
		if err != nil {
			return out, err
		}
	}
}

func (d *decoder) object(n *ir.Node, tok eng.Token) (any, error) {
	if err := d.expect(tok, eng.KindBeginObject, n.Class); err != nil {
		return nil, err
	}
	allow := d.allowKey
	d.allowKey = ""
	props := make(map[string]any, len(n.Fields))
	for {
		tok, err := d.next()
		if err != nil {
			return props, err
		}
		if tok.Kind == eng.KindEndObject {
			break
		}
		i := slices.IndexFunc(n.Fields, func(f ir.Field) bool { return f.Wire == tok.String })
		vt, err := d.next()
		if err != nil {
			return props, err
		}
		if i < 0 {
			if n.Strict && tok.String != allow {
				return props, &UnexpectedPropertyError{Class: n.Class, Property: tok.String, Path: d.tracker.Path(), Offset: tok.Offset}
			}
			if err := eng.Skip(d.src, vt); err != nil {
				return props, &tokenError{err: err}
			}
			continue
		}
		f := &n.Fields[i]
		v, err := d.decode(f.Node, vt)
		props[f.Source] = v
		if err != nil {
			return props, err
		}
	}
	return d.m.instantiate(n, props)
}

// oneOf reads ahead to the discriminator, then replays the consumed tokens
// into the selected variant.
func (d *decoder) oneOf(n *ir.Node, tok eng.Token) (any, error) {
	if err := d.expect(tok, eng.KindBeginObject, n.Sig); err != nil {
		return nil, err
	}
	buffered := []eng.Token{tok}
	variant := -1
	for variant < 0 {
		key, err := d.next()
		if err != nil {
			return nil, err
		}
		if key.Kind == eng.KindEndObject {
			return nil, d.invalid(key, "missing discriminator "+strconv.Quote(n.Discriminator))
		}
		buffered = append(buffered, key)
		vt, err := d.next()
		if err != nil {
			return nil, err
		}
		if key.String != n.Discriminator {
			rec, err := eng.Record(d.src, vt)
			if err != nil {
				return nil, &tokenError{err: err}
			}
			buffered = append(buffered, rec...)
			continue
		}
		if vt.Kind != eng.KindString {
			return nil, d.invalid(vt, "discriminator "+strconv.Quote(n.Discriminator)+" must be a string")
		}
		buffered = append(buffered, vt)
		if variant = slices.Index(n.Tags, vt.String); variant < 0 {
			return nil, d.invalid(vt, "unknown discriminator value "+strconv.Quote(vt.String))
		}
	}
	outer := d.src
	d.src = stream.NewReplaySource(outer, buffered)
	defer func() { d.src = outer }()
	first, err := d.next()
	if err != nil {
		return nil, err
	}
	d.allowKey = n.Discriminator
	return d.decode(n.Alts[variant], first)
}

// pickByToken selects the union alternative whose token class matches tok.
// The compiler guarantees at most one candidate per class, except that int
// and float alternatives share number tokens.
func pickByToken(n *ir.Node, tok eng.Token) *ir.Node {
	want := []string{}
	switch tok.Kind {
	case eng.KindNull:
		want = append(want, classNull)
	case eng.KindBool:
		want = append(want, classBool)
	case eng.KindString:
		want = append(want, classString)
	case eng.KindBeginArray:
		want = append(want, classList)
	case eng.KindBeginObject:
		want = append(want, classMap)
	case eng.KindNumber:
		if strings.ContainsAny(tok.Number, ".eE") {
			want = append(want, classFloat, classInt)
		} else {
			want = append(want, classInt, classFloat)
		}
	}
	for _, w := range want {
		for _, alt := range n.Alts {
			if slices.Contains(tokenClasses(alt), w) {
				return alt
			}
		}
	}
	return nil
}
