package goserde

import (
	"reflect"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	eng "github.com/reoring/goserde/internal/engine"
	"github.com/reoring/goserde/internal/ir"
)

// Program is an immutable compiled instruction tree for one
// (type, config, direction). Programs are safe for concurrent use.
type Program struct {
	p *ir.Program
}

// Type returns the signature of the type the program was compiled from.
func (p *Program) Type() string { return p.p.Type }

// Direction reports whether p encodes or decodes.
func (p *Program) Direction() Direction {
	if p.p.Direction == Decode.String() {
		return Decode
	}
	return Encode
}

// Dump renders p as indented text, one instruction per line.
func (p *Program) Dump() string { return ir.Dump(p.p) }

// Compile turns t into a Program for dir. Object properties come from r.
// Compile is deterministic: equal inputs produce structurally identical
// programs. It does not consult any cache; see Cache and Marshaller.
func Compile(t Type, cfg Config, dir Direction, r Resolver) (*Program, error) {
	if !t.Valid() {
		return nil, &UnsupportedTypeError{Reason: "zero Type"}
	}
	if dir != Encode && dir != Decode {
		return nil, errors.Newf("goserde: invalid direction %d", dir)
	}
	if r == nil {
		return nil, errors.New("goserde: nil resolver")
	}
	c := &compiler{cfg: cfg, dir: dir, res: r, flags: uint32(cfg.flags)}
	root, err := c.compile(t, "")
	if err != nil {
		return nil, err
	}
	return &Program{p: &ir.Program{
		Format:    ir.Format,
		Direction: dir.String(),
		Type:      t.Signature(),
		Flags:     c.flags,
		Root:      root,
	}}, nil
}

type compiler struct {
	cfg   Config
	dir   Direction
	res   Resolver
	flags uint32
	// classes whose properties are being compiled; a nested reference to one of
	// them becomes a Recurse instruction.
	classes []string
	// normalizer signatures being expanded.
	normalizing []string
}

func (c *compiler) compile(t Type, skipNormalizer string) (*ir.Node, error) {
	sig := t.Signature()
	if ref, ok := c.cfg.Normalizer(sig); ok && sig != skipNormalizer {
		return c.compileNormalizer(t, ref)
	}
	switch t.Kind() {
	case KindBool, KindInt, KindFloat, KindString:
		return &ir.Node{Op: ir.OpScalar, Scalar: sig, Sig: sig}, nil
	case KindNullable:
		inner, err := c.compile(t.Elem(), "")
		if err != nil {
			return nil, err
		}
		return &ir.Node{Op: ir.OpNullCheck, Sig: sig, Then: &ir.Node{Op: ir.OpLiteral, Literal: "null"}, Else: inner}, nil
	case KindList:
		item, err := c.compile(t.Elem(), "")
		if err != nil {
			return nil, err
		}
		return &ir.Node{Op: ir.OpList, Sig: sig, Elem: item}, nil
	case KindDict:
		k := t.Key().Kind()
		if k != KindString && k != KindInt {
			return nil, &UnsupportedTypeError{Type: sig, Reason: "dict keys must be string or int"}
		}
		value, err := c.compile(t.Elem(), "")
		if err != nil {
			return nil, err
		}
		return &ir.Node{Op: ir.OpDict, Sig: sig, KeyScalar: k.String(), Elem: value}, nil
	case KindObject:
		return c.compileObject(t)
	case KindUnion:
		return c.compileUnion(t)
	case KindOneOf:
		return c.compileOneOf(t)
	}
	return nil, &UnsupportedTypeError{Type: sig, Reason: "unknown type kind"}
}

func (c *compiler) compileNormalizer(t Type, ref string) (*ir.Node, error) {
	sig := t.Signature()
	bad := func(reason string) error {
		return &InvalidHookSignatureError{Type: sig, Ref: ref, Reason: reason}
	}
	if slices.Contains(c.normalizing, sig) {
		return nil, bad("normalized type refers back to " + sig)
	}
	svc, ok := c.cfg.lookup(ref)
	if !ok {
		return nil, bad("no such service")
	}
	n, ok := svc.(Normalizer)
	if !ok {
		return nil, bad("service does not implement Normalizer")
	}
	if c.dir == Decode {
		if _, ok := svc.(Denormalizer); !ok {
			return nil, bad("service does not implement Denormalizer")
		}
	}
	target := n.NormalizedType()
	if !target.Valid() {
		return nil, bad("normalized type is invalid")
	}
	c.normalizing = append(c.normalizing, sig)
	elem, err := c.compile(target, sig)
	c.normalizing = c.normalizing[:len(c.normalizing)-1]
	if err != nil {
		return nil, err
	}
	return &ir.Node{Op: ir.OpNormalize, Sig: sig, Ref: ref, Elem: elem}, nil
}

func (c *compiler) compileObject(t Type) (*ir.Node, error) {
	class := t.Class()
	if slices.Contains(c.classes, class) {
		return &ir.Node{Op: ir.OpRecurse, Sig: t.Signature(), Class: class}, nil
	}
	props, err := c.res.Resolve(class)
	if err != nil {
		return nil, unresolvable(class, err)
	}
	c.classes = append(c.classes, class)
	defer func() { c.classes = c.classes[:len(c.classes)-1] }()

	hookRef, hooked := c.cfg.Hook(t.Signature())
	var encHook EncodeHook
	var decHook DecodeHook
	if hooked {
		svc, ok := c.cfg.lookup(hookRef)
		if !ok {
			return nil, &InvalidHookSignatureError{Type: class, Ref: hookRef, Reason: "no such service"}
		}
		if c.dir == Encode {
			encHook, ok = svc.(EncodeHook)
		} else {
			decHook, ok = svc.(DecodeHook)
		}
		if !ok {
			return nil, &InvalidHookSignatureError{Type: class, Ref: hookRef, Reason: "service does not implement " + c.dir.String() + " hook"}
		}
	}

	fields := make([]ir.Field, 0, len(props))
	for _, p := range props {
		f := ir.Field{Source: p.Name, Wire: p.Wire()}
		typ, acc := p.Type, p.Accessor
		if hooked {
			ctx := HookContext{Direction: c.dir, Class: class, Property: p.Name}
			var ov PropertyOverride
			if encHook != nil {
				ov, err = encHook.EncodeProperty(p, ctx)
			} else {
				ov, err = decHook.DecodeProperty(p, ctx)
			}
			if err != nil {
				return nil, errors.Wrapf(err, "goserde: hook %q on %s.%s", hookRef, class, p.Name)
			}
			if ov.WireName != "" {
				f.Wire = ov.WireName
			}
			retyped := ov.Type != nil
			if retyped {
				typ = *ov.Type
			}
			if ov.Accessor != nil && c.dir == Encode {
				acc = ov.Accessor
				f.AccessorHook = hookRef
				retyped = true
			}
			if retyped {
				if err := checkAccessorType(typ, acc); err != nil {
					return nil, &InvalidHookSignatureError{Type: class, Property: p.Name, Ref: hookRef, Reason: err.Error()}
				}
			}
			f.Context = ov.Context
		}
		if f.Wire == "" {
			return nil, &InvalidHookSignatureError{Type: class, Property: p.Name, Ref: hookRef, Reason: "empty wire name"}
		}
		if f.Node, err = c.compile(typ, ""); err != nil {
			return nil, err
		}
		key, err := eng.AppendString(nil, f.Wire, c.flags)
		if err != nil {
			return nil, &UnsupportedTypeError{Type: class, Reason: "wire name " + f.Wire + ": " + err.Error()}
		}
		f.Key = string(key) + eng.KeySeparator(c.flags)
		fields = append(fields, f)
	}
	if dups := lo.FindDuplicates(lo.Map(fields, func(f ir.Field, _ int) string { return f.Wire })); len(dups) > 0 {
		if hooked {
			return nil, &InvalidHookSignatureError{Type: class, Ref: hookRef, Reason: "duplicate wire name " + dups[0]}
		}
		return nil, &UnsupportedTypeError{Type: class, Reason: "duplicate wire name " + dups[0]}
	}

	obj := &ir.Node{
		Op:     ir.OpObject,
		Sig:    t.Signature(),
		Class:  class,
		Fields: fields,
		Strict: c.cfg.onUnknown == UnknownError,
	}
	if hooked && c.dir == Decode {
		obj.Hook = hookRef
	}
	if c.cfg.maxDepth > 0 {
		return &ir.Node{Op: ir.OpDepthGuard, Sig: t.Signature(), Class: class, Limit: c.cfg.maxDepth, Elem: obj}, nil
	}
	return obj, nil
}

func (c *compiler) compileUnion(t Type) (*ir.Node, error) {
	alts := make([]*ir.Node, 0, len(t.alts))
	for _, a := range t.alts {
		n, err := c.compile(a, "")
		if err != nil {
			return nil, err
		}
		alts = append(alts, n)
	}
	if _, ok := c.res.(ClassResolver); !ok && c.dir == Encode {
		if objs := lo.Filter(alts, func(n *ir.Node, _ int) bool { return isObjectNode(n) }); len(objs) > 1 {
			return nil, &UnsupportedTypeError{
				Type:   t.Signature(),
				Reason: "object alternatives cannot be told apart on encode without a ClassResolver",
			}
		}
	}
	if c.dir == Decode {
		seen := map[string]string{}
		for i, n := range alts {
			for _, cls := range tokenClasses(n) {
				if cls == classNull {
					continue
				}
				if prev, dup := seen[cls]; dup {
					return nil, &UnsupportedTypeError{
						Type:   t.Signature(),
						Reason: "alternatives " + prev + " and " + t.alts[i].Signature() + " cannot be told apart on decode",
					}
				}
				seen[cls] = t.alts[i].Signature()
			}
		}
	}
	return &ir.Node{Op: ir.OpUnion, Sig: t.Signature(), Alts: alts}, nil
}

func (c *compiler) compileOneOf(t Type) (*ir.Node, error) {
	if t.discriminator == "" || len(t.variants) == 0 {
		return nil, &UnsupportedTypeError{Type: t.Signature(), Reason: "oneof needs a discriminator and variants"}
	}
	n := &ir.Node{Op: ir.OpOneOf, Sig: t.Signature(), Discriminator: t.discriminator}
	for _, v := range t.variants {
		alt, err := c.compile(Object(v.Class), "")
		if err != nil {
			return nil, err
		}
		if !isObjectNode(alt) {
			return nil, &UnsupportedTypeError{Type: t.Signature(), Reason: "variant " + v.Class + " does not compile to an object"}
		}
		n.Alts = append(n.Alts, alt)
		n.Tags = append(n.Tags, v.Tag)
		n.Classes = append(n.Classes, v.Class)
	}
	return n, nil
}

// Token classes a decoded value may start with.
const (
	classNull   = "null"
	classBool   = "bool"
	classInt    = "int"
	classFloat  = "float"
	classString = "string"
	classList   = "list"
	classMap    = "map"
)

// isObjectNode reports whether n reads or writes a JSON object of a class.
func isObjectNode(n *ir.Node) bool {
	switch n.Op {
	case ir.OpNullCheck:
		return isObjectNode(n.Else)
	case ir.OpDepthGuard:
		return isObjectNode(n.Elem)
	case ir.OpObject, ir.OpRecurse, ir.OpOneOf:
		return true
	}
	return false
}

func tokenClasses(n *ir.Node) []string {
	switch n.Op {
	case ir.OpScalar:
		return []string{n.Scalar}
	case ir.OpNullCheck:
		return append([]string{classNull}, tokenClasses(n.Else)...)
	case ir.OpList:
		return []string{classList}
	case ir.OpDict, ir.OpObject, ir.OpRecurse, ir.OpOneOf:
		return []string{classMap}
	case ir.OpDepthGuard, ir.OpNormalize:
		return tokenClasses(n.Elem)
	case ir.OpUnion:
		var out []string
		for _, a := range n.Alts {
			out = append(out, tokenClasses(a)...)
		}
		return lo.Uniq(out)
	}
	return nil
}

// checkAccessorType reports whether values read through acc can be encoded as
// t. Untyped accessors are not checked.
func checkAccessorType(t Type, acc Accessor) error {
	ta, ok := acc.(TypedAccessor)
	if !ok || ta.GoType() == nil {
		return nil
	}
	if !goTypeFits(t, ta.GoType()) {
		return errors.Newf("type %s is incompatible with accessor type %s", t.Signature(), ta.GoType())
	}
	return nil
}

func goTypeFits(t Type, rt reflect.Type) bool {
	if rt.Kind() == reflect.Interface {
		return true
	}
	switch t.Kind() {
	case KindBool:
		return rt.Kind() == reflect.Bool
	case KindInt:
		return isIntKind(rt.Kind())
	case KindFloat:
		return isIntKind(rt.Kind()) || rt.Kind() == reflect.Float32 || rt.Kind() == reflect.Float64
	case KindString:
		return rt.Kind() == reflect.String
	case KindNullable:
		if rt.Kind() == reflect.Pointer {
			return goTypeFits(t.Elem(), rt.Elem())
		}
		return goTypeFits(t.Elem(), rt)
	case KindList:
		return (rt.Kind() == reflect.Slice || rt.Kind() == reflect.Array) && goTypeFits(t.Elem(), rt.Elem())
	case KindDict:
		return rt.Kind() == reflect.Map && goTypeFits(t.Key(), rt.Key()) && goTypeFits(t.Elem(), rt.Elem())
	case KindObject, KindOneOf:
		k := rt.Kind()
		if k == reflect.Pointer {
			k = rt.Elem().Kind()
		}
		return k == reflect.Struct || k == reflect.Map
	case KindUnion:
		for _, a := range t.alts {
			if goTypeFits(a, rt) {
				return true
			}
		}
	}
	return false
}

func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
