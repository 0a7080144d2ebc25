package goserde

import (
	"sort"
	"strings"
)

// Kind enumerates the Type variants.
type Kind int

const (
	KindBool Kind = iota + 1
	KindInt
	KindFloat
	KindString
	KindNullable
	KindList
	KindDict
	KindObject
	KindUnion
	KindOneOf
)

var kindNames = map[Kind]string{
	KindBool:     "bool",
	KindInt:      "int",
	KindFloat:    "float",
	KindString:   "string",
	KindNullable: "nullable",
	KindList:     "list",
	KindDict:     "dict",
	KindObject:   "object",
	KindUnion:    "union",
	KindOneOf:    "oneof",
}

func (k Kind) String() string { return kindNames[k] }

// IsScalar reports whether k is bool, int, float or string.
func (k Kind) IsScalar() bool { return k >= KindBool && k <= KindString }

// Type is an immutable description of a value's shape. The zero Type is
// invalid; build types with the constructors below or ParseType.
//
// Object types are referenced by class name only. Their properties are
// supplied by a Resolver at compile time, which keeps every Type tree finite
// even for self-referential classes.
type Type struct {
	kind  Kind
	elem  *Type // nullable inner, list item, dict value
	key   *Type // dict key
	class string
	alts  []Type
	// oneof
	discriminator string
	variants      []Variant
	sig           string
}

// Variant maps one discriminator value to an object class.
type Variant struct {
	Tag   string
	Class string
}

func scalar(k Kind) Type { return Type{kind: k, sig: k.String()} }

// Bool returns the boolean scalar type.
func Bool() Type { return scalar(KindBool) }

// Int returns the integer scalar type.
func Int() Type { return scalar(KindInt) }

// Float returns the floating point scalar type.
func Float() Type { return scalar(KindFloat) }

// String returns the string scalar type.
func String() Type { return scalar(KindString) }

// Nullable wraps inner so that null is accepted. Nullable is idempotent.
func Nullable(inner Type) Type {
	if inner.kind == KindNullable {
		return inner
	}
	sig := inner.sig
	if inner.kind == KindUnion {
		sig = "(" + sig + ")"
	}
	return Type{kind: KindNullable, elem: &inner, sig: "?" + sig}
}

// List describes an ordered sequence of item.
func List(item Type) Type {
	return Type{kind: KindList, elem: &item, sig: "list<" + item.sig + ">"}
}

// Dict describes a mapping from key to value. Only string and int keys are
// representable on the wire; other key types fail at compile time.
func Dict(key, value Type) Type {
	return Type{kind: KindDict, key: &key, elem: &value, sig: "dict<" + key.sig + "," + value.sig + ">"}
}

// Object references a class whose properties come from the Resolver. Class
// names that are not plain identifiers are quoted in the signature.
func Object(class string) Type { return Type{kind: KindObject, class: class, sig: quoteName(class)} }

// Union describes a value matching one of alts. Nested unions are flattened,
// repeated alternatives dropped, and a single alternative is returned as is.
func Union(alts ...Type) Type {
	var flat []Type
	seen := map[string]struct{}{}
	for _, a := range alts {
		members := []Type{a}
		if a.kind == KindUnion {
			members = a.alts
		}
		for _, m := range members {
			if _, dup := seen[m.sig]; dup {
				continue
			}
			seen[m.sig] = struct{}{}
			flat = append(flat, m)
		}
	}
	if len(flat) == 1 {
		return flat[0]
	}
	sigs := make([]string, len(flat))
	for i, a := range flat {
		sigs[i] = a.sig
	}
	return Type{kind: KindUnion, alts: flat, sig: strings.Join(sigs, "|")}
}

// OneOf describes a union of object classes told apart by the value of the
// discriminator property: mapping is discriminator value -> class.
func OneOf(discriminator string, mapping map[string]string) Type {
	variants := make([]Variant, 0, len(mapping))
	for tag, class := range mapping {
		variants = append(variants, Variant{Tag: tag, Class: class})
	}
	sort.Slice(variants, func(i, j int) bool { return variants[i].Tag < variants[j].Tag })
	parts := make([]string, len(variants))
	for i, v := range variants {
		parts[i] = quoteName(v.Tag) + "=" + quoteName(v.Class)
	}
	return Type{
		kind:          KindOneOf,
		discriminator: discriminator,
		variants:      variants,
		sig:           "oneof<" + quoteName(discriminator) + ":" + strings.Join(parts, ",") + ">",
	}
}

// Kind returns the variant of t.
func (t Type) Kind() Kind { return t.kind }

// Valid reports whether t was built by a constructor.
func (t Type) Valid() bool { return t.kind != 0 }

// Elem returns the inner type of Nullable, the item type of List and the value
// type of Dict.
func (t Type) Elem() Type {
	if t.elem == nil {
		return Type{}
	}
	return *t.elem
}

// Key returns the key type of a Dict.
func (t Type) Key() Type {
	if t.key == nil {
		return Type{}
	}
	return *t.key
}

// Class returns the class name of an Object type.
func (t Type) Class() string { return t.class }

// Alternatives returns the members of a Union.
func (t Type) Alternatives() []Type { return append([]Type(nil), t.alts...) }

// Discriminator returns the discriminator property of a OneOf.
func (t Type) Discriminator() string { return t.discriminator }

// Variants returns the tag/class pairs of a OneOf, sorted by tag.
func (t Type) Variants() []Variant { return append([]Variant(nil), t.variants...) }

// IsNullable reports whether null is an acceptable value for t.
func (t Type) IsNullable() bool {
	if t.kind == KindNullable {
		return true
	}
	for _, a := range t.alts {
		if a.IsNullable() {
			return true
		}
	}
	return false
}

// Signature returns the canonical TypeSignature of t. ParseType is its inverse.
func (t Type) Signature() string { return t.sig }

func (t Type) String() string { return t.sig }

// Equal reports whether two types have the same signature.
func (t Type) Equal(o Type) bool { return t.sig == o.sig }
