package goserde

import (
	"fmt"
	"strconv"
)

// ParseType parses a TypeSignature as produced by Type.Signature:
//
//	bool | int | float | string      scalars
//	?T  ?(A|B)                       nullable
//	list<T>  dict<K,V>               collections
//	A|B|C                            union
//	oneof<prop:tag=Class,...>        discriminated union of classes
//	ClassName  "Any Name"            object reference
func ParseType(sig string) (Type, error) {
	p := &typeParser{src: sig}
	t, err := p.parseUnion()
	if err != nil {
		return Type{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return Type{}, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return t, nil
}

// MustParseType is like ParseType but panics on error. Intended for
// package-level type declarations and tests.
func MustParseType(sig string) Type {
	t, err := ParseType(sig)
	if err != nil {
		panic(err)
	}
	return t
}

type typeParser struct {
	src string
	pos int
}

func (p *typeParser) errorf(format string, args ...any) error {
	return &UnsupportedTypeError{Type: p.src, Reason: fmt.Sprintf("at offset %d: ", p.pos) + fmt.Sprintf(format, args...)}
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *typeParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *typeParser) expect(c byte) error {
	if p.peek() != c {
		return p.errorf("expected %q", c)
	}
	p.pos++
	return nil
}

func (p *typeParser) parseUnion() (Type, error) {
	first, err := p.parsePrimary()
	if err != nil {
		return Type{}, err
	}
	alts := []Type{first}
	for p.peek() == '|' {
		p.pos++
		next, err := p.parsePrimary()
		if err != nil {
			return Type{}, err
		}
		alts = append(alts, next)
	}
	return Union(alts...), nil
}

func (p *typeParser) parsePrimary() (Type, error) {
	switch p.peek() {
	case '?':
		p.pos++
		inner, err := p.parsePrimary()
		if err != nil {
			return Type{}, err
		}
		return Nullable(inner), nil
	case '(':
		p.pos++
		inner, err := p.parseUnion()
		if err != nil {
			return Type{}, err
		}
		return inner, p.expect(')')
	case '"':
		class, err := p.quoted()
		if err != nil {
			return Type{}, err
		}
		return Object(class), nil
	case 0:
		return Type{}, p.errorf("unexpected end of signature")
	}
	name := p.ident()
	if name == "" {
		return Type{}, p.errorf("expected type name")
	}
	switch name {
	case "bool":
		return Bool(), nil
	case "int":
		return Int(), nil
	case "float":
		return Float(), nil
	case "string":
		return String(), nil
	}
	if p.peek() != '<' {
		return Object(name), nil
	}
	p.pos++
	switch name {
	case "list":
		item, err := p.parseUnion()
		if err != nil {
			return Type{}, err
		}
		return List(item), p.expect('>')
	case "dict":
		key, err := p.parseUnion()
		if err != nil {
			return Type{}, err
		}
		if err := p.expect(','); err != nil {
			return Type{}, err
		}
		value, err := p.parseUnion()
		if err != nil {
			return Type{}, err
		}
		return Dict(key, value), p.expect('>')
	case "oneof":
		return p.parseOneOf()
	default:
		return Type{}, p.errorf("%s does not take type arguments", name)
	}
}

func (p *typeParser) parseOneOf() (Type, error) {
	prop, err := p.name()
	if err != nil {
		return Type{}, err
	}
	if prop == "" {
		return Type{}, p.errorf("oneof needs a discriminator property")
	}
	if err := p.expect(':'); err != nil {
		return Type{}, err
	}
	mapping := map[string]string{}
	for {
		tag, err := p.name()
		if err != nil {
			return Type{}, err
		}
		if err := p.expect('='); err != nil {
			return Type{}, err
		}
		class, err := p.name()
		if err != nil {
			return Type{}, err
		}
		if class == "" {
			return Type{}, p.errorf("oneof variant %q needs a class", tag)
		}
		if _, dup := mapping[tag]; dup {
			return Type{}, p.errorf("duplicate oneof tag %q", tag)
		}
		mapping[tag] = class
		if p.peek() == ',' {
			p.pos++
			continue
		}
		break
	}
	return OneOf(prop, mapping), p.expect('>')
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '.' || c == '\\' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func (p *typeParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && isIdentByte(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

// quoted reads a double-quoted name as written by quoteName.
func (p *typeParser) quoted() (string, error) {
	q, err := strconv.QuotedPrefix(p.src[p.pos:])
	if err != nil {
		return "", p.errorf("unterminated quoted name")
	}
	p.pos += len(q)
	s, err := strconv.Unquote(q)
	if err != nil {
		return "", p.errorf("invalid quoted name %s", q)
	}
	return s, nil
}

// name reads a bare identifier or a quoted name.
func (p *typeParser) name() (string, error) {
	if p.peek() == '"' {
		return p.quoted()
	}
	return p.ident(), nil
}

// quoteName returns name as it is written in a signature: bare when it is a
// plain identifier that is not a scalar keyword, quoted otherwise.
func quoteName(name string) string {
	switch name {
	case "", "bool", "int", "float", "string":
		return strconv.Quote(name)
	}
	for i := 0; i < len(name); i++ {
		if !isIdentByte(name[i]) {
			return strconv.Quote(name)
		}
	}
	return name
}
