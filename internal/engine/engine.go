package engine

import (
	"strconv"
)

// Kind represents token kinds from a generic source.
type Kind int

const (
	KindBeginObject Kind = iota
	KindEndObject
	KindBeginArray
	KindEndArray
	KindKey
	KindString
	KindNumber
	KindBool
	KindNull
)

var kindNames = [...]string{
	KindBeginObject: "'{'",
	KindEndObject:   "'}'",
	KindBeginArray:  "'['",
	KindEndArray:    "']'",
	KindKey:         "key",
	KindString:      "string",
	KindNumber:      "number",
	KindBool:        "bool",
	KindNull:        "null",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "token(" + strconv.Itoa(int(k)) + ")"
}

// Token represents a streaming token with approximate input offset.
type Token struct {
	Kind   Kind
	String string
	Number string
	Bool   bool
	Offset int64
}

// TokenSource is a minimal interface required by the engine.
type TokenSource interface {
	NextToken() (Token, error)
	Location() int64
}

// Skip consumes the rest of the value whose first token is first. Scalars are
// already complete; containers are drained up to their matching end token.
func Skip(src TokenSource, first Token) error {
	depth := 0
	tok := first
	for {
		switch tok.Kind {
		case KindBeginObject, KindBeginArray:
			depth++
		case KindEndObject, KindEndArray:
			depth--
		}
		if depth <= 0 {
			return nil
		}
		var err error
		if tok, err = src.NextToken(); err != nil {
			return err
		}
	}
}

// Record reads the value whose first token is first and returns all of its
// tokens, first included, so they can be replayed later.
func Record(src TokenSource, first Token) ([]Token, error) {
	out := []Token{first}
	depth := 0
	tok := first
	for {
		switch tok.Kind {
		case KindBeginObject, KindBeginArray:
			depth++
		case KindEndObject, KindEndArray:
			depth--
		}
		if depth <= 0 {
			return out, nil
		}
		var err error
		if tok, err = src.NextToken(); err != nil {
			return out, err
		}
		out = append(out, tok)
	}
}
