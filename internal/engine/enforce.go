package engine

import (
	"strconv"
	"strings"
)

// Tracking wrapper for TokenSource. It maintains the JSON Pointer of the value
// being read so decode errors can name their location, and optionally rejects
// duplicate object keys in a streaming fashion.

// EnforceOptions controls runtime enforcement behavior.
type EnforceOptions struct {
	RejectDuplicates bool
}

// DuplicateKeyError reports a key repeated inside one object.
type DuplicateKeyError struct {
	Path   string
	Key    string
	Offset int64
}

func (e *DuplicateKeyError) Error() string {
	return "key '" + e.Key + "' duplicated at " + e.Path
}

type containerKind int

const (
	kindObject containerKind = iota
	kindArray
)

type frame struct {
	kind         containerKind
	keys         map[string]struct{}
	expectingKey bool
	path         string
	nextIndex    int
	pendingKey   string
}

// Tracker is a TokenSource that records the current JSON Pointer.
type Tracker struct {
	inner TokenSource
	opt   EnforceOptions
	stack []frame
	path  string
}

// WrapWithEnforcement returns a Tracker reading from inner.
func WrapWithEnforcement(inner TokenSource, opt EnforceOptions) *Tracker {
	return &Tracker{inner: inner, opt: opt}
}

// Path returns the JSON Pointer of the most recently returned token ("/" for the root).
func (e *Tracker) Path() string { return normalizeIssuePath(e.path) }

func (e *Tracker) NextToken() (Token, error) {
	tok, err := e.inner.NextToken()
	if err != nil {
		return Token{}, err
	}

	path := e.currentPathForToken(tok)

	switch tok.Kind {
	case KindBeginObject:
		f := frame{kind: kindObject, expectingKey: true, path: path}
		if e.opt.RejectDuplicates {
			f.keys = make(map[string]struct{})
		}
		e.stack = append(e.stack, f)
	case KindBeginArray:
		e.stack = append(e.stack, frame{kind: kindArray, path: path})
	case KindEndObject, KindEndArray:
		if n := len(e.stack); n > 0 {
			e.stack = e.stack[:n-1]
		}
		e.valueDone()
	case KindKey:
		if n := len(e.stack); n > 0 {
			top := &e.stack[n-1]
			if top.kind == kindObject && top.expectingKey {
				if top.keys != nil {
					if _, ok := top.keys[tok.String]; ok {
						return Token{}, &DuplicateKeyError{Path: normalizeIssuePath(path), Key: tok.String, Offset: tok.Offset}
					}
					top.keys[tok.String] = struct{}{}
				}
				top.expectingKey = false
				top.pendingKey = tok.String
			}
		}
	case KindString, KindNumber, KindBool, KindNull:
		e.valueDone()
	}
	return tok, nil
}

func (e *Tracker) valueDone() {
	if n := len(e.stack); n > 0 {
		top := &e.stack[n-1]
		if top.kind == kindObject && !top.expectingKey {
			top.expectingKey = true
			top.pendingKey = ""
		}
	}
}

func (e *Tracker) currentPathForToken(tok Token) string {
	if len(e.stack) == 0 {
		e.path = ""
		return e.path
	}

	top := &e.stack[len(e.stack)-1]
	var path string
	switch tok.Kind {
	case KindKey:
		path = joinJSONPointer(top.path, tok.String)
	case KindBeginObject, KindBeginArray, KindString, KindNumber, KindBool, KindNull:
		switch {
		case top.kind == kindArray:
			path = joinJSONPointer(top.path, strconv.Itoa(top.nextIndex))
			top.nextIndex++
		case !top.expectingKey:
			path = joinJSONPointer(top.path, top.pendingKey)
		default:
			path = top.path
		}
	default:
		path = top.path
	}
	e.path = path
	return path
}

func normalizeIssuePath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

var jsonPointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

func joinJSONPointer(base, token string) string {
	return base + "/" + jsonPointerEscaper.Replace(token)
}

func (e *Tracker) Location() int64 { return e.inner.Location() }
