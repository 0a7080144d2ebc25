// Package gojson provides a JSON driver backed by goccy/go-json.
package gojson

import (
	"bytes"
	"io"
	"strconv"

	j "github.com/goccy/go-json"

	goserde "github.com/reoring/goserde"
	eng "github.com/reoring/goserde/internal/engine"
)

// Driver returns a goserde.JSONDriver backed by goccy/go-json.
func Driver() goserde.JSONDriver { return driverGoJSON{} }

type driverGoJSON struct{}

func (driverGoJSON) NewReader(r io.Reader) goserde.Source { return goserde.SourceFromEngine(NewReader(r)) }
func (driverGoJSON) NewBytes(b []byte) goserde.Source     { return goserde.SourceFromEngine(NewBytes(b)) }
func (driverGoJSON) Name() string                         { return "go-json" }

type frame struct {
	object       bool
	expectingKey bool
}

type source struct {
	dec   *j.Decoder
	stack []frame
	last  int64
}

// NewReader wraps an io.Reader into an engine.TokenSource using go-json.
func NewReader(r io.Reader) eng.TokenSource {
	dec := j.NewDecoder(r)
	dec.UseNumber()
	return &source{dec: dec, last: -1}
}

// NewBytes wraps a byte slice into an engine.TokenSource using go-json.
func NewBytes(b []byte) eng.TokenSource { return NewReader(bytes.NewReader(b)) }

func (s *source) NextToken() (eng.Token, error) {
	tok, err := s.dec.Token()
	if err != nil {
		return eng.Token{}, err
	}
	s.last = s.dec.InputOffset()
	out := eng.Token{Offset: s.last}

	switch v := tok.(type) {
	case j.Delim:
		switch v {
		case '{':
			s.stack = append(s.stack, frame{object: true, expectingKey: true})
			out.Kind = eng.KindBeginObject
			return out, nil
		case '[':
			s.stack = append(s.stack, frame{})
			out.Kind = eng.KindBeginArray
			return out, nil
		case '}':
			out.Kind = eng.KindEndObject
		default:
			out.Kind = eng.KindEndArray
		}
		if n := len(s.stack); n > 0 {
			s.stack = s.stack[:n-1]
		}
	case string:
		if n := len(s.stack); n > 0 && s.stack[n-1].object && s.stack[n-1].expectingKey {
			s.stack[n-1].expectingKey = false
			out.Kind, out.String = eng.KindKey, v
			return out, nil
		}
		out.Kind, out.String = eng.KindString, v
	case bool:
		out.Kind, out.Bool = eng.KindBool, v
	case j.Number:
		out.Kind, out.Number = eng.KindNumber, string(v)
	case float64:
		out.Kind, out.Number = eng.KindNumber, strconv.FormatFloat(v, 'g', -1, 64)
	default:
		out.Kind = eng.KindNull
	}
	if n := len(s.stack); n > 0 && s.stack[n-1].object {
		s.stack[n-1].expectingKey = true
	}
	return out, nil
}

func (s *source) Location() int64 { return s.last }
