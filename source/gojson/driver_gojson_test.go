package gojson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eng "github.com/reoring/goserde/internal/engine"
)

func TestSource_KeysAndStrings(t *testing.T) {
	src := NewBytes([]byte(`{"k":"v","n":[{"k":"x"}],"z":-0.5}`))
	var kinds []eng.Kind
	var texts []string
	for {
		tok, err := src.NextToken()
		if err != nil {
			break
		}
		kinds = append(kinds, tok.Kind)
		switch tok.Kind {
		case eng.KindKey, eng.KindString:
			texts = append(texts, tok.String)
		case eng.KindNumber:
			texts = append(texts, tok.Number)
		}
	}
	assert.Equal(t, []eng.Kind{
		eng.KindBeginObject,
		eng.KindKey, eng.KindString,
		eng.KindKey, eng.KindBeginArray, eng.KindBeginObject, eng.KindKey, eng.KindString, eng.KindEndObject, eng.KindEndArray,
		eng.KindKey, eng.KindNumber,
		eng.KindEndObject,
	}, kinds)
	assert.Equal(t, []string{"k", "v", "n", "k", "x", "z", "-0.5"}, texts)
}

func TestDriver(t *testing.T) {
	d := Driver()
	assert.Equal(t, "go-json", d.Name())
	tok, err := d.NewBytes([]byte(`true`)).NextToken()
	require.NoError(t, err)
	assert.True(t, tok.Bool)
}
