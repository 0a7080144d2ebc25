package stream

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	eng "github.com/reoring/goserde/internal/engine"
)

type tail struct {
	toks []eng.Token
}

func (t *tail) NextToken() (eng.Token, error) {
	if len(t.toks) == 0 {
		return eng.Token{}, io.EOF
	}
	tok := t.toks[0]
	t.toks = t.toks[1:]
	return tok, nil
}

func (t *tail) Location() int64 { return 99 }

func TestReplaySource(t *testing.T) {
	inner := &tail{toks: []eng.Token{{Kind: eng.KindEndObject, Offset: 20}}}
	r := NewReplaySource(inner, []eng.Token{
		{Kind: eng.KindBeginObject, Offset: 1},
		{Kind: eng.KindKey, String: "kind", Offset: 8},
		{Kind: eng.KindString, String: "dog", Offset: 14},
	})

	require.Equal(t, int64(1), r.Location())
	var kinds []eng.Kind
	for {
		tok, err := r.NextToken()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		kinds = append(kinds, tok.Kind)
	}
	require.Equal(t, []eng.Kind{eng.KindBeginObject, eng.KindKey, eng.KindString, eng.KindEndObject}, kinds)
	require.Equal(t, int64(99), r.Location())
}
