package engine

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// sliceSource replays a fixed token list.
type sliceSource struct {
	toks []Token
	pos  int
}

func (s *sliceSource) NextToken() (Token, error) {
	if s.pos >= len(s.toks) {
		return Token{}, io.EOF
	}
	t := s.toks[s.pos]
	s.pos++
	return t, nil
}

func (s *sliceSource) Location() int64 { return int64(s.pos) }

func objectTokens() []Token {
	return []Token{
		{Kind: KindBeginObject},
		{Kind: KindKey, String: "a"},
		{Kind: KindBeginArray},
		{Kind: KindNumber, Number: "1"},
		{Kind: KindBeginObject},
		{Kind: KindKey, String: "b"},
		{Kind: KindNull},
		{Kind: KindEndObject},
		{Kind: KindEndArray},
		{Kind: KindKey, String: "c"},
		{Kind: KindString, String: "x"},
		{Kind: KindEndObject},
	}
}

func TestSkip_DrainsContainer(t *testing.T) {
	src := &sliceSource{toks: append(objectTokens(), Token{Kind: KindBool, Bool: true})}
	first, _ := src.NextToken()
	require.NoError(t, Skip(src, first))
	next, err := src.NextToken()
	require.NoError(t, err)
	require.Equal(t, KindBool, next.Kind)
}

func TestSkip_Scalar(t *testing.T) {
	src := &sliceSource{toks: []Token{{Kind: KindString}}}
	require.NoError(t, Skip(src, Token{Kind: KindNumber, Number: "3"}))
	require.Equal(t, 0, src.pos)
}

func TestRecord_ReturnsWholeValue(t *testing.T) {
	toks := objectTokens()
	src := &sliceSource{toks: toks}
	first, _ := src.NextToken()
	rec, err := Record(src, first)
	require.NoError(t, err)
	require.Equal(t, toks, rec)
}

func TestRecord_Truncated(t *testing.T) {
	src := &sliceSource{toks: objectTokens()[:4]}
	first, _ := src.NextToken()
	_, err := Record(src, first)
	require.ErrorIs(t, err, io.EOF)
}

func TestTracker_PathsAndDuplicates(t *testing.T) {
	toks := []Token{
		{Kind: KindBeginArray},
		{Kind: KindBeginObject},
		{Kind: KindKey, String: "a/b"},
		{Kind: KindNumber, Number: "1"},
		{Kind: KindKey, String: "a/b"},
	}
	tr := WrapWithEnforcement(&sliceSource{toks: toks}, EnforceOptions{RejectDuplicates: true})
	for i := 0; i < 4; i++ {
		_, err := tr.NextToken()
		require.NoError(t, err)
	}
	require.Equal(t, "/0/a~1b", tr.Path())
	_, err := tr.NextToken()
	var dup *DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, "a/b", dup.Key)
	require.Equal(t, "/0/a~1b", dup.Path)
}

func TestTracker_AllowsDuplicatesByDefault(t *testing.T) {
	toks := []Token{
		{Kind: KindBeginObject},
		{Kind: KindKey, String: "a"},
		{Kind: KindNumber, Number: "1"},
		{Kind: KindKey, String: "a"},
		{Kind: KindNumber, Number: "2"},
		{Kind: KindEndObject},
	}
	tr := WrapWithEnforcement(&sliceSource{toks: toks}, EnforceOptions{})
	for range toks {
		_, err := tr.NextToken()
		require.NoError(t, err)
	}
	require.Equal(t, "/", tr.Path())
}

func TestAppendString_Escaping(t *testing.T) {
	cases := []struct {
		in    string
		flags uint32
		want  string
	}{
		{in: `a"b\c`, want: `"a\"b\\c"`},
		{in: "line\nbreak\t", want: `"line\nbreak\t"`},
		{in: "a/b", want: `"a\/b"`},
		{in: "a/b", flags: FlagUnescapedSlashes, want: `"a/b"`},
		{in: "é", want: `"\u00e9"`},
		{in: "é", flags: FlagUnescapedUnicode, want: `"é"`},
		{in: "😀", want: `"\ud83d\ude00"`},
		{in: "<&>", flags: FlagUnescapedSlashes | FlagUnescapedUnicode, want: `"<&>"`},
	}
	for _, tc := range cases {
		got, err := AppendString(nil, tc.in, tc.flags)
		require.NoError(t, err)
		require.Equal(t, tc.want, string(got), "input %q", tc.in)
	}
}

func TestAppendFloat(t *testing.T) {
	got, err := AppendFloat(nil, 1.5, 0)
	require.NoError(t, err)
	require.Equal(t, "1.5", string(got))

	got, err = AppendFloat(nil, 10, 0)
	require.NoError(t, err)
	require.Equal(t, "10", string(got))

	got, err = AppendFloat(nil, 10, FlagPreserveZeroFraction)
	require.NoError(t, err)
	require.Equal(t, "10.0", string(got))
}

func TestAppendNewline(t *testing.T) {
	require.Equal(t, "\n        ", string(AppendNewline(nil, 2)))
}
