package goserde_test

import (
	"context"
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	goserde "github.com/reoring/goserde"
	"github.com/reoring/goserde/resolver"
)

// classes used across the root tests:
//
//	User    {id int, name string, email ?string, tags list<string>}
//	Node    {value int, next ?Node}
//	Known   {known int}
//	Dog/Cat {kind string, name string, barks|lives}
func testResolver() *resolver.Static {
	return resolver.NewStatic().
		Define("User",
			resolver.Prop("id", goserde.Int()),
			resolver.Prop("name", goserde.String()),
			resolver.Prop("email", goserde.Nullable(goserde.String())),
			resolver.Prop("tags", goserde.List(goserde.String())),
		).
		Define("Node",
			resolver.Prop("value", goserde.Int()),
			resolver.Prop("next", goserde.Nullable(goserde.Object("Node"))),
		).
		Define("Known", resolver.Prop("known", goserde.Int())).
		Define("Dog",
			resolver.Prop("kind", goserde.String()),
			resolver.Prop("name", goserde.String()),
			resolver.Prop("barks", goserde.Bool()),
		).
		Define("Cat",
			resolver.Prop("kind", goserde.String()),
			resolver.Prop("name", goserde.String()),
			resolver.Prop("lives", goserde.Int()),
		)
}

func newMarshaller(opts ...goserde.Option) *goserde.Marshaller {
	return goserde.New(testResolver(), opts...)
}

func user() map[string]any {
	return map[string]any{
		"id":    int64(7),
		"name":  "Ada",
		"email": nil,
		"tags":  []any{"admin", "ops"},
	}
}

// chain builds a Node list with depth objects nested below the root, so the
// deepest object sits at depth.
func chain(depth int) map[string]any {
	var next any
	for i := depth; i >= 0; i-- {
		next = map[string]any{"value": int64(i), "next": next}
	}
	return next.(map[string]any)
}

func marshal(t *testing.T, m *goserde.Marshaller, typ goserde.Type, v any) string {
	t.Helper()
	out, err := m.Marshal(context.Background(), typ, v)
	require.NoError(t, err)
	return string(out)
}

func unmarshal(t *testing.T, m *goserde.Marshaller, typ goserde.Type, data string) any {
	t.Helper()
	v, err := m.Unmarshal(context.Background(), typ, []byte(data))
	require.NoError(t, err)
	return v
}

// collect drains an encode sequence into its chunks.
func collect(t *testing.T, seq iter.Seq2[[]byte, error]) []string {
	t.Helper()
	var chunks []string
	for chunk, err := range seq {
		require.NoError(t, err)
		chunks = append(chunks, string(chunk))
	}
	return chunks
}

func countOutsideStrings(s string, c byte) int {
	n, inString, escaped := 0, false, false
	for i := 0; i < len(s); i++ {
		switch {
		case escaped:
			escaped = false
		case s[i] == '\\':
			escaped = true
		case s[i] == '"':
			inString = !inString
		case !inString && s[i] == c:
			n++
		}
	}
	return n
}

func mustParse(sig string) goserde.Type { return goserde.MustParseType(strings.TrimSpace(sig)) }
