package goserde_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goserde "github.com/reoring/goserde"
	"github.com/reoring/goserde/normalizer"
	"github.com/reoring/goserde/resolver"
)

func TestEncode_Object(t *testing.T) {
	m := newMarshaller()
	got := marshal(t, m, goserde.Object("User"), user())
	assert.Equal(t, `{"id":7,"name":"Ada","email":null,"tags":["admin","ops"]}`, got)
}

func TestEncode_Scalars(t *testing.T) {
	m := newMarshaller()
	cases := []struct {
		typ  goserde.Type
		v    any
		want string
	}{
		{goserde.Bool(), true, "true"},
		{goserde.Int(), int64(-3), "-3"},
		{goserde.Int(), uint8(200), "200"},
		{goserde.Float(), 1.5, "1.5"},
		{goserde.Float(), 10.0, "10"},
		{goserde.Float(), 3, "3"},
		{goserde.String(), `say "hi"`, `"say \"hi\""`},
		{goserde.Nullable(goserde.Int()), nil, "null"},
		{goserde.Nullable(goserde.Int()), new(int), "0"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, marshal(t, m, tc.typ, tc.v), tc.typ.Signature())
	}
}

func TestEncode_Flags(t *testing.T) {
	base := newMarshaller()
	assert.Equal(t, `"a\/b \u00e9"`, marshal(t, base, goserde.String(), "a/b é"))

	m := base.With(goserde.NewConfig().WithFlags(goserde.FlagUnescapedSlashes | goserde.FlagUnescapedUnicode))
	assert.Equal(t, `"a/b é"`, marshal(t, m, goserde.String(), "a/b é"))

	m = base.With(goserde.NewConfig().WithFlags(goserde.FlagPreserveZeroFraction))
	assert.Equal(t, "10.0", marshal(t, m, goserde.Float(), 10.0))
	assert.Equal(t, "10.25", marshal(t, m, goserde.Float(), 10.25))
}

func TestEncode_PrettyPrint(t *testing.T) {
	m := newMarshaller(goserde.WithConfig(goserde.NewConfig().WithFlags(goserde.FlagPrettyPrint)))
	want := `{
    "id": 7,
    "name": "Ada",
    "email": null,
    "tags": [
        "admin",
        "ops"
    ]
}`
	assert.Equal(t, want, marshal(t, m, goserde.Object("User"), user()))

	empty := user()
	empty["tags"] = []any{}
	assert.Contains(t, marshal(t, m, goserde.Object("User"), empty), `"tags": []`)
	assert.Equal(t, "{}", marshal(t, m, goserde.Dict(goserde.String(), goserde.Int()), map[string]int{}))
}

func TestEncode_SeparatorCount(t *testing.T) {
	m := newMarshaller()
	typ := goserde.List(goserde.Int())
	for _, n := range []int{0, 1, 5} {
		items := make([]int, n)
		out := marshal(t, m, typ, items)
		wantSeps := 0
		if n > 0 {
			wantSeps = n - 1
		}
		assert.Equal(t, wantSeps, countOutsideStrings(out, ','), "items=%d", n)
		assert.Equal(t, 1, countOutsideStrings(out, '['))
		assert.Equal(t, 1, countOutsideStrings(out, ']'))
		assert.True(t, strings.HasPrefix(out, "[") && strings.HasSuffix(out, "]"))
	}
}

func TestEncode_SeparatorsInNestedContainers(t *testing.T) {
	m := newMarshaller()
	typ := goserde.List(goserde.Dict(goserde.String(), goserde.List(goserde.Int())))
	v := []any{
		map[string]any{},
		map[string]any{"a": []int{}},
		map[string]any{"a": []int{1}, "b": []int{1, 2, 3}},
	}
	assert.Equal(t, `[{},{"a":[]},{"a":[1],"b":[1,2,3]}]`, marshal(t, m, typ, v))
}

func TestEncode_TokenChunks(t *testing.T) {
	m := newMarshaller()
	chunks := collect(t, m.Encode(context.Background(), goserde.List(goserde.Int()), []int{1, 2, 3}, goserde.EncodeOptions{}))
	assert.Equal(t, []string{"[", "1", ",", "2", ",", "3", "]"}, chunks)

	chunks = collect(t, m.Encode(context.Background(), goserde.Object("Known"), map[string]any{"known": 4}, goserde.EncodeOptions{}))
	assert.Equal(t, []string{"{", `"known":`, "4", "}"}, chunks)
}

func TestEncode_ChunkSizeCoalesces(t *testing.T) {
	m := newMarshaller()
	typ := goserde.List(goserde.Object("User"))
	v := []any{user(), user(), user(), user()}
	whole := marshal(t, m, typ, v)

	chunks := collect(t, m.Encode(context.Background(), typ, v, goserde.EncodeOptions{ChunkSize: 16}))
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks[:len(chunks)-1] {
		assert.GreaterOrEqual(t, len(c), 16)
	}
	assert.Equal(t, whole, strings.Join(chunks, ""))
}

func TestEncode_SequenceIsSingleUse(t *testing.T) {
	m := newMarshaller()
	seq := m.Encode(context.Background(), goserde.List(goserde.Int()), []int{1, 2}, goserde.EncodeOptions{})
	require.Equal(t, "[1,2]", strings.Join(collect(t, seq), ""))

	var errs []error
	for _, err := range seq {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], goserde.ErrSequenceConsumed)

	fresh := m.Encode(context.Background(), goserde.List(goserde.Int()), []int{1, 2}, goserde.EncodeOptions{})
	assert.Equal(t, "[1,2]", strings.Join(collect(t, fresh), ""))
}

func TestEncode_EarlyStop(t *testing.T) {
	m := newMarshaller()
	seq := m.Encode(context.Background(), goserde.List(goserde.Int()), []int{1, 2, 3, 4}, goserde.EncodeOptions{})
	var got []string
	for chunk, err := range seq {
		require.NoError(t, err)
		got = append(got, string(chunk))
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"[", "1"}, got)
}

func TestEncode_NothingHappensUntilPulled(t *testing.T) {
	m := newMarshaller()
	_ = m.Encode(context.Background(), goserde.Object("Known"), nil, goserde.EncodeOptions{})
	assert.Equal(t, 0, m.Cache().Len())
}

func TestEncode_ContextCanceled(t *testing.T) {
	m := newMarshaller()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Marshal(ctx, goserde.List(goserde.Int()), []int{1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEncode_DictKeysSorted(t *testing.T) {
	m := newMarshaller()
	assert.Equal(t, `{"a":1,"b":2,"c":3}`,
		marshal(t, m, goserde.Dict(goserde.String(), goserde.Int()), map[string]int{"c": 3, "a": 1, "b": 2}))
	assert.Equal(t, `{"2":"y","10":"x"}`,
		marshal(t, m, goserde.Dict(goserde.Int(), goserde.String()), map[int]string{10: "x", 2: "y"}))
}

func TestEncode_InvalidValue(t *testing.T) {
	m := newMarshaller()
	_, err := m.Marshal(context.Background(), goserde.List(goserde.Int()), []any{1, "x"})
	var ive *goserde.InvalidValueError
	require.ErrorAs(t, err, &ive)
	assert.Equal(t, "/1", ive.Path)

	u := user()
	delete(u, "id")
	_, err = m.Marshal(context.Background(), goserde.Object("User"), u)
	require.ErrorAs(t, err, &ive)
	assert.Equal(t, "/id", ive.Path)

	_, err = m.Marshal(context.Background(), goserde.Dict(goserde.Int(), goserde.Int()), map[string]int{"a": 1})
	require.ErrorAs(t, err, &ive)
}

func TestEncode_Union(t *testing.T) {
	m := newMarshaller()
	typ := goserde.List(goserde.Union(goserde.Int(), goserde.String(), goserde.List(goserde.Bool())))
	assert.Equal(t, `[1,"x",[true]]`, marshal(t, m, typ, []any{1, "x", []bool{true}}))

	num := goserde.Union(goserde.Float(), goserde.Int())
	assert.Equal(t, "2", marshal(t, m, num, 2))
	assert.Equal(t, "2.5", marshal(t, m, num, 2.5))

	_, err := m.Marshal(context.Background(), goserde.Union(goserde.Int(), goserde.String()), true)
	var ive *goserde.InvalidValueError
	assert.ErrorAs(t, err, &ive)
}

func TestEncode_UnionPicksObjectByClass(t *testing.T) {
	type Circle struct{ Radius float64 }
	type Square struct{ Side float64 }
	r := resolver.NewReflect()
	circle := r.MustTypeOf(Circle{})
	square := r.MustTypeOf(Square{})
	m := goserde.New(r)
	typ := goserde.List(goserde.Union(circle, square))
	got := marshal(t, m, typ, []any{Square{Side: 2}, &Circle{Radius: 1.5}})
	assert.Equal(t, `[{"Side":2},{"Radius":1.5}]`, got)
}

func TestEncode_OneOfWritesDiscriminatorFirst(t *testing.T) {
	m := newMarshaller()
	typ := goserde.OneOf("kind", map[string]string{"dog": "Dog", "cat": "Cat"})
	cat := map[string]any{"name": "Tom", "kind": "cat", "lives": 9}
	assert.Equal(t, `{"kind":"cat","name":"Tom","lives":9}`, marshal(t, m, typ, cat))

	_, err := m.Marshal(context.Background(), typ, map[string]any{"kind": "fish"})
	var ive *goserde.InvalidValueError
	assert.ErrorAs(t, err, &ive)
}

func TestEncode_RenameHook(t *testing.T) {
	cfg := goserde.NewConfig().
		WithHook(goserde.Object("User"), "user_names").
		WithServices(goserde.Services{"user_names": goserde.RenameHook(map[string]string{"name": "public_name"})})
	m := newMarshaller(goserde.WithConfig(cfg))
	got := marshal(t, m, goserde.Object("User"), user())
	assert.Equal(t, `{"id":7,"public_name":"Ada","email":null,"tags":["admin","ops"]}`, got)
	assert.NotContains(t, got, `"name"`)
}

func TestEncode_HookOverridesAccessorAndType(t *testing.T) {
	hook := goserde.HookFuncs{Encode: func(p goserde.Property, _ goserde.HookContext) (goserde.PropertyOverride, error) {
		switch p.Name {
		case "name":
			return goserde.PropertyOverride{Accessor: goserde.AccessorFunc(func(v any) (any, error) {
				return strings.ToUpper(v.(map[string]any)["name"].(string)), nil
			})}, nil
		case "id":
			s := goserde.String()
			return goserde.PropertyOverride{Type: &s, Accessor: goserde.AccessorFunc(func(v any) (any, error) {
				return "#7", nil
			})}, nil
		}
		return goserde.PropertyOverride{}, nil
	}}
	cfg := goserde.NewConfig().WithHook(goserde.Object("User"), "h").WithServices(goserde.Services{"h": hook})
	m := newMarshaller(goserde.WithConfig(cfg))
	got := marshal(t, m, goserde.Object("User"), user())
	assert.Equal(t, `{"id":"#7","name":"ADA","email":null,"tags":["admin","ops"]}`, got)
}

func TestEncode_Normalizer(t *testing.T) {
	r := testResolver().Define("Event", resolver.Prop("at", goserde.Object(normalizer.TimeClass)))
	cfg := goserde.NewConfig().
		WithNormalizer(goserde.Object(normalizer.TimeClass), "rfc3339").
		WithServices(goserde.Services{"rfc3339": normalizer.RFC3339{}})
	m := goserde.New(r, goserde.WithConfig(cfg))
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	got := marshal(t, m, goserde.Object("Event"), map[string]any{"at": at})
	assert.Equal(t, `{"at":"2024-01-02T03:04:05Z"}`, got)
}

func TestEncode_DepthGuard(t *testing.T) {
	typ := goserde.Object("Node")
	for _, tc := range []struct {
		maxDepth int
		fails    bool
	}{{1, true}, {2, false}, {3, false}, {0, false}} {
		m := newMarshaller(goserde.WithConfig(goserde.NewConfig().WithMaxDepth(tc.maxDepth)))
		_, err := m.Marshal(context.Background(), typ, chain(2))
		if !tc.fails {
			assert.NoError(t, err, "maxDepth=%d", tc.maxDepth)
			continue
		}
		var mde *goserde.MaxDepthExceededError
		require.ErrorAs(t, err, &mde, "maxDepth=%d", tc.maxDepth)
		assert.Equal(t, "Node", mde.Class)
		assert.Equal(t, tc.maxDepth, mde.Limit)
	}
}

func TestEncode_Recursive(t *testing.T) {
	m := newMarshaller()
	got := marshal(t, m, goserde.Object("Node"), chain(2))
	assert.Equal(t, `{"value":0,"next":{"value":1,"next":{"value":2,"next":null}}}`, got)
}
