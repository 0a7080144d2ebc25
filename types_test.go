package goserde_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goserde "github.com/reoring/goserde"
)

func TestType_Signatures(t *testing.T) {
	cases := []struct {
		typ  goserde.Type
		want string
	}{
		{goserde.Int(), "int"},
		{goserde.Nullable(goserde.String()), "?string"},
		{goserde.Nullable(goserde.Nullable(goserde.String())), "?string"},
		{goserde.List(goserde.Object("User")), "list<User>"},
		{goserde.Dict(goserde.String(), goserde.List(goserde.Float())), "dict<string,list<float>>"},
		{goserde.Union(goserde.Int(), goserde.Union(goserde.String(), goserde.Int())), "int|string"},
		{goserde.Nullable(goserde.Union(goserde.Int(), goserde.Bool())), "?(int|bool)"},
		{goserde.Union(goserde.Bool()), "bool"},
		{goserde.OneOf("kind", map[string]string{"dog": "Dog", "cat": "Cat"}), "oneof<kind:cat=Cat,dog=Dog>"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.typ.Signature())
	}
}

func TestParseType_RoundTrip(t *testing.T) {
	sigs := []string{
		"bool", "int", "float", "string",
		"?int", "?(int|string)", "?int|string",
		"list<list<int>>", "dict<int,?User>", "dict<string,A|B>",
		"app.User", `App\Entity\User`,
		"oneof<type:a=A,b=B>",
		"list<oneof<kind:cat=Cat>>|?string",
	}
	for _, sig := range sigs {
		typ, err := goserde.ParseType(sig)
		require.NoError(t, err, sig)
		assert.Equal(t, sig, typ.Signature())
	}
}

func TestParseType_Accessors(t *testing.T) {
	typ := goserde.MustParseType("dict<int,?list<User>>")
	require.Equal(t, goserde.KindDict, typ.Kind())
	require.Equal(t, goserde.KindInt, typ.Key().Kind())
	require.True(t, typ.Elem().IsNullable())
	require.Equal(t, "User", typ.Elem().Elem().Elem().Class())

	one := goserde.MustParseType("oneof<kind:cat=Cat,dog=Dog>")
	require.Equal(t, "kind", one.Discriminator())
	require.Equal(t, []goserde.Variant{{Tag: "cat", Class: "Cat"}, {Tag: "dog", Class: "Dog"}}, one.Variants())
}

func TestParseType_Errors(t *testing.T) {
	for _, sig := range []string{"", "list<int", "dict<int>", "int>", "?", "bool<int>", "oneof<:a=A>", "oneof<k:a=A,a=B>", "(int|string"} {
		_, err := goserde.ParseType(sig)
		var ute *goserde.UnsupportedTypeError
		require.ErrorAs(t, err, &ute, sig)
	}
}

func TestType_SignaturesDoNotCollide(t *testing.T) {
	pairs := [][2]goserde.Type{
		{goserde.Object("list<int>"), goserde.List(goserde.Int())},
		{goserde.Object("A|B"), goserde.Union(goserde.Object("A"), goserde.Object("B"))},
		{goserde.Object("int"), goserde.Int()},
		{goserde.Object("?A"), goserde.Nullable(goserde.Object("A"))},
		{
			goserde.OneOf("k", map[string]string{"x=A,y": "B"}),
			goserde.OneOf("k", map[string]string{"x": "A", "y": "B"}),
		},
		{
			goserde.OneOf("k:a", map[string]string{"b": "C"}),
			goserde.OneOf("k", map[string]string{"a:b": "C"}),
		},
	}
	for _, p := range pairs {
		assert.NotEqual(t, p[0].Signature(), p[1].Signature())
		a := goserde.NewCacheKey(p[0], goserde.NewConfig(), goserde.Encode)
		b := goserde.NewCacheKey(p[1], goserde.NewConfig(), goserde.Encode)
		assert.NotEqual(t, a, b)
	}
}

func TestParseType_QuotedNames(t *testing.T) {
	for _, typ := range []goserde.Type{
		goserde.Object("list<int>"),
		goserde.Object("app.Box[int]"),
		goserde.Object(""),
		goserde.List(goserde.Nullable(goserde.Object("A|B"))),
		goserde.OneOf("k", map[string]string{"x=A,y": "B", "plain": "app.Pair[int,string]"}),
		goserde.OneOf("my kind", map[string]string{"int": "int"}),
	} {
		parsed, err := goserde.ParseType(typ.Signature())
		require.NoError(t, err, typ.Signature())
		assert.Equal(t, typ.Signature(), parsed.Signature())
	}

	typ := goserde.MustParseType(`list<"app.Box[int]">`)
	assert.Equal(t, "app.Box[int]", typ.Elem().Class())
	one := goserde.MustParseType(`oneof<k:"x=A,y"=B>`)
	assert.Equal(t, []goserde.Variant{{Tag: "x=A,y", Class: "B"}}, one.Variants())

	_, err := goserde.ParseType(`"unterminated`)
	var ute *goserde.UnsupportedTypeError
	assert.ErrorAs(t, err, &ute)
}
