package resolver

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goserde "github.com/reoring/goserde"
)

type tagged struct {
	Plain    int
	JSONName string `json:"json_name,omitempty"`
	Renamed  string `json:"ignored" goserde:"name=wins"`
	Skipped  string `json:"-"`
	Hidden   string `goserde:"-"`
	Revived  string `json:"-" goserde:"name=revived"`
	Typed    any    `goserde:"name=typed,type=dict<string, int|string>"`
}

func TestParseFieldTag(t *testing.T) {
	rt := reflect.TypeOf(tagged{})
	want := map[string]fieldTag{
		"Plain":    {name: "Plain"},
		"JSONName": {name: "json_name"},
		"Renamed":  {name: "wins"},
		"Skipped":  {name: "Skipped", skip: true},
		"Hidden":   {name: "Hidden", skip: true},
		"Revived":  {name: "revived"},
		"Typed":    {name: "typed", typ: "dict<string, int|string>"},
	}
	for field, tag := range want {
		sf, ok := rt.FieldByName(field)
		require.True(t, ok)
		assert.Equal(t, tag, parseFieldTag(sf), field)
	}
}

type node struct {
	Value int   `json:"value"`
	Next  *node `json:"next"`
	note  string
}

func TestReflect_Resolve(t *testing.T) {
	r := NewReflect()
	typ := r.MustTypeOf(&node{})
	assert.Equal(t, "?resolver.node", typ.Signature())

	props, err := r.Resolve("resolver.node")
	require.NoError(t, err)
	require.Len(t, props, 2)
	assert.Equal(t, "Value", props[0].Name)
	assert.Equal(t, "value", props[0].WireName)
	assert.Equal(t, "int", props[0].Type.Signature())
	assert.Equal(t, "?resolver.node", props[1].Type.Signature())

	v, err := props[0].Accessor.Get(&node{Value: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	_, err = props[0].Accessor.Get("nope")
	assert.Error(t, err)

	_, err = r.Resolve("resolver.missing")
	assert.True(t, errors.Is(err, ErrUnknownClass))
}

func TestReflect_TypeOverrideAndInference(t *testing.T) {
	r := NewReflect()
	typ := r.MustTypeOf(tagged{})
	props, err := r.Resolve(typ.Class())
	require.NoError(t, err)

	got := map[string]string{}
	for _, p := range props {
		got[p.Name] = p.Type.Signature()
	}
	assert.Equal(t, map[string]string{
		"Plain":    "int",
		"JSONName": "string",
		"Renamed":  "string",
		"Revived":  "string",
		"Typed":    goserde.MustParseType("dict<string, int|string>").Signature(),
	}, got)

	for _, sample := range []any{map[float64]int{}, make(chan int), nil} {
		_, err := r.TypeOf(sample)
		assert.Error(t, err)
	}
}

func TestReflect_ClassOfAndInstantiate(t *testing.T) {
	r := NewReflect()
	class, ok := r.ClassOf(&node{})
	assert.True(t, ok)
	assert.Equal(t, "resolver.node", class)
	_, ok = r.ClassOf(map[string]any{})
	assert.False(t, ok)

	v, err := r.Instantiate(class, map[string]any{"Value": int64(4)})
	require.NoError(t, err)
	assert.Equal(t, &node{Value: 4}, v)

	_, err = r.Instantiate(class, map[string]any{})
	var ie *goserde.InstantiationError
	require.ErrorAs(t, err, &ie)
	assert.Contains(t, ie.Reason, "Value")

	_, err = r.Instantiate(class, map[string]any{"Value": "four"})
	assert.ErrorAs(t, err, &ie)
}

func TestStatic(t *testing.T) {
	s := NewStatic().Define("A", Prop("x", goserde.Int()), PropAs("y", "why", goserde.String()))
	assert.Equal(t, 1, s.Classes())

	props, err := s.Resolve("A")
	require.NoError(t, err)
	assert.Equal(t, "why", props[1].WireName)
	props[0].Name = "mutated"
	again, _ := s.Resolve("A")
	assert.Equal(t, "x", again[0].Name)

	v, err := again[0].Accessor.Get(map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = s.Resolve("B")
	assert.True(t, errors.Is(err, ErrUnknownClass))
}

const schemaDoc = `
classes:
  User:
    properties:
      - {name: id, type: int}
      - {name: displayName, wire: display_name, type: "?string"}
      - {name: friends, type: "list<User>"}
`

func TestLoadYAML(t *testing.T) {
	s, err := LoadYAML(strings.NewReader(schemaDoc))
	require.NoError(t, err)
	props, err := s.Resolve("User")
	require.NoError(t, err)
	require.Len(t, props, 3)
	assert.Equal(t, "display_name", props[1].WireName)
	assert.Equal(t, "?string", props[1].Type.Signature())
	assert.Equal(t, "list<User>", props[2].Type.Signature())

	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(schemaDoc), 0o600))
	fromFile, err := LoadYAMLFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, fromFile.Classes())
}

func TestLoadYAML_Errors(t *testing.T) {
	for _, doc := range []string{
		"classes: {A: {properties: [{type: int}]}}",
		"classes: {A: {properties: [{name: x, type: \"list<\"}]}}",
		"classes: {A: {fields: []}}",
	} {
		_, err := LoadYAML(strings.NewReader(doc))
		assert.Error(t, err, doc)
	}
	_, err := LoadYAMLFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

type countingResolver struct {
	*Static
	calls int
}

func (c *countingResolver) Resolve(class string) ([]goserde.Property, error) {
	c.calls++
	return c.Static.Resolve(class)
}

func TestMemo(t *testing.T) {
	inner := &countingResolver{Static: NewStatic().Define("A", Prop("x", goserde.Int()))}
	m, err := Memoize(inner, 8)
	require.NoError(t, err)

	for range 3 {
		props, err := m.Resolve("A")
		require.NoError(t, err)
		assert.Len(t, props, 1)
	}
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, m.Len())

	_, err = m.Resolve("B")
	assert.Error(t, err)
	_, err = m.Resolve("B")
	assert.Error(t, err)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, 1, m.Len())

	_, ok := m.ClassOf(map[string]any{})
	assert.False(t, ok)
	v, err := m.Instantiate("A", map[string]any{"x": int64(1)})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": int64(1)}, v)

	_, err = Memoize(inner, 0)
	assert.Error(t, err)
}
