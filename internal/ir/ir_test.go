package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func listOfInts() *Program {
	return &Program{
		Format:    Format,
		Direction: "encode",
		Type:      "list<int>",
		Root:      &Node{Op: OpList, Elem: &Node{Op: OpScalar, Scalar: ScalarInt}},
	}
}

func TestValidate_Accepts(t *testing.T) {
	require.NoError(t, Validate(listOfInts()))
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]*Program{
		"nil root":     {Format: Format},
		"wrong format": {Format: Format + 1, Root: &Node{Op: OpScalar, Scalar: ScalarInt}},
		"bad scalar":   {Format: Format, Root: &Node{Op: OpScalar, Scalar: "decimal"}},
		"list no elem": {Format: Format, Root: &Node{Op: OpList}},
		"dict key":     {Format: Format, Root: &Node{Op: OpDict, KeyScalar: ScalarFloat, Elem: &Node{Op: OpScalar, Scalar: ScalarInt}}},
		"dup wire": {Format: Format, Root: &Node{Op: OpObject, Class: "A", Fields: []Field{
			{Source: "a", Wire: "x", Node: &Node{Op: OpScalar, Scalar: ScalarInt}},
			{Source: "b", Wire: "x", Node: &Node{Op: OpScalar, Scalar: ScalarInt}},
		}}},
		"unknown op": {Format: Format, Root: &Node{Op: 200}},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, Validate(p))
		})
	}
}

func TestWalk_VisitsFieldsAndAlts(t *testing.T) {
	root := &Node{Op: OpUnion, Alts: []*Node{
		{Op: OpScalar, Scalar: ScalarBool},
		{Op: OpObject, Class: "A", Fields: []Field{{Source: "a", Wire: "a", Node: &Node{Op: OpScalar, Scalar: ScalarString}}}},
	}}
	var ops []Op
	Walk(root, func(n *Node) bool { ops = append(ops, n.Op); return true })
	require.Equal(t, []Op{OpUnion, OpScalar, OpObject, OpScalar}, ops)
}

func TestDump_ListsInstructions(t *testing.T) {
	out := Dump(listOfInts())
	require.True(t, strings.HasPrefix(out, "program list<int> (encode"))
	require.Contains(t, out, "BeginList")
	require.Contains(t, out, "EmitScalar int")
	require.Contains(t, out, "EndList")
}
