// Package ir defines the instruction tree produced by the template compiler
// and interpreted by the execution engine.
package ir

import (
	"fmt"
)

// Format is bumped whenever the serialized Program layout changes. Persisted
// programs with another format are treated as cache misses.
const Format = 1

// Op identifies an instruction.
type Op uint8

const (
	OpLiteral    Op = iota + 1 // emit Literal bytes verbatim
	OpScalar                   // emit/read one scalar of kind Scalar
	OpNullCheck                // Then (null literal) when the value is null, Else otherwise
	OpList                     // begin/end list, ItemSeparator between items, Elem per item
	OpDict                     // begin/end dict, KeySeparator after keys, Elem per value
	OpObject                   // begin/end object, Fields in declaration order
	OpDepthGuard               // increments the runtime depth counter around Elem
	OpRecurse                  // lazy reference to the Program of Sig
	OpNormalize                // CallNormalizer(Ref) then Elem on the normalized value
	OpUnion                    // Alts, picked by value shape (encode) or token kind (decode)
	OpOneOf                    // Alts, picked by the Discriminator property
)

var opNames = map[Op]string{
	OpLiteral:    "literal",
	OpScalar:     "scalar",
	OpNullCheck:  "null_check",
	OpList:       "list",
	OpDict:       "dict",
	OpObject:     "object",
	OpDepthGuard: "depth_guard",
	OpRecurse:    "recurse",
	OpNormalize:  "normalize",
	OpUnion:      "union",
	OpOneOf:      "oneof",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// Scalar kinds, spelled like their type signatures.
const (
	ScalarBool   = "bool"
	ScalarInt    = "int"
	ScalarFloat  = "float"
	ScalarString = "string"
)

// Program is the compiled artifact for one (type, config, direction).
type Program struct {
	Format    int    `json:"format"`
	Direction string `json:"direction"`
	Type      string `json:"type"`
	Flags     uint32 `json:"flags,omitempty"`
	Root      *Node  `json:"root"`
}

// Node is one instruction. Which fields are meaningful depends on Op.
type Node struct {
	Op      Op     `json:"op"`
	Literal string `json:"literal,omitempty"`
	Scalar  string `json:"scalar,omitempty"`

	// Sig is the type signature the node was compiled from.
	Sig   string `json:"sig,omitempty"`
	Class string `json:"class,omitempty"`

	Then *Node `json:"then,omitempty"`
	Else *Node `json:"else,omitempty"`
	Elem *Node `json:"elem,omitempty"`

	// KeyScalar is the dict key kind.
	KeyScalar string `json:"keyScalar,omitempty"`

	Fields []Field `json:"fields,omitempty"`
	// Hook is the decode hook ref consulted before instantiation.
	Hook string `json:"hook,omitempty"`
	// Strict rejects unknown wire keys on decode.
	Strict bool `json:"strict,omitempty"`

	Limit int    `json:"limit,omitempty"`
	Ref   string `json:"ref,omitempty"`

	Alts          []*Node  `json:"alts,omitempty"`
	Discriminator string   `json:"discriminator,omitempty"`
	Tags          []string `json:"tags,omitempty"`    // discriminator value per alt
	Classes       []string `json:"classes,omitempty"` // object class per alt
}

// Field maps one object property between its source name and wire name.
type Field struct {
	Source string `json:"source"`
	Wire   string `json:"wire"`
	// Key is the precompiled, escaped key literal including the key separator.
	Key  string `json:"key,omitempty"`
	Node *Node  `json:"node"`
	// AccessorHook names the encode hook that overrode the accessor, if any.
	AccessorHook string         `json:"accessorHook,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
}

// Walk visits n and all its descendants depth-first. Returning false from fn
// skips the children of the current node.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	Walk(n.Then, fn)
	Walk(n.Else, fn)
	Walk(n.Elem, fn)
	for i := range n.Fields {
		Walk(n.Fields[i].Node, fn)
	}
	for _, a := range n.Alts {
		Walk(a, fn)
	}
}

// Validate checks structural invariants of a program, typically after it was
// restored from a persistent store.
func Validate(p *Program) error {
	if p == nil || p.Root == nil {
		return fmt.Errorf("ir: empty program")
	}
	if p.Format != Format {
		return fmt.Errorf("ir: format %d, want %d", p.Format, Format)
	}
	var err error
	Walk(p.Root, func(n *Node) bool {
		if err != nil {
			return false
		}
		err = validateNode(n)
		return err == nil
	})
	return err
}

func validateNode(n *Node) error {
	switch n.Op {
	case OpLiteral:
	case OpScalar:
		switch n.Scalar {
		case ScalarBool, ScalarInt, ScalarFloat, ScalarString:
		default:
			return fmt.Errorf("ir: scalar node with kind %q", n.Scalar)
		}
	case OpNullCheck:
		if n.Then == nil || n.Else == nil {
			return fmt.Errorf("ir: null_check without branches")
		}
	case OpList, OpDepthGuard, OpNormalize:
		if n.Elem == nil {
			return fmt.Errorf("ir: %s without element", n.Op)
		}
	case OpDict:
		if n.Elem == nil || (n.KeyScalar != ScalarString && n.KeyScalar != ScalarInt) {
			return fmt.Errorf("ir: malformed dict node")
		}
	case OpObject:
		seen := make(map[string]struct{}, len(n.Fields))
		for _, f := range n.Fields {
			if f.Node == nil {
				return fmt.Errorf("ir: field %q without program", f.Wire)
			}
			if _, dup := seen[f.Wire]; dup {
				return fmt.Errorf("ir: duplicate wire name %q in %s", f.Wire, n.Class)
			}
			seen[f.Wire] = struct{}{}
		}
	case OpRecurse:
		if n.Sig == "" {
			return fmt.Errorf("ir: recurse without signature")
		}
	case OpUnion:
		if len(n.Alts) == 0 {
			return fmt.Errorf("ir: union without alternatives")
		}
	case OpOneOf:
		if n.Discriminator == "" || len(n.Alts) != len(n.Tags) || len(n.Alts) != len(n.Classes) {
			return fmt.Errorf("ir: malformed oneof node")
		}
	default:
		return fmt.Errorf("ir: unknown op %d", n.Op)
	}
	return nil
}
