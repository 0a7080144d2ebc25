package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Dump renders p as an indented instruction listing. The output is meant for
// humans (the CLI "compile" command and test failure messages).
func Dump(p *Program) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "program %s (%s, format %d, flags %#x)\n", p.Type, p.Direction, p.Format, p.Flags)
	dumpNode(b, p.Root, 1)
	return b.String()
}

func dumpNode(b *strings.Builder, n *Node, depth int) {
	if n == nil {
		return
	}
	pad := strings.Repeat("  ", depth)
	switch n.Op {
	case OpLiteral:
		fmt.Fprintf(b, "%sEmitLiteral %s\n", pad, strconv.Quote(n.Literal))
	case OpScalar:
		fmt.Fprintf(b, "%sEmitScalar %s\n", pad, n.Scalar)
	case OpNullCheck:
		fmt.Fprintf(b, "%sNullCheck\n", pad)
		dumpNode(b, n.Then, depth+1)
		dumpNode(b, n.Else, depth+1)
	case OpList:
		fmt.Fprintf(b, "%sBeginList\n", pad)
		dumpNode(b, n.Elem, depth+1)
		fmt.Fprintf(b, "%sEndList\n", pad)
	case OpDict:
		fmt.Fprintf(b, "%sBeginDict key=%s\n", pad, n.KeyScalar)
		dumpNode(b, n.Elem, depth+1)
		fmt.Fprintf(b, "%sEndDict\n", pad)
	case OpObject:
		fmt.Fprintf(b, "%sBeginObject %s", pad, n.Class)
		if n.Hook != "" {
			fmt.Fprintf(b, " hook=%s", n.Hook)
		}
		if n.Strict {
			b.WriteString(" strict")
		}
		b.WriteByte('\n')
		for _, f := range n.Fields {
			fmt.Fprintf(b, "%s  property %s -> %q\n", pad, f.Source, f.Wire)
			dumpNode(b, f.Node, depth+2)
		}
		fmt.Fprintf(b, "%sEndObject\n", pad)
	case OpDepthGuard:
		fmt.Fprintf(b, "%sDepthGuard %d (%s)\n", pad, n.Limit, n.Class)
		dumpNode(b, n.Elem, depth+1)
	case OpRecurse:
		fmt.Fprintf(b, "%sRecurse %s\n", pad, n.Sig)
	case OpNormalize:
		fmt.Fprintf(b, "%sCallNormalizer %s (%s)\n", pad, n.Ref, n.Sig)
		dumpNode(b, n.Elem, depth+1)
	case OpUnion:
		fmt.Fprintf(b, "%sUnion %s\n", pad, n.Sig)
		for _, a := range n.Alts {
			dumpNode(b, a, depth+1)
		}
	case OpOneOf:
		fmt.Fprintf(b, "%sOneOf %s\n", pad, n.Discriminator)
		for i, a := range n.Alts {
			fmt.Fprintf(b, "%s  %q => %s\n", pad, n.Tags[i], n.Classes[i])
			dumpNode(b, a, depth+2)
		}
	default:
		fmt.Fprintf(b, "%s%s\n", pad, n.Op)
	}
}
