package resolver

import (
	"reflect"
	"strings"
)

// fieldTag is the parsed naming information of a struct field.
type fieldTag struct {
	name string
	// typ is a type signature overriding inference, empty when absent.
	typ  string
	skip bool
}

// parseFieldTag applies the naming rule for struct fields:
// goserde:"name=...,type=..." > json tag name > field name; "-" skips the field.
func parseFieldTag(sf reflect.StructField) fieldTag {
	out := fieldTag{name: sf.Name}
	jsonName := ""
	if jt := sf.Tag.Get("json"); jt != "" {
		if jt == "-" {
			out.skip = true
		}
		if i := strings.IndexByte(jt, ','); i >= 0 {
			jt = jt[:i]
		}
		jsonName = jt
	}
	if jsonName != "" && jsonName != "-" {
		out.name = jsonName
	}
	gt := sf.Tag.Get("goserde")
	if gt == "-" {
		out.skip = true
		return out
	}
	// type= comes last since signatures may contain commas.
	if i := strings.Index(gt, "type="); i >= 0 {
		out.typ = strings.TrimSpace(gt[i+len("type="):])
		gt = gt[:i]
	}
	for _, p := range strings.Split(gt, ",") {
		if p = strings.TrimSpace(p); strings.HasPrefix(p, "name=") {
			out.name = strings.TrimPrefix(p, "name=")
			out.skip = false
		}
	}
	return out
}
