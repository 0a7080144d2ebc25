// Package goserde compiles (type, direction, config) triples into reusable
// JSON programs and runs them.
//
// A Type describes the shape of a value: scalars, nullable wrappers, lists,
// dicts, classes resolved through a Resolver, unions and discriminated
// unions. Compile turns a Type into a Program, an instruction tree that is
// pure data and can be persisted. Programs are cached per key, compiled at
// most once under concurrency, and optionally stored in a ProgramStore that
// is validated on load.
//
// Encoding is lazy and streaming:
//
//	m := goserde.New(resolver)
//	for chunk, err := range m.Encode(ctx, goserde.List(goserde.Object("User")), users, goserde.EncodeOptions{ChunkSize: 4096}) {
//		if err != nil {
//			return err
//		}
//		w.Write(chunk)
//	}
//
// Decoding reads tokens from a Source in a single pass:
//
//	v, err := m.Decode(ctx, goserde.Object("User"), goserde.JSONBytes(data), goserde.DecodeOptions{})
//
// Hooks rename or retype properties of a class at compile time and may swap
// their accessors;
// Normalizers replace a type with a simpler one at runtime. Both are
// referenced by name in Config and looked up in its Services.
//
// Public APIs live in this package; the instruction tree, the token engine
// and value assignment live under internal/.
package goserde
