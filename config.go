package goserde

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"slices"

	j "github.com/goccy/go-json"
	"github.com/samber/lo"

	eng "github.com/reoring/goserde/internal/engine"
)

// Direction selects the encode or decode half of a Program.
type Direction uint8

const (
	Encode Direction = iota + 1
	Decode
)

func (d Direction) String() string {
	switch d {
	case Encode:
		return "encode"
	case Decode:
		return "decode"
	}
	return "unknown"
}

// Flags controls JSON output style.
type Flags uint32

const (
	// FlagPrettyPrint indents with four spaces and separates keys with ": ".
	FlagPrettyPrint = Flags(eng.FlagPrettyPrint)
	// FlagUnescapedSlashes writes "/" instead of "\/".
	FlagUnescapedSlashes = Flags(eng.FlagUnescapedSlashes)
	// FlagUnescapedUnicode writes non-ASCII characters as UTF-8 instead of \uXXXX.
	FlagUnescapedUnicode = Flags(eng.FlagUnescapedUnicode)
	// FlagPreserveZeroFraction writes 10.0 instead of 10 for integral floats.
	FlagPreserveZeroFraction = Flags(eng.FlagPreserveZeroFraction)
)

var flagNames = map[string]Flags{
	"pretty_print":           FlagPrettyPrint,
	"unescaped_slashes":      FlagUnescapedSlashes,
	"unescaped_unicode":      FlagUnescapedUnicode,
	"preserve_zero_fraction": FlagPreserveZeroFraction,
}

// UnknownPropertyPolicy decides what decoding does with wire keys that map to
// no property.
type UnknownPropertyPolicy uint8

const (
	UnknownIgnore UnknownPropertyPolicy = iota
	UnknownError
)

func (p UnknownPropertyPolicy) String() string {
	if p == UnknownError {
		return "error"
	}
	return "ignore"
}

const configVersion = 1

// Config is an immutable set of compile options. The With methods return
// modified copies. Two configs with equal Signature are cache-equivalent;
// Services is a runtime capability and is not part of the signature.
type Config struct {
	maxDepth         int
	flags            Flags
	hooks            map[string]string
	normalizers      map[string]string
	onUnknown        UnknownPropertyPolicy
	rejectDuplicates bool
	services         ServiceLocator
}

// NewConfig returns the default configuration: unlimited depth, escaped
// slashes and unicode, unknown properties ignored.
func NewConfig() Config { return Config{} }

func (c Config) MaxDepth() int                            { return c.maxDepth }
func (c Config) Flags() Flags                             { return c.flags }
func (c Config) OnUnknownProperty() UnknownPropertyPolicy { return c.onUnknown }
func (c Config) RejectDuplicateKeys() bool                { return c.rejectDuplicates }
func (c Config) Services() ServiceLocator                 { return c.services }

// Hook returns the hook ref registered for a type signature.
func (c Config) Hook(sig string) (string, bool) {
	ref, ok := c.hooks[sig]
	return ref, ok
}

// Normalizer returns the normalizer ref registered for a type signature.
func (c Config) Normalizer(sig string) (string, bool) {
	ref, ok := c.normalizers[sig]
	return ref, ok
}

// WithMaxDepth limits object nesting; 0 means unlimited.
func (c Config) WithMaxDepth(n int) Config {
	if n < 0 {
		n = 0
	}
	c.maxDepth = n
	return c
}

func (c Config) WithFlags(f Flags) Config {
	c.flags = f
	return c
}

// WithHook registers hook ref for the object type t.
func (c Config) WithHook(t Type, ref string) Config {
	c.hooks = with(c.hooks, t.Signature(), ref)
	return c
}

// WithNormalizer registers normalizer ref for values of type t.
func (c Config) WithNormalizer(t Type, ref string) Config {
	c.normalizers = with(c.normalizers, t.Signature(), ref)
	return c
}

func (c Config) WithUnknownProperty(p UnknownPropertyPolicy) Config {
	c.onUnknown = p
	return c
}

func (c Config) WithRejectDuplicateKeys(on bool) Config {
	c.rejectDuplicates = on
	return c
}

// WithServices sets the locator used to resolve hook and normalizer refs.
func (c Config) WithServices(s ServiceLocator) Config {
	c.services = s
	return c
}

func with(m map[string]string, k, v string) map[string]string {
	out := maps.Clone(m)
	if out == nil {
		out = map[string]string{}
	}
	out[k] = v
	return out
}

type configDoc struct {
	Version          int         `json:"v"`
	MaxDepth         int         `json:"maxDepth"`
	Flags            Flags       `json:"flags"`
	Hooks            [][2]string `json:"hooks"`
	Normalizers      [][2]string `json:"normalizers"`
	OnUnknown        string      `json:"onUnknownProperty"`
	RejectDuplicates bool        `json:"rejectDuplicateKeys"`
}

func sortedPairs(m map[string]string) [][2]string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return lo.Map(keys, func(k string, _ int) [2]string { return [2]string{k, m[k]} })
}

// Signature returns the serialized form of c.
func (c Config) Signature() string {
	b, err := j.Marshal(configDoc{
		Version:          configVersion,
		MaxDepth:         c.maxDepth,
		Flags:            c.flags,
		Hooks:            sortedPairs(c.hooks),
		Normalizers:      sortedPairs(c.normalizers),
		OnUnknown:        c.onUnknown.String(),
		RejectDuplicates: c.rejectDuplicates,
	})
	if err != nil {
		// Only strings and ints are marshalled.
		panic(err)
	}
	return string(b)
}

// Hash returns the hex SHA-256 of Signature.
func (c Config) Hash() string {
	sum := sha256.Sum256([]byte(c.Signature()))
	return hex.EncodeToString(sum[:])
}

func (c Config) lookup(ref string) (any, bool) {
	if c.services == nil {
		return nil, false
	}
	return c.services.Lookup(ref)
}
