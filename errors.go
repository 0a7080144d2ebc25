package goserde

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
)

// ErrSequenceConsumed is yielded when an encode sequence is ranged over a
// second time. Every Encode call returns a fresh, single-use sequence.
var ErrSequenceConsumed = errors.New("goserde: encode sequence already consumed")

// ErrCacheResolverMismatch is returned by a Marshaller whose cache is already
// bound to another resolver.
var ErrCacheResolverMismatch = errors.New("goserde: cache is bound to another resolver")

// UnsupportedTypeError is a compile-time error: the type cannot be expressed
// in the requested direction, or its signature does not parse.
type UnsupportedTypeError struct {
	Type   string
	Reason string
}

func (e *UnsupportedTypeError) Error() string {
	return "goserde: unsupported type " + strconv.Quote(e.Type) + ": " + e.Reason
}

// InvalidHookSignatureError is a compile-time error for a misconfigured hook
// or normalizer.
type InvalidHookSignatureError struct {
	Type     string // signature the hook is registered for
	Property string // empty for normalizers
	Ref      string
	Reason   string
}

func (e *InvalidHookSignatureError) Error() string {
	where := e.Type
	if e.Property != "" {
		where += "." + e.Property
	}
	return fmt.Sprintf("goserde: invalid hook %q for %s: %s", e.Ref, where, e.Reason)
}

// UnresolvableTypeError wraps a Resolver failure for a class.
type UnresolvableTypeError struct {
	Class string
	Cause error
}

func (e *UnresolvableTypeError) Error() string {
	if e.Cause == nil {
		return "goserde: cannot resolve class " + strconv.Quote(e.Class)
	}
	return "goserde: cannot resolve class " + strconv.Quote(e.Class) + ": " + e.Cause.Error()
}

func (e *UnresolvableTypeError) Unwrap() error { return e.Cause }

// MaxDepthExceededError is raised at run time when an object nests deeper than
// the configured limit. Depth is 0 for the outermost object.
type MaxDepthExceededError struct {
	Class string
	Limit int
	Depth int
}

func (e *MaxDepthExceededError) Error() string {
	return fmt.Sprintf("goserde: max depth %d exceeded by %s at depth %d", e.Limit, e.Class, e.Depth)
}

// PartialDecodeError reports truncated or malformed input. Partial holds the
// value built so far only when DecodeOptions.KeepPartial is set; it is never a
// usable result.
type PartialDecodeError struct {
	Resource string
	Offset   int64 // -1 when unknown
	Partial  any
	Cause    error
}

func (e *PartialDecodeError) Error() string {
	msg := "goserde: partial decode"
	if e.Resource != "" {
		msg += " of " + e.Resource
	}
	if e.Offset >= 0 {
		msg += " at offset " + strconv.FormatInt(e.Offset, 10)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *PartialDecodeError) Unwrap() error { return e.Cause }

// UnexpectedPropertyError reports a wire key that maps to no property while
// OnUnknownProperty is UnknownError.
type UnexpectedPropertyError struct {
	Class    string
	Property string
	Path     string
	Offset   int64
}

func (e *UnexpectedPropertyError) Error() string {
	return fmt.Sprintf("goserde: unexpected property %q in %s at %s", e.Property, e.Class, e.Path)
}

// InstantiationError is returned when the Instantiator cannot build an object
// from its decoded properties.
type InstantiationError struct {
	Class  string
	Reason string
	Cause  error
}

func (e *InstantiationError) Error() string {
	msg := "goserde: cannot instantiate " + e.Class
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *InstantiationError) Unwrap() error { return e.Cause }

// InvalidValueError reports a value that does not match its declared type, on
// encode (Path names the property chain) or decode (Path is a JSON Pointer).
type InvalidValueError struct {
	Path   string
	Reason string
	Offset int64
}

func (e *InvalidValueError) Error() string {
	path := e.Path
	if path == "" {
		path = "/"
	}
	return "goserde: invalid value at " + path + ": " + e.Reason
}

// unresolvable wraps a resolver failure unless it already carries class context.
func unresolvable(class string, err error) error {
	var ue *UnresolvableTypeError
	if errors.As(err, &ue) {
		return err
	}
	return &UnresolvableTypeError{Class: class, Cause: err}
}
