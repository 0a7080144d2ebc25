package goserde

import (
	"reflect"

	"github.com/cockroachdb/errors"
)

// Property describes one object property as seen by the compiler.
type Property struct {
	// Name is the source-side name, used as the key of decoded property maps.
	Name string
	// WireName is the JSON key. Empty means Name.
	WireName string
	Type     Type
	Accessor Accessor
}

// Wire returns the effective wire name.
func (p Property) Wire() string {
	if p.WireName != "" {
		return p.WireName
	}
	return p.Name
}

// Accessor reads a property from an instance.
type Accessor interface {
	Get(instance any) (any, error)
}

// TypedAccessor is an Accessor that knows the Go type it returns. Hook retypes
// are checked against it at compile time.
type TypedAccessor interface {
	Accessor
	GoType() reflect.Type
}

// AccessorFunc adapts a function to Accessor.
type AccessorFunc func(instance any) (any, error)

func (f AccessorFunc) Get(instance any) (any, error) { return f(instance) }

// MapAccessor reads key from a map[string]any instance.
type MapAccessor string

func (k MapAccessor) Get(instance any) (any, error) {
	m, ok := instance.(map[string]any)
	if !ok {
		return nil, errors.Newf("property %q: expected map[string]any, got %T", string(k), instance)
	}
	return m[string(k)], nil
}

// Resolver yields the ordered properties of a class. Implementations must be
// deterministic for the lifetime of a process.
type Resolver interface {
	Resolve(class string) ([]Property, error)
}

// ClassResolver is optionally implemented by resolvers that can tell the
// class of a runtime value. Encoding unions with several object alternatives
// needs it.
type ClassResolver interface {
	ClassOf(v any) (string, bool)
}

// Instantiator builds an object of class from its decoded properties, keyed by
// source name. Absent properties are absent from the map.
type Instantiator interface {
	Instantiate(class string, props map[string]any) (any, error)
}

// InstantiatorFunc adapts a function to Instantiator.
type InstantiatorFunc func(class string, props map[string]any) (any, error)

func (f InstantiatorFunc) Instantiate(class string, props map[string]any) (any, error) {
	return f(class, props)
}

// MapInstantiator returns decoded objects as map[string]any. Properties whose
// type is not nullable are required.
type MapInstantiator struct {
	Resolver Resolver
}

func (m MapInstantiator) Instantiate(class string, props map[string]any) (any, error) {
	if m.Resolver != nil {
		declared, err := m.Resolver.Resolve(class)
		if err != nil {
			return nil, err
		}
		for _, p := range declared {
			if _, ok := props[p.Name]; !ok && !p.Type.IsNullable() {
				return nil, &InstantiationError{Class: class, Reason: "missing required property " + p.Name}
			}
		}
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out, nil
}
