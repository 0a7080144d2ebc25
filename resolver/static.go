// Package resolver provides goserde.Resolver implementations: programmatic
// class tables, Go struct reflection, YAML schema files and an LRU memoizing
// wrapper.
package resolver

import (
	"sync"

	"github.com/cockroachdb/errors"

	goserde "github.com/reoring/goserde"
)

// ErrUnknownClass is returned for classes a resolver has no definition for.
var ErrUnknownClass = errors.New("resolver: unknown class")

// Prop declares a property read from map[string]any instances by its name.
func Prop(name string, t goserde.Type) goserde.Property {
	return goserde.Property{Name: name, Type: t, Accessor: goserde.MapAccessor(name)}
}

// PropAs is like Prop with a distinct wire name.
func PropAs(name, wire string, t goserde.Type) goserde.Property {
	p := Prop(name, t)
	p.WireName = wire
	return p
}

// Static is a programmatic class table. Define calls may happen while the
// table is in use.
type Static struct {
	mu      sync.RWMutex
	classes map[string][]goserde.Property
}

// NewStatic returns an empty table.
func NewStatic() *Static { return &Static{classes: map[string][]goserde.Property{}} }

// Define sets the ordered properties of class.
func (s *Static) Define(class string, props ...goserde.Property) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes[class] = append([]goserde.Property(nil), props...)
	return s
}

// Classes returns the number of defined classes.
func (s *Static) Classes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.classes)
}

func (s *Static) Resolve(class string) ([]goserde.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	props, ok := s.classes[class]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownClass, "%q", class)
	}
	return append([]goserde.Property(nil), props...), nil
}
