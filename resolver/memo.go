package resolver

import (
	lru "github.com/hashicorp/golang-lru/v2"

	goserde "github.com/reoring/goserde"
)

// Memo caches the properties returned by another resolver in a bounded LRU.
// Failures are not cached. ClassOf and Instantiate are forwarded.
type Memo struct {
	inner goserde.Resolver
	cache *lru.Cache[string, []goserde.Property]
}

// Memoize wraps inner with an LRU of size classes.
func Memoize(inner goserde.Resolver, size int) (*Memo, error) {
	cache, err := lru.New[string, []goserde.Property](size)
	if err != nil {
		return nil, err
	}
	return &Memo{inner: inner, cache: cache}, nil
}

func (m *Memo) Resolve(class string) ([]goserde.Property, error) {
	if props, ok := m.cache.Get(class); ok {
		return append([]goserde.Property(nil), props...), nil
	}
	props, err := m.inner.Resolve(class)
	if err != nil {
		return nil, err
	}
	m.cache.Add(class, append([]goserde.Property(nil), props...))
	return props, nil
}

// Len returns the number of cached classes.
func (m *Memo) Len() int { return m.cache.Len() }

func (m *Memo) ClassOf(v any) (string, bool) {
	if cr, ok := m.inner.(goserde.ClassResolver); ok {
		return cr.ClassOf(v)
	}
	return "", false
}

func (m *Memo) Instantiate(class string, props map[string]any) (any, error) {
	if inst, ok := m.inner.(goserde.Instantiator); ok {
		return inst.Instantiate(class, props)
	}
	return goserde.MapInstantiator{Resolver: m}.Instantiate(class, props)
}
