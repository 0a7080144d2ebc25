package resolver

import (
	"reflect"
	"sync"

	"github.com/cockroachdb/errors"

	goserde "github.com/reoring/goserde"
	"github.com/reoring/goserde/internal/assign"
)

// Reflect resolves classes from Go struct types. A class is named after its
// reflect.Type string, e.g. "app.User" or "app.Box[int]"; the latter is
// quoted in type signatures. Properties are the exported fields in
// declaration order; see parseFieldTag for naming. Field types are inferred:
// pointers become nullable, slices and arrays lists, maps with string or
// integer keys dicts and nested structs objects. A type= tag option overrides
// inference with a type signature.
//
// Reflect also implements goserde.ClassResolver and goserde.Instantiator,
// building *T values on decode.
type Reflect struct {
	mu     sync.RWMutex
	types  map[string]reflect.Type
	fields map[string][]structField
}

type structField struct {
	prop  goserde.Property
	index []int
}

// NewReflect returns a resolver with no registered types.
func NewReflect() *Reflect {
	return &Reflect{types: map[string]reflect.Type{}, fields: map[string][]structField{}}
}

// TypeOf registers the Go type of sample and returns its goserde Type.
func (r *Reflect) TypeOf(sample any) (goserde.Type, error) {
	rt := reflect.TypeOf(sample)
	if rt == nil {
		return goserde.Type{}, errors.New("resolver: nil sample")
	}
	return r.infer(rt)
}

// MustTypeOf is like TypeOf but panics on error.
func (r *Reflect) MustTypeOf(sample any) goserde.Type {
	t, err := r.TypeOf(sample)
	if err != nil {
		panic(err)
	}
	return t
}

func className(rt reflect.Type) string { return rt.String() }

func (r *Reflect) infer(rt reflect.Type) (goserde.Type, error) {
	switch rt.Kind() {
	case reflect.Bool:
		return goserde.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return goserde.Int(), nil
	case reflect.Float32, reflect.Float64:
		return goserde.Float(), nil
	case reflect.String:
		return goserde.String(), nil
	case reflect.Pointer:
		inner, err := r.infer(rt.Elem())
		if err != nil {
			return goserde.Type{}, err
		}
		return goserde.Nullable(inner), nil
	case reflect.Slice, reflect.Array:
		item, err := r.infer(rt.Elem())
		if err != nil {
			return goserde.Type{}, err
		}
		return goserde.List(item), nil
	case reflect.Map:
		key, err := r.infer(rt.Key())
		if err != nil {
			return goserde.Type{}, err
		}
		if key.Kind() != goserde.KindString && key.Kind() != goserde.KindInt {
			return goserde.Type{}, errors.Newf("resolver: unsupported map key type %s", rt.Key())
		}
		value, err := r.infer(rt.Elem())
		if err != nil {
			return goserde.Type{}, err
		}
		return goserde.Dict(key, value), nil
	case reflect.Struct:
		r.register(rt)
		return goserde.Object(className(rt)), nil
	}
	return goserde.Type{}, errors.Newf("resolver: cannot infer a type for %s", rt)
}

// register records rt by class name; fields are resolved lazily so that
// self-referential structs terminate.
func (r *Reflect) register(rt reflect.Type) {
	name := className(rt)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[name]; !ok {
		r.types[name] = rt
	}
}

func (r *Reflect) Resolve(class string) ([]goserde.Property, error) {
	fields, err := r.structFields(class)
	if err != nil {
		return nil, err
	}
	out := make([]goserde.Property, len(fields))
	for i, f := range fields {
		out[i] = f.prop
	}
	return out, nil
}

func (r *Reflect) structFields(class string) ([]structField, error) {
	r.mu.RLock()
	fields, done := r.fields[class]
	rt, known := r.types[class]
	r.mu.RUnlock()
	if done {
		return fields, nil
	}
	if !known {
		return nil, errors.Wrapf(ErrUnknownClass, "%q", class)
	}
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := parseFieldTag(sf)
		if tag.skip {
			continue
		}
		var (
			t   goserde.Type
			err error
		)
		if tag.typ != "" {
			t, err = goserde.ParseType(tag.typ)
		} else {
			t, err = r.infer(sf.Type)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "field %s.%s", class, sf.Name)
		}
		fields = append(fields, structField{
			prop: goserde.Property{
				Name:     sf.Name,
				WireName: tag.name,
				Type:     t,
				Accessor: fieldAccessor{owner: rt, index: sf.Index, typ: sf.Type},
			},
			index: sf.Index,
		})
	}
	r.mu.Lock()
	r.fields[class] = fields
	r.mu.Unlock()
	return fields, nil
}

// ClassOf names the struct type of v, registering it on first sight.
func (r *Reflect) ClassOf(v any) (string, bool) {
	rt := reflect.TypeOf(v)
	for rt != nil && rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt == nil || rt.Kind() != reflect.Struct {
		return "", false
	}
	r.register(rt)
	return className(rt), true
}

// Instantiate builds a *T for class from decoded properties keyed by field
// name. Fields of non-nullable type are required.
func (r *Reflect) Instantiate(class string, props map[string]any) (any, error) {
	fields, err := r.structFields(class)
	if err != nil {
		return nil, &goserde.InstantiationError{Class: class, Cause: err}
	}
	r.mu.RLock()
	rt := r.types[class]
	r.mu.RUnlock()
	ptr := reflect.New(rt)
	for _, f := range fields {
		v, ok := props[f.prop.Name]
		if !ok {
			if !f.prop.Type.IsNullable() {
				return nil, &goserde.InstantiationError{Class: class, Reason: "missing required property " + f.prop.Name}
			}
			continue
		}
		if err := assign.Value(ptr.Elem().FieldByIndex(f.index), v); err != nil {
			return nil, &goserde.InstantiationError{Class: class, Reason: "property " + f.prop.Name, Cause: err}
		}
	}
	return ptr.Interface(), nil
}

type fieldAccessor struct {
	owner reflect.Type
	index []int
	typ   reflect.Type
}

func (a fieldAccessor) Get(instance any) (any, error) {
	rv := reflect.ValueOf(instance)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, errors.Newf("resolver: nil %s", a.owner)
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Type() != a.owner {
		return nil, errors.Newf("resolver: expected %s, got %T", a.owner, instance)
	}
	return rv.FieldByIndex(a.index).Interface(), nil
}

func (a fieldAccessor) GoType() reflect.Type { return a.typ }
