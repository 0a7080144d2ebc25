// Package assign stores decoded values (bool, int64, float64, string, []any,
// maps and already-built objects) into typed Go destinations.
package assign

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// Value stores v into dst, which must be settable. Numbers are converted
// between kinds when no precision is lost; []any and maps are converted
// element-wise; nil zeroes dst.
func Value(dst reflect.Value, v any) error {
	if v == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	src := reflect.ValueOf(v)
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}
	switch dst.Kind() {
	case reflect.Pointer:
		if src.Kind() == reflect.Pointer && src.Elem().Type().AssignableTo(dst.Type().Elem()) {
			dst.Set(src)
			return nil
		}
		p := reflect.New(dst.Type().Elem())
		if err := Value(p.Elem(), v); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	case reflect.Interface:
		if src.Type().Implements(dst.Type()) {
			dst.Set(src)
			return nil
		}
	case reflect.Bool:
		if src.Kind() == reflect.Bool {
			dst.SetBool(src.Bool())
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, ok := toInt(src)
		if ok && !dst.OverflowInt(i) {
			dst.SetInt(i)
			return nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		i, ok := toInt(src)
		if ok && i >= 0 && !dst.OverflowUint(uint64(i)) {
			dst.SetUint(uint64(i))
			return nil
		}
	case reflect.Float32, reflect.Float64:
		switch {
		case src.CanFloat():
			dst.SetFloat(src.Float())
			return nil
		case src.CanInt():
			dst.SetFloat(float64(src.Int()))
			return nil
		}
	case reflect.String:
		if src.Kind() == reflect.String {
			dst.SetString(src.String())
			return nil
		}
	case reflect.Slice:
		if src.Kind() == reflect.Slice || src.Kind() == reflect.Array {
			out := reflect.MakeSlice(dst.Type(), src.Len(), src.Len())
			for i := 0; i < src.Len(); i++ {
				if err := Value(out.Index(i), src.Index(i).Interface()); err != nil {
					return fmt.Errorf("[%d]: %w", i, err)
				}
			}
			dst.Set(out)
			return nil
		}
	case reflect.Array:
		if (src.Kind() == reflect.Slice || src.Kind() == reflect.Array) && src.Len() == dst.Len() {
			for i := 0; i < src.Len(); i++ {
				if err := Value(dst.Index(i), src.Index(i).Interface()); err != nil {
					return fmt.Errorf("[%d]: %w", i, err)
				}
			}
			return nil
		}
	case reflect.Map:
		if src.Kind() == reflect.Map {
			return assignMap(dst, src)
		}
	case reflect.Struct:
		if src.Kind() == reflect.Pointer && src.Elem().Type().AssignableTo(dst.Type()) {
			dst.Set(src.Elem())
			return nil
		}
	}
	return fmt.Errorf("cannot assign %T to %s", v, dst.Type())
}

func assignMap(dst, src reflect.Value) error {
	out := reflect.MakeMapWithSize(dst.Type(), src.Len())
	kt, vt := dst.Type().Key(), dst.Type().Elem()
	iter := src.MapRange()
	for iter.Next() {
		k := reflect.New(kt).Elem()
		key := iter.Key().Interface()
		if err := Value(k, key); err != nil {
			// Wire keys are strings; allow "12" into integer key types.
			s, ok := key.(string)
			if !ok {
				return err
			}
			n, perr := strconv.ParseInt(s, 10, 64)
			if perr != nil {
				return err
			}
			if err := Value(k, n); err != nil {
				return err
			}
		}
		v := reflect.New(vt).Elem()
		if err := Value(v, iter.Value().Interface()); err != nil {
			return fmt.Errorf("[%v]: %w", key, err)
		}
		out.SetMapIndex(k, v)
	}
	dst.Set(out)
	return nil
}

func toInt(src reflect.Value) (int64, bool) {
	switch {
	case src.CanInt():
		return src.Int(), true
	case src.CanUint():
		u := src.Uint()
		return int64(u), u <= math.MaxInt64
	case src.CanFloat():
		f := src.Float()
		if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return int64(f), true
		}
	}
	return 0, false
}
