package layering

import "reflect"

// Clone returns a deep copy of value. Maps, slices, pointers and interface
// values are copied recursively; shared references and cycles in the source
// are preserved as shared references in the copy.
func Clone[T any](value T) T {
	v := reflect.ValueOf(&value).Elem()
	out := newCloner().clone(v)
	if !out.IsValid() {
		var zero T
		return zero
	}
	result := reflect.New(v.Type()).Elem()
	result.Set(out)
	cloned, _ := result.Interface().(T)
	return cloned
}

// Overlay composes maps ordered from strongest to weakest, returning a new
// map where keys from stronger layers replace those of weaker ones. The merge
// is shallow: a key present in a stronger layer replaces the weaker value as a
// whole. Values are deep-copied.
func Overlay(layers ...map[string]any) map[string]any {
	size := 0
	for _, layer := range layers {
		size += len(layer)
	}
	merged := make(map[string]any, size)
	c := newCloner()
	for i := len(layers) - 1; i >= 0; i-- {
		for key, value := range layers[i] {
			merged[key] = c.cloneAny(value)
		}
	}
	return merged
}

// Pick returns a deep copy of the entries of source named by keys. Keys
// missing from source are skipped.
func Pick(source map[string]any, keys []string) map[string]any {
	out := make(map[string]any, len(keys))
	c := newCloner()
	for _, key := range keys {
		if value, ok := source[key]; ok {
			out[key] = c.cloneAny(value)
		}
	}
	return out
}

type refKey struct {
	typ reflect.Type
	ptr uintptr
	len int
}

type cloner struct {
	seen map[refKey]reflect.Value
}

func newCloner() *cloner {
	return &cloner{seen: map[refKey]reflect.Value{}}
}

func (c *cloner) cloneAny(value any) any {
	if value == nil {
		return nil
	}
	return c.clone(reflect.ValueOf(value)).Interface()
}

func (c *cloner) clone(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		key := refKey{typ: v.Type(), ptr: v.Pointer()}
		if done, ok := c.seen[key]; ok {
			return done
		}
		clone := reflect.New(v.Type().Elem())
		c.seen[key] = clone
		clone.Elem().Set(c.clone(v.Elem()))
		return clone
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		elem := c.clone(v.Elem())
		out := reflect.New(v.Type()).Elem()
		out.Set(elem)
		return out
	case reflect.Struct:
		// Copy the whole struct first so unexported state (time.Time, for
		// example) survives, then deep-copy the exported fields.
		clone := reflect.New(v.Type()).Elem()
		clone.Set(v)
		for i := 0; i < v.NumField(); i++ {
			field := clone.Field(i)
			if !field.CanSet() {
				continue
			}
			field.Set(c.clone(v.Field(i)))
		}
		return clone
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		key := refKey{typ: v.Type(), ptr: v.Pointer()}
		if done, ok := c.seen[key]; ok {
			return done
		}
		clone := reflect.MakeMapWithSize(v.Type(), v.Len())
		c.seen[key] = clone
		iter := v.MapRange()
		for iter.Next() {
			clone.SetMapIndex(iter.Key(), c.clone(iter.Value()))
		}
		return clone
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		key := refKey{typ: v.Type(), ptr: v.Pointer(), len: v.Len()}
		if done, ok := c.seen[key]; ok {
			return done
		}
		clone := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		c.seen[key] = clone
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(c.clone(v.Index(i)))
		}
		return clone
	case reflect.Array:
		clone := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(c.clone(v.Index(i)))
		}
		return clone
	default:
		return v
	}
}
