package clientstate

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

type shapeKind int

const (
	shapeScalar shapeKind = iota
	shapeObject
	shapeList
)

// node is a normalised view over an arbitrary Go value.
type node struct {
	kind  shapeKind
	value reflect.Value
	str   bool
	null  bool
}

type identity struct {
	kind reflect.Kind
	ptr  uintptr
	len  int
}

var (
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	jsonNumberType    = reflect.TypeOf(json.Number(""))
)

func inspect(value any) node {
	rv := reflect.ValueOf(value)
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return node{kind: shapeScalar, null: true}
		}
		if rv.Kind() == reflect.Pointer && isScalarType(rv.Type()) {
			break
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return node{kind: shapeScalar, null: true}
	}
	if isScalarType(rv.Type()) {
		return node{kind: shapeScalar, value: rv, str: rv.Kind() == reflect.String}
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return node{kind: shapeScalar, null: true}
		}
		return node{kind: shapeObject, value: rv}
	case reflect.Struct:
		return node{kind: shapeObject, value: rv}
	case reflect.Slice:
		if rv.IsNil() {
			return node{kind: shapeScalar, null: true}
		}
		return node{kind: shapeList, value: rv}
	case reflect.Array:
		return node{kind: shapeList, value: rv}
	default:
		return node{kind: shapeScalar, value: rv, str: rv.Kind() == reflect.String}
	}
}

// isScalarType reports types that serialise to a single JSON scalar even
// though their Go kind is composite (time.Time, uuid.UUID, []byte).
func isScalarType(t reflect.Type) bool {
	if t == jsonNumberType {
		return true
	}
	if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
		return true
	}
	if t.Implements(textMarshalerType) || reflect.PointerTo(t).Implements(textMarshalerType) {
		return true
	}
	switch t.Kind() {
	case reflect.Map, reflect.Struct, reflect.Slice, reflect.Array, reflect.Pointer, reflect.Interface:
		return false
	}
	return true
}

func (n node) identity() (identity, bool) {
	switch n.value.Kind() {
	case reflect.Map:
		return identity{kind: reflect.Map, ptr: n.value.Pointer()}, true
	case reflect.Slice:
		return identity{kind: reflect.Slice, ptr: n.value.Pointer(), len: n.value.Len()}, true
	case reflect.Struct, reflect.Array:
		if n.value.CanAddr() {
			return identity{kind: n.value.Kind(), ptr: n.value.Addr().Pointer()}, true
		}
	}
	return identity{}, false
}

// keys returns the object's property names in sorted order.
func (n node) keys() []string {
	switch n.value.Kind() {
	case reflect.Map:
		keys := make([]string, 0, n.value.Len())
		for _, key := range n.value.MapKeys() {
			keys = append(keys, mapKeyString(key))
		}
		sort.Strings(keys)
		return keys
	case reflect.Struct:
		fields := structFields(n.value.Type())
		keys := make([]string, 0, len(fields))
		for _, field := range fields {
			keys = append(keys, field.name)
		}
		sort.Strings(keys)
		return keys
	}
	return nil
}

func (n node) field(key string) (any, bool) {
	switch n.value.Kind() {
	case reflect.Map:
		if keyType := n.value.Type().Key(); keyType.Kind() == reflect.String {
			v := n.value.MapIndex(reflect.ValueOf(key).Convert(keyType))
			if !v.IsValid() {
				return nil, false
			}
			return v.Interface(), true
		}
		for _, mk := range n.value.MapKeys() {
			if mapKeyString(mk) == key {
				return n.value.MapIndex(mk).Interface(), true
			}
		}
	case reflect.Struct:
		for _, field := range structFields(n.value.Type()) {
			if field.name != key {
				continue
			}
			fv, err := n.value.FieldByIndexErr(field.index)
			if err != nil || !fv.CanInterface() {
				return nil, false
			}
			return fv.Interface(), true
		}
	}
	return nil, false
}

func (n node) has(key string) bool {
	_, ok := n.field(key)
	return ok
}

func mapKeyString(key reflect.Value) string {
	if key.Kind() == reflect.String {
		return key.String()
	}
	return fmt.Sprint(key.Interface())
}

type structField struct {
	name  string
	index []int
}

var structFieldCache sync.Map

// structFields resolves exported fields by their JSON names, flattening
// untagged embedded structs the way encoding/json does.
func structFields(t reflect.Type) []structField {
	if cached, ok := structFieldCache.Load(t); ok {
		return cached.([]structField)
	}
	var fields []structField
	var walk func(t reflect.Type, index []int)
	walk = func(t reflect.Type, index []int) {
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			tag := sf.Tag.Get("json")
			if tag == "-" {
				continue
			}
			name, _, _ := strings.Cut(tag, ",")
			idx := append(append([]int(nil), index...), i)
			if sf.Anonymous && name == "" {
				ft := sf.Type
				if ft.Kind() == reflect.Pointer {
					ft = ft.Elem()
				}
				if ft.Kind() == reflect.Struct {
					walk(ft, idx)
					continue
				}
			}
			if !sf.IsExported() {
				continue
			}
			if name == "" {
				name = sf.Name
			}
			fields = append(fields, structField{name: name, index: idx})
		}
	}
	walk(t, nil)
	structFieldCache.Store(t, fields)
	return fields
}

// Fields returns the properties of an object value (map or struct) keyed by
// their JSON names. It reports false for non-object values.
func Fields(value any) (map[string]any, bool) {
	n := inspect(value)
	if n.kind != shapeObject {
		return nil, false
	}
	keys := n.keys()
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		if v, ok := n.field(key); ok {
			out[key] = v
		}
	}
	return out, true
}
