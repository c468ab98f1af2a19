package openapi

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	clientstate "github.com/goliatone/go-clientstate"
)

var (
	timeType   = reflect.TypeOf(time.Time{})
	uuidType   = reflect.TypeOf(uuid.UUID{})
	numberType = reflect.TypeOf(json.Number(""))
)

// schemaBuilder derives JSON Schema fragments from sample values. Cyclic
// references collapse into an open object.
type schemaBuilder struct {
	seen map[uintptr]bool
}

func newSchemaBuilder() *schemaBuilder {
	return &schemaBuilder{seen: map[uintptr]bool{}}
}

// fieldSchema describes a top-level state key. Null samples accept any JSON
// value; every other sample accepts its own type or null, matching what a
// store may hold after a selection is cleared.
func (b *schemaBuilder) fieldSchema(value any) (map[string]any, error) {
	if value == nil || value == clientstate.Undefined {
		return map[string]any{}, nil
	}
	schema, err := b.build(reflect.ValueOf(value))
	if err != nil {
		return nil, err
	}
	if t, ok := schema["type"].(string); ok {
		schema["type"] = []string{t, "null"}
	}
	return schema, nil
}

func (b *schemaBuilder) build(rv reflect.Value) (map[string]any, error) {
	if !rv.IsValid() {
		return map[string]any{"type": "null"}, nil
	}

	switch rv.Type() {
	case timeType:
		return map[string]any{"type": "string", "format": "date-time"}, nil
	case uuidType:
		return map[string]any{"type": "string", "format": "uuid"}, nil
	case numberType:
		return map[string]any{"type": "number"}, nil
	}
	if rv.Type() == reflect.TypeOf(clientstate.Undefined) {
		return map[string]any{}, nil
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return map[string]any{"type": "null"}, nil
		}
		if rv.Kind() == reflect.Pointer {
			if b.seen[rv.Pointer()] {
				return map[string]any{"type": "object"}, nil
			}
			b.seen[rv.Pointer()] = true
			defer delete(b.seen, rv.Pointer())
		}
		return b.build(rv.Elem())
	case reflect.Bool:
		return map[string]any{"type": "boolean"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return map[string]any{"type": "integer"}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]any{"type": "integer", "minimum": 0}, nil
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}, nil
	case reflect.String:
		return map[string]any{"type": "string"}, nil
	case reflect.Map:
		return b.schemaForMap(rv)
	case reflect.Struct:
		return b.schemaForStruct(rv)
	case reflect.Slice, reflect.Array:
		return b.schemaForSlice(rv)
	default:
		return nil, fmt.Errorf("openapi: unsupported kind %s", rv.Kind())
	}
}

func (b *schemaBuilder) schemaForMap(rv reflect.Value) (map[string]any, error) {
	if rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("openapi: map key type %s unsupported", rv.Type().Key())
	}
	if rv.IsNil() {
		return map[string]any{"type": "object"}, nil
	}
	if b.seen[rv.Pointer()] {
		return map[string]any{"type": "object"}, nil
	}
	b.seen[rv.Pointer()] = true
	defer delete(b.seen, rv.Pointer())

	names := make([]string, 0, rv.Len())
	for _, key := range rv.MapKeys() {
		names = append(names, key.String())
	}
	sort.Strings(names)

	properties := make(map[string]any, len(names))
	for _, name := range names {
		child, err := b.build(rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key())))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		properties[name] = child
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
	}, nil
}

func (b *schemaBuilder) schemaForStruct(rv reflect.Value) (map[string]any, error) {
	rt := rv.Type()
	properties := map[string]any{}
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag := field.Tag.Get("json"); tag != "" {
			tagName := strings.Split(tag, ",")[0]
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		child, err := b.build(rv.Field(i))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		properties[name] = child
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
	}, nil
}

func (b *schemaBuilder) schemaForSlice(rv reflect.Value) (map[string]any, error) {
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return map[string]any{
			"type":            "string",
			"contentEncoding": "base64",
		}, nil
	}

	items := map[string]any{}
	if rv.Len() > 0 {
		if rv.Kind() == reflect.Slice {
			if b.seen[rv.Pointer()] {
				return map[string]any{"type": "array"}, nil
			}
			b.seen[rv.Pointer()] = true
			defer delete(b.seen, rv.Pointer())
		}
		var err error
		if items, err = b.build(rv.Index(0)); err != nil {
			return nil, fmt.Errorf("[0]: %w", err)
		}
	}
	return map[string]any{
		"type":  "array",
		"items": items,
	}, nil
}
