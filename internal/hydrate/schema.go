package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// KeySchemas holds one JSON Schema per persisted key, derived from the JSON
// type of the key's initial value. A stored value whose type drifted (a list
// where a string used to live, say) fails its schema.
type KeySchemas struct {
	schemas map[string]*jsonschema.Schema
	// types holds the Go type of each non-null initial value. Hydrated
	// values are decoded back into it so an int stays an int.
	types map[string]reflect.Type
}

// CompileKeySchemas derives schemas for keys from the matching initial
// values. Keys whose initial value is null accept any JSON value; all other
// keys accept their initial JSON type or null.
func CompileKeySchemas(initial map[string]any, keys []string) (*KeySchemas, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	out := &KeySchemas{
		schemas: make(map[string]*jsonschema.Schema, len(keys)),
		types:   make(map[string]reflect.Type, len(keys)),
	}
	for i, key := range keys {
		if initial[key] != nil {
			out.types[key] = reflect.TypeOf(initial[key])
		}
		document, err := typeSchema(initial[key])
		if err != nil {
			return nil, fmt.Errorf("hydrate: derive schema for %q: %w", key, err)
		}
		url := fmt.Sprintf("persist-%d.json", i)
		if err := compiler.AddResource(url, bytes.NewReader(document)); err != nil {
			return nil, fmt.Errorf("hydrate: add schema for %q: %w", key, err)
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("hydrate: compile schema for %q: %w", key, err)
		}
		out.schemas[key] = schema
	}
	return out, nil
}

// Validate checks a decoded JSON value against the schema of key. Unknown
// keys always fail.
func (k *KeySchemas) Validate(key string, value any) error {
	schema, ok := k.schemas[key]
	if !ok {
		return fmt.Errorf("hydrate: no schema for %q", key)
	}
	return schema.Validate(value)
}

// Restore decodes a JSON value of key back into the Go type of the key's
// initial value. Null values and keys whose initial value was null are
// returned unchanged.
func (k *KeySchemas) Restore(key string, value any) (any, error) {
	typ, ok := k.types[key]
	if !ok || value == nil {
		return value, nil
	}
	if reflect.TypeOf(value) == typ {
		return value, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	target := reflect.New(typ)
	if err := json.Unmarshal(raw, target.Interface()); err != nil {
		return nil, fmt.Errorf("hydrate: restore %q as %s: %w", key, typ, err)
	}
	return target.Elem().Interface(), nil
}

// Hook returns a pre-hook that removes keys failing their schema and restores
// the rest to their initial Go types. Each removed key is passed to onDrop
// with the error.
func (k *KeySchemas) Hook(onDrop func(key string, err error)) PreHook {
	return func(_ Context, payload map[string]any) (map[string]any, error) {
		for _, key := range sortedKeys(payload) {
			err := k.Validate(key, payload[key])
			if err == nil {
				payload[key], err = k.Restore(key, payload[key])
			}
			if err != nil {
				delete(payload, key)
				if onDrop != nil {
					onDrop(key, err)
				}
			}
		}
		return payload, nil
	}
}

func typeSchema(initial any) ([]byte, error) {
	raw, err := json.Marshal(initial)
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	var jsonType string
	switch decoded.(type) {
	case nil:
		return []byte(`{}`), nil
	case bool:
		jsonType = "boolean"
	case float64:
		jsonType = "number"
	case string:
		jsonType = "string"
	case []any:
		jsonType = "array"
	case map[string]any:
		jsonType = "object"
	default:
		return nil, fmt.Errorf("unsupported JSON value %T", decoded)
	}
	return json.Marshal(map[string]any{
		"type": []string{jsonType, "null"},
	})
}

func sortedKeys(payload map[string]any) []string {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
