package openapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/santhosh-tekuri/jsonschema/v5"

	clientstate "github.com/goliatone/go-clientstate"
)

// Extension keywords added to each state property.
const (
	ExtStateClass  = "x-state-class"
	ExtStateReason = "x-state-reason"
	ExtPersisted   = "x-persisted"
)

// Store is the part of a store definition the generator reads.
type Store struct {
	Name         string
	InitialState map[string]any
	PersistKeys  []string
}

// Generator renders client store definitions as an OpenAPI document.
type Generator interface {
	Generate(stores []Store) (map[string]any, error)
}

type generator struct {
	config generatorConfig
}

// NewGenerator constructs a Generator with the provided options.
func NewGenerator(opts ...GeneratorOption) Generator {
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return generator{config: cfg}
}

// Generate builds one component schema per store, named after the store with
// a State suffix ("contacts-view" becomes ContactsViewState). Every top-level
// key is required and annotated with its classification; persisted keys are
// flagged with x-persisted.
func (g generator) Generate(stores []Store) (map[string]any, error) {
	classifier := clientstate.NewClassifier(g.config.classifier...)
	schemas := make(map[string]any, len(stores))
	for _, store := range stores {
		name := ComponentName(store.Name)
		if name == "" {
			return nil, fmt.Errorf("openapi: store %q has no usable name", store.Name)
		}
		if _, dup := schemas[name]; dup {
			return nil, fmt.Errorf("openapi: component %q defined twice", name)
		}
		schema, err := storeSchema(classifier, store)
		if err != nil {
			return nil, fmt.Errorf("openapi: store %q: %w", store.Name, err)
		}
		schemas[name] = schema
	}

	document := map[string]any{
		"openapi": g.config.openAPIVersion,
		"info":    g.buildInfo(),
		"paths":   map[string]any{},
		"components": map[string]any{
			"schemas": schemas,
		},
	}
	if err := validateDocument(document); err != nil {
		return nil, err
	}
	return document, nil
}

func (g generator) buildInfo() map[string]any {
	info := map[string]any{
		"title":   g.config.info.Title,
		"version": g.config.info.Version,
	}
	if g.config.info.Description != "" {
		info["description"] = g.config.info.Description
	}
	return info
}

func storeSchema(classifier *clientstate.Classifier, store Store) (map[string]any, error) {
	persisted := make(map[string]bool, len(store.PersistKeys))
	for _, key := range store.PersistKeys {
		persisted[key] = true
	}

	keys := make([]string, 0, len(store.InitialState))
	for key := range store.InitialState {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	builder := newSchemaBuilder()
	properties := make(map[string]any, len(keys))
	for _, key := range keys {
		value := store.InitialState[key]
		property, err := builder.fieldSchema(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		cls := classifier.Classify(key, value)
		property[ExtStateClass] = string(cls.Class)
		property[ExtStateReason] = cls.Reason
		if persisted[key] {
			property[ExtPersisted] = true
		}
		properties[key] = property
	}

	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             keys,
		"additionalProperties": false,
	}, nil
}

// ComponentName converts a store name into a component identifier by
// dropping separators and upper-casing each word.
func ComponentName(store string) string {
	var b strings.Builder
	upper := true
	for _, r := range store {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return ""
	}
	return b.String() + "State"
}

// Compile compiles one component of a generated document as a JSON Schema
// 2020-12 validator.
func Compile(document map[string]any, component string) (*jsonschema.Schema, error) {
	components, _ := document["components"].(map[string]any)
	schemas, _ := components["schemas"].(map[string]any)
	schema, ok := schemas[component]
	if !ok {
		return nil, fmt.Errorf("openapi: component %q not found", component)
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("openapi: encode %q: %w", component, err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	url := component + ".json"
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("openapi: add %q: %w", component, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("openapi: compile %q: %w", component, err)
	}
	return compiled, nil
}

func validateDocument(document map[string]any) error {
	if openapi, _ := document["openapi"].(string); openapi == "" {
		return fmt.Errorf("openapi: document missing version string")
	}
	info, _ := document["info"].(map[string]any)
	if info == nil {
		return fmt.Errorf("openapi: document missing info section")
	}
	if title, _ := info["title"].(string); title == "" {
		return fmt.Errorf("openapi: info.title must be set")
	}
	if version, _ := info["version"].(string); version == "" {
		return fmt.Errorf("openapi: info.version must be set")
	}
	components, _ := document["components"].(map[string]any)
	schemas, _ := components["schemas"].(map[string]any)
	for name := range schemas {
		if _, err := Compile(document, name); err != nil {
			return err
		}
	}
	return nil
}
