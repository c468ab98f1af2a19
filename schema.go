package clientstate

import (
	"fmt"
	"strings"
)

// FieldDescriptor describes one leaf of a state object: its path, the Go type
// of the sample and how the classifier sees it.
type FieldDescriptor struct {
	Path   string     `json:"path"`
	Type   string     `json:"type"`
	Class  StateClass `json:"class"`
	Reason string     `json:"reason"`
}

// Describe flattens state into field descriptors in sorted path order. Plain
// objects are expanded; lists, rows and scalars are described as a whole.
func Describe(state map[string]any, opts ...Option) []FieldDescriptor {
	classifier := NewClassifier(opts...)
	fields := []FieldDescriptor{}
	w := newWalk(nil)
	leave, _ := w.enter(inspect(state), "")
	defer leave()
	for _, key := range sortedStateKeys(state) {
		fields = append(fields, classifier.describe(key, key, state[key], 1, w)...)
	}
	return fields
}

func (c *Classifier) describe(key, path string, value any, depth int, w *walk) []FieldDescriptor {
	n := inspect(value)
	expand := n.kind == shapeObject && !isUndefined(value) && depth <= c.maxDepth
	if expand {
		if _, decided := c.shallow(key, path, value, n); decided {
			expand = false
		}
	}
	keys := n.keys()
	if !expand || len(keys) == 0 {
		cls := c.classify(key, path, value, depth, w)
		return []FieldDescriptor{{Path: path, Type: typeName(value), Class: cls.Class, Reason: cls.Reason}}
	}
	leave, ok := w.enter(n, path)
	if !ok {
		return []FieldDescriptor{{Path: path, Type: typeName(value), Class: ClientOnly, Reason: ReasonCycle}}
	}
	defer leave()
	var fields []FieldDescriptor
	for _, child := range keys {
		childValue, _ := n.field(child)
		fields = append(fields, c.describe(child, joinPath(path, child), childValue, depth+1, w)...)
	}
	return fields
}

func typeName(value any) string {
	if value == nil {
		return "nil"
	}
	if isUndefined(value) {
		return "undefined"
	}
	return fmt.Sprintf("%T", value)
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return strings.Join([]string{prefix, segment}, ".")
}
