package clientstate

import (
	"strings"

	"github.com/google/uuid"
)

// Classifier decides whether a field sample is client-only or server-owned.
// It is pure and safe for concurrent use.
type Classifier struct {
	maxDepth       int
	identifierKeys map[string]struct{}
	suffixes       []string
	timestampKeys  []string
	rules          []ClassificationRule
	// depthClass is the class given to objects nested past maxDepth.
	depthClass StateClass
}

// NewClassifier builds a classifier from options. Only the classification
// related options are consulted.
func NewClassifier(opts ...Option) *Classifier {
	return newClassifier(applyOptions(opts))
}

func newClassifier(cfg config) *Classifier {
	keys := make(map[string]struct{}, len(cfg.identifierKeys))
	for key := range cfg.identifierKeys {
		keys[key] = struct{}{}
	}
	return &Classifier{
		maxDepth:       cfg.maxDepth,
		identifierKeys: keys,
		suffixes:       append([]string(nil), cfg.identifierSuffixes...),
		timestampKeys:  append([]string(nil), cfg.timestampKeys...),
		rules:          append([]ClassificationRule(nil), cfg.rules...),
		depthClass:     ClientOnly,
	}
}

// strict returns a copy that classifies objects nested past the depth limit
// as server-owned, matching how the validator treats them outside lists.
func (c *Classifier) strict() *Classifier {
	out := *c
	out.depthClass = ServerOwned
	return &out
}

// Classify evaluates the rule chain for key/sample. First match wins:
// allow-listed identifiers, primitives, structural heuristics, arrays and
// finally a recursive walk of plain objects.
func (c *Classifier) Classify(key string, sample any) Classification {
	w := newWalk(nil)
	return c.classify(key, key, sample, 1, w)
}

// IsIdentifierKey reports whether key follows the client-held identifier
// convention (explicit registration or suffix such as selectedContactId).
func (c *Classifier) IsIdentifierKey(key string) bool {
	if _, ok := c.identifierKeys[key]; ok {
		return true
	}
	for _, suffix := range c.suffixes {
		if len(key) > len(suffix) && strings.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}

type walk struct {
	ancestors map[identity]struct{}
	onCycle   func(path string)
}

func newWalk(onCycle func(path string)) *walk {
	return &walk{ancestors: map[identity]struct{}{}, onCycle: onCycle}
}

// enter pushes n on the ancestor set. It reports false when n is already an
// ancestor, i.e. the walk found a cycle.
func (w *walk) enter(n node, path string) (func(), bool) {
	id, ok := n.identity()
	if !ok {
		return func() {}, true
	}
	if _, seen := w.ancestors[id]; seen {
		if w.onCycle != nil {
			w.onCycle(path)
		}
		return nil, false
	}
	w.ancestors[id] = struct{}{}
	return func() { delete(w.ancestors, id) }, true
}

func (c *Classifier) classify(key, path string, value any, depth int, w *walk) Classification {
	if isUndefined(value) {
		return Classification{Class: ClientOnly, Reason: ReasonUndefined}
	}
	n := inspect(value)
	if cls, ok := c.shallow(key, path, value, n); ok {
		return cls
	}
	switch n.kind {
	case shapeList:
		return c.classifyList(key, path, n, depth, w)
	default:
		return c.classifyObject(path, n, depth, w)
	}
}

// shallow runs the rules that do not recurse: allow-list, primitives and
// structural heuristics. It reports false when the value is a list or a
// plain object that needs a recursive walk.
func (c *Classifier) shallow(key, path string, value any, n node) (Classification, bool) {
	if c.IsIdentifierKey(key) && n.kind == shapeScalar && (n.null || n.str) {
		return Classification{Class: ClientOnly, Reason: ReasonAllowListed}, true
	}
	switch n.kind {
	case shapeScalar:
		return classifyScalar(n), true
	case shapeObject:
		return c.structural(key, path, value, n)
	}
	return Classification{}, false
}

func classifyScalar(n node) Classification {
	if n.str {
		if _, err := uuid.Parse(n.value.String()); err == nil {
			return Classification{Class: ClientOnly, Reason: ReasonIDPattern}
		}
	}
	return Classification{Class: ClientOnly, Reason: ReasonPrimitive}
}

func (c *Classifier) structural(key, path string, value any, n node) (Classification, bool) {
	for _, rule := range c.rules {
		if rule.matches(key, path, value) {
			return rule.classification(), true
		}
	}
	if c.looksLikeRow(n) {
		return Classification{Class: ServerOwned, Reason: ReasonDatabaseRow}, true
	}
	return Classification{}, false
}

// looksLikeRow is the database-row heuristic: an id plus at least one
// timestamp marker.
func (c *Classifier) looksLikeRow(n node) bool {
	if !n.has("id") {
		return false
	}
	for _, marker := range c.timestampKeys {
		if n.has(marker) {
			return true
		}
	}
	return false
}

func (c *Classifier) classifyList(key, path string, n node, depth int, w *walk) Classification {
	if n.value.Len() == 0 {
		return Classification{Class: ClientOnly, Reason: ReasonEmptyArray}
	}
	leave, ok := w.enter(n, path)
	if !ok {
		return Classification{Class: ClientOnly, Reason: ReasonCycle}
	}
	defer leave()
	elem := n.value.Index(0).Interface()
	cls := c.classify(key, path+"[0]", elem, depth, w)
	if strings.HasPrefix(cls.Reason, reasonNestedPrefix) || cls.Reason == ReasonMaxDepth {
		return cls
	}
	return Classification{Class: cls.Class, Reason: reasonArrayPrefix + cls.Reason}
}

func (c *Classifier) classifyObject(path string, n node, depth int, w *walk) Classification {
	leave, ok := w.enter(n, path)
	if !ok {
		return Classification{Class: ClientOnly, Reason: ReasonCycle}
	}
	defer leave()
	keys := n.keys()
	if len(keys) > 0 && depth > c.maxDepth {
		return Classification{Class: c.depthClass, Reason: ReasonMaxDepth}
	}
	for _, key := range keys {
		child, _ := n.field(key)
		childPath := joinPath(path, key)
		cls := c.classify(key, childPath, child, depth+1, w)
		if cls.Class != ServerOwned {
			continue
		}
		if strings.HasPrefix(cls.Reason, reasonNestedPrefix) || cls.Reason == ReasonMaxDepth {
			return cls
		}
		return Classification{Class: ServerOwned, Reason: reasonNestedPrefix + childPath}
	}
	return Classification{Class: ClientOnly, Reason: ReasonPlainObject}
}
