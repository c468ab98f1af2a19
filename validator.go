package clientstate

import (
	"fmt"
	"sort"
)

// Validator walks candidate client state and reports server-shaped data. It
// never panics and never returns an error: findings are data.
type Validator struct {
	classifier *Classifier
	// lists classifies list elements; it flags over-deep objects.
	lists    *Classifier
	mode     Mode
	maxDepth int
	logger   DiagnosticLogger
}

// NewValidator builds a validator. In ModeDevelopment findings are logged as
// they are returned; in ModeProduction they are only returned.
func NewValidator(opts ...Option) *Validator {
	return newValidator(applyOptions(opts))
}

func newValidator(cfg config) *Validator {
	classifier := newClassifier(cfg)
	return &Validator{
		classifier: classifier,
		lists:      classifier.strict(),
		mode:       cfg.mode,
		maxDepth:   cfg.maxDepth,
		logger:     cfg.diagnosticLogger(),
	}
}

var defaultValidator = NewValidator()

// ValidateState checks state with the default development validator and
// returns every violation found. context names the store in messages.
func ValidateState(state map[string]any, context string) []ValidationViolation {
	return defaultValidator.Validate(state, context)
}

// Classifier exposes the rule chain the validator applies.
func (v *Validator) Classifier() *Classifier {
	return v.classifier
}

// Validate returns the violations found in state. An empty result means the
// state is valid.
func (v *Validator) Validate(state map[string]any, context string) []ValidationViolation {
	return v.Inspect(state, context).Violations
}

// Inspect returns violations together with non-violation diagnostics such as
// cycles and empty arrays.
func (v *Validator) Inspect(state map[string]any, context string) Report {
	report := v.inspect(state, context)
	if v.mode == ModeDevelopment {
		for _, violation := range report.Violations {
			logViolation(v.logger, context, "", violation)
		}
		for _, diagnostic := range report.Diagnostics {
			logDiagnostic(v.logger, context, "", diagnostic)
		}
	}
	return report
}

// inspect is the silent walk shared with stores, which decide themselves what
// to log.
func (v *Validator) inspect(state map[string]any, context string) Report {
	report := Report{Violations: []ValidationViolation{}}
	if state == nil {
		return report
	}
	w := newWalk(func(path string) {
		report.Diagnostics = append(report.Diagnostics, Diagnostic{
			Kind:    DiagnosticCycle,
			Context: context,
			Key:     path,
			Message: fmt.Sprintf("[%s] key '%s' refers back to an enclosing object; walk stopped", context, path),
		})
	})
	leave, _ := w.enter(inspect(state), "")
	defer leave()

	for _, key := range sortedStateKeys(state) {
		v.check(key, key, state[key], 1, w, &report, context)
	}
	return report
}

func (v *Validator) check(key, path string, value any, depth int, w *walk, report *Report, context string) {
	if isUndefined(value) {
		return
	}
	n := inspect(value)
	if cls, ok := v.classifier.shallow(key, path, value, n); ok {
		if cls.Class == ServerOwned {
			report.Violations = append(report.Violations, serverOwnedViolation(context, path, value, cls.Reason))
		}
		return
	}

	switch n.kind {
	case shapeList:
		if n.value.Len() == 0 {
			report.Diagnostics = append(report.Diagnostics, Diagnostic{
				Kind:    DiagnosticEmptyArray,
				Context: context,
				Key:     path,
				Message: fmt.Sprintf("[%s] key '%s' is an empty array; its element shape cannot be checked", context, path),
			})
			return
		}
		cls := v.lists.classifyList(key, path, n, depth, w)
		switch {
		case cls.Class != ServerOwned:
		case cls.Reason == ReasonMaxDepth:
			report.Violations = append(report.Violations, v.maxDepthViolation(context, path, value))
		default:
			report.Violations = append(report.Violations, serverOwnedViolation(context, path, value, cls.Reason))
		}
	case shapeObject:
		keys := n.keys()
		if len(keys) == 0 {
			return
		}
		if depth > v.maxDepth {
			report.Violations = append(report.Violations, v.maxDepthViolation(context, path, value))
			return
		}
		leave, ok := w.enter(n, path)
		if !ok {
			return
		}
		defer leave()
		for _, child := range keys {
			childValue, _ := n.field(child)
			v.check(child, joinPath(path, child), childValue, depth+1, w, report, context)
		}
	}
}

func (v *Validator) maxDepthViolation(context, path string, sample any) ValidationViolation {
	return ValidationViolation{
		Key:           path,
		DetectedClass: ServerOwned,
		Sample:        sample,
		Reason:        ReasonMaxDepth,
		Message:       fmt.Sprintf("[%s] key '%s' nests deeper than %d levels; flatten it or store only identifiers", context, path, v.maxDepth),
	}
}

func serverOwnedViolation(context, path string, sample any, reason string) ValidationViolation {
	return ValidationViolation{
		Key:           path,
		DetectedClass: ServerOwned,
		Sample:        sample,
		Reason:        reason,
		Message:       fmt.Sprintf("[%s] key '%s' looks like server-owned data; store only its identifier", context, path),
	}
}

func sortedStateKeys(state map[string]any) []string {
	keys := make([]string, 0, len(state))
	for key := range state {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
