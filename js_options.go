package clientstate

import "time"

// DefaultJSRuleTimeout bounds a single JS rule evaluation. Rules run inside
// every dispatch in development mode, so a runaway loop must not hang it.
const DefaultJSRuleTimeout = 250 * time.Millisecond

// jsRuleSettings is shared by the goja evaluator and its stub so option
// constructors compile with or without the js_eval tag.
type jsRuleSettings struct {
	cache    ProgramCache
	registry *FunctionRegistry
	timeout  time.Duration
}

// JSEvaluatorOption tunes the goja-backed rule evaluator.
type JSEvaluatorOption func(*jsRuleSettings)

// JSWithProgramCache shares compiled goja programs with other rules.
func JSWithProgramCache(cache ProgramCache) JSEvaluatorOption {
	return func(s *jsRuleSettings) { s.cache = cache }
}

// JSWithFunctionRegistry exposes a copy of registry as global JS functions.
// Later registrations on registry are not visible to the evaluator.
func JSWithFunctionRegistry(registry *FunctionRegistry) JSEvaluatorOption {
	return func(s *jsRuleSettings) {
		if registry != nil {
			s.registry = registry.Clone()
		}
	}
}

// JSWithTimeout interrupts rule evaluations running longer than d. Zero or
// negative disables the limit.
func JSWithTimeout(d time.Duration) JSEvaluatorOption {
	return func(s *jsRuleSettings) { s.timeout = d }
}

func newJSRuleSettings(opts []JSEvaluatorOption) jsRuleSettings {
	s := jsRuleSettings{timeout: DefaultJSRuleTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	if s.timeout < 0 {
		s.timeout = 0
	}
	return s
}
