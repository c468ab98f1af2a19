package clientstate

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNoEvaluator = errors.New("clientstate: evaluator not configured")

// Engine names accepted by NewEvaluator.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

// RuleContext carries the object under classification into an expression.
type RuleContext struct {
	Key      string
	Path     string
	Value    any
	Fields   map[string]any
	Args     map[string]any
	Metadata map[string]any
}

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Fields == nil {
		ctx.Fields = map[string]any{}
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	if ctx.Path == "" {
		ctx.Path = ctx.Key
	}
	return ctx
}

func (ctx RuleContext) bindings() map[string]any {
	return map[string]any{
		"key":      ctx.Key,
		"path":     ctx.Path,
		"value":    ctx.Value,
		"fields":   ctx.Fields,
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
	}
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// EvaluatorOptions configures NewEvaluator.
type EvaluatorOptions struct {
	Cache    ProgramCache
	Registry *FunctionRegistry
}

// NewEvaluator returns the evaluator for engine ("expr", "cel" or "js"). An
// empty engine selects expr. The js engine needs the js_eval build tag.
func NewEvaluator(engine string, options EvaluatorOptions) (Evaluator, error) {
	registry := options.Registry
	if registry == nil {
		registry = DefaultFunctions()
	}
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineExpr:
		return NewExprEvaluator(ExprWithProgramCache(options.Cache), ExprWithFunctionRegistry(registry)), nil
	case EngineCEL:
		return NewCELEvaluator(CELWithProgramCache(options.Cache), CELWithFunctionRegistry(registry)), nil
	case EngineJS:
		evaluator := NewJSEvaluator(JSWithProgramCache(options.Cache), JSWithFunctionRegistry(registry))
		if evaluator == nil {
			return nil, fmt.Errorf("%w: js engine requires the js_eval build tag", ErrNoEvaluator)
		}
		return evaluator, nil
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", ErrNoEvaluator, engine)
	}
}

func evaluatorEngineName(e Evaluator) string {
	switch e.(type) {
	case nil:
		return "unknown"
	case *exprEvaluator:
		return EngineExpr
	case *celEvaluator:
		return EngineCEL
	default:
		if isJSEvaluator(e) {
			return EngineJS
		}
		return "custom"
	}
}
