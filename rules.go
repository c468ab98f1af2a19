package clientstate

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ClassificationRule is a custom structural predicate. Rules run before the
// database-row heuristic; the first matching rule decides the class.
type ClassificationRule struct {
	Name   string
	Reason string
	// Class defaults to ServerOwned. Setting ClientOnly lets a rule vouch for
	// client-held objects that would otherwise look like rows (local drafts).
	Class StateClass
	Match func(key string, value any) bool
	// MatchPath, when set, is used instead of Match and also receives the
	// dotted path of the value ("filters.owner", "contacts[0]").
	MatchPath func(key, path string, value any) bool
}

func (r ClassificationRule) matches(key, path string, value any) bool {
	if r.MatchPath != nil {
		return r.MatchPath(key, path, value)
	}
	return r.Match != nil && r.Match(key, value)
}

func (r ClassificationRule) classification() Classification {
	class := r.Class
	if class == "" {
		class = ServerOwned
	}
	reason := r.Reason
	if reason == "" {
		reason = r.Name
	}
	return Classification{Class: class, Reason: reason}
}

// FieldsRule matches objects carrying every one of the given keys.
func FieldsRule(name, reason string, keys ...string) ClassificationRule {
	required := append([]string(nil), keys...)
	return ClassificationRule{
		Name:   name,
		Reason: reason,
		Match: func(_ string, value any) bool {
			n := inspect(value)
			if n.kind != shapeObject || len(required) == 0 {
				return false
			}
			for _, key := range required {
				if !n.has(key) {
					return false
				}
			}
			return true
		},
	}
}

// ExpressionRuleConfig describes a rule backed by an expression engine.
type ExpressionRuleConfig struct {
	Name       string
	Expression string
	Reason     string
	Class      StateClass
	Evaluator  Evaluator
	Logger     EvaluatorLogger
	Metadata   map[string]any
}

// ExpressionRule compiles cfg.Expression once and returns a rule that
// evaluates it against each object. The expression sees key, path, value and
// fields; it must yield a boolean. Evaluation errors count as no match and are
// reported through the evaluator logger.
func ExpressionRule(cfg ExpressionRuleConfig) (ClassificationRule, error) {
	expression := strings.TrimSpace(cfg.Expression)
	if expression == "" {
		return ClassificationRule{}, fmt.Errorf("clientstate: rule %q: expression must not be empty", cfg.Name)
	}
	evaluator := cfg.Evaluator
	if evaluator == nil {
		evaluator = NewExprEvaluator(ExprWithFunctionRegistry(DefaultFunctions()))
	}
	compiled, err := evaluator.Compile(expression)
	if err != nil {
		return ClassificationRule{}, attributeRule(err, evaluatorEngineName(evaluator), expression, cfg.Name, "")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopEvaluatorLogger{}
	}
	engine := evaluatorEngineName(evaluator)
	metadata := copyMetadata(cfg.Metadata)
	name := cfg.Name
	if name == "" {
		name = expression
	}

	var mu sync.Mutex
	match := func(key, path string, value any) bool {
		fields, ok := Fields(value)
		if !ok {
			return false
		}
		ctx := RuleContext{Key: key, Path: path, Value: value, Fields: fields, Metadata: metadata}
		start := time.Now()
		mu.Lock()
		out, evalErr := compiled.Evaluate(ctx)
		mu.Unlock()
		evalErr = attributeRule(evalErr, engine, expression, name, path)
		logger.LogEvaluation(EvaluatorLogEvent{
			Engine:   engine,
			Expr:     expression,
			Rule:     name,
			Duration: time.Since(start),
			Err:      evalErr,
		})
		if evalErr != nil {
			return false
		}
		matched, _ := out.(bool)
		return matched
	}
	return ClassificationRule{
		Name:   name,
		Reason: cfg.Reason,
		Class:  cfg.Class,
		Match: func(key string, value any) bool {
			return match(key, key, value)
		},
		MatchPath: match,
	}, nil
}

func copyMetadata(origin map[string]any) map[string]any {
	if len(origin) == 0 {
		return nil
	}
	out := make(map[string]any, len(origin))
	for key, value := range origin {
		out[key] = value
	}
	return out
}
