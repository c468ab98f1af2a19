package clientstate

import (
	"errors"
	"fmt"
	"strings"
)

// Stages at which a rule expression can fail.
const (
	StageCompile  = "compile"
	StageEvaluate = "evaluate"
)

// EvaluationError reports a classification rule whose expression failed to
// compile, or failed while classifying a value. Key is the dotted path of
// that value and is empty for compile failures.
type EvaluationError struct {
	Stage  string
	Engine string
	Rule   string
	Key    string
	Expr   string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("clientstate: ")
	if e.Rule != "" {
		fmt.Fprintf(&b, "rule %q ", e.Rule)
	}
	fmt.Fprintf(&b, "(%s", e.Engine)
	if e.Expr != "" {
		fmt.Fprintf(&b, " %q", e.Expr)
	}
	b.WriteString(")")
	if e.Stage != "" {
		fmt.Fprintf(&b, " failed to %s", e.Stage)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " on key %q", e.Key)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// engineError tags setup failures that are not tied to one expression.
func engineError(engine string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) || strings.HasPrefix(err.Error(), "clientstate:") {
		return err
	}
	return fmt.Errorf("clientstate: %s evaluator: %w", engine, err)
}

func compileError(engine, expr string, err error) error {
	return expressionError(StageCompile, engine, expr, err)
}

func runError(engine, expr string, err error) error {
	return expressionError(StageEvaluate, engine, expr, err)
}

func expressionError(stage, engine, expr string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}
	return &EvaluationError{Stage: stage, Engine: engine, Expr: expr, Err: err}
}

// attributeRule fills in the rule and key a failure belongs to. Fields the
// evaluator already set are kept.
func attributeRule(err error, engine, expr, rule, key string) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		stage := StageCompile
		if key != "" {
			stage = StageEvaluate
		}
		return &EvaluationError{Stage: stage, Engine: engine, Rule: rule, Key: key, Expr: expr, Err: err}
	}
	if evalErr.Engine == "" {
		evalErr.Engine = engine
	}
	if evalErr.Expr == "" {
		evalErr.Expr = expr
	}
	if evalErr.Rule == "" {
		evalErr.Rule = rule
	}
	if evalErr.Key == "" {
		evalErr.Key = key
	}
	return evalErr
}
