package clientstate

import (
	"errors"
	"strings"
	"testing"
)

func TestCompileErrorCarriesExpression(t *testing.T) {
	base := errors.New("unexpected token")
	err := compileError(EngineExpr, "fields[", base)

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	if evalErr.Stage != StageCompile || evalErr.Engine != EngineExpr || evalErr.Expr != "fields[" {
		t.Fatalf("unexpected metadata %+v", evalErr)
	}
	if !errors.Is(err, base) {
		t.Fatalf("wrapped error should unwrap to base error")
	}
	if compileError(EngineExpr, "x", nil) != nil {
		t.Fatalf("nil errors stay nil")
	}
}

func TestAttributeRuleFillsRuleAndKey(t *testing.T) {
	existing := runError(EngineCEL, `"id" in fields`, errors.New("no such overload"))

	err := attributeRule(existing, EngineExpr, "ignored", "row-like", "selectedDeal")
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	if evalErr.Engine != EngineCEL || evalErr.Expr != `"id" in fields` {
		t.Fatalf("evaluator metadata should not be overwritten, got %+v", evalErr)
	}
	if evalErr.Rule != "row-like" || evalErr.Key != "selectedDeal" || evalErr.Stage != StageEvaluate {
		t.Fatalf("rule and key should be filled, got %+v", evalErr)
	}
}

func TestAttributeRuleWrapsPlainErrors(t *testing.T) {
	base := errors.New("boom")
	compile := attributeRule(base, EngineJS, "fields.id", "js-row", "")
	evaluate := attributeRule(base, EngineJS, "fields.id", "js-row", "contact")

	var evalErr *EvaluationError
	if !errors.As(compile, &evalErr) || evalErr.Stage != StageCompile {
		t.Fatalf("errors without a key are compile failures, got %v", compile)
	}
	if !errors.As(evaluate, &evalErr) || evalErr.Stage != StageEvaluate || evalErr.Key != "contact" {
		t.Fatalf("errors with a key are evaluation failures, got %v", evaluate)
	}
}

func TestEngineErrorPrefixesOnce(t *testing.T) {
	if engineError(EngineCEL, nil) != nil {
		t.Fatalf("nil errors stay nil")
	}
	err := engineError(EngineCEL, errors.New("env failed"))
	if !strings.HasPrefix(err.Error(), "clientstate: cel evaluator:") {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if again := engineError(EngineExpr, err); again != err {
		t.Fatalf("already prefixed errors should pass through")
	}
}

func TestEvaluationErrorMessage(t *testing.T) {
	err := &EvaluationError{Stage: StageEvaluate, Engine: EngineExpr, Rule: "r", Key: "deal", Expr: "x > 1", Err: errors.New("bad")}
	if got := err.Error(); got != `clientstate: rule "r" (expr "x > 1") failed to evaluate on key "deal": bad` {
		t.Fatalf("unexpected message %q", got)
	}
	bare := &EvaluationError{Engine: EngineCEL, Err: errors.New("bad")}
	if got := bare.Error(); got != `clientstate: (cel): bad` {
		t.Fatalf("unexpected message %q", got)
	}
	var nilErr *EvaluationError
	if nilErr.Error() != "<nil>" || nilErr.Unwrap() != nil {
		t.Fatalf("nil receiver should be safe")
	}
}
