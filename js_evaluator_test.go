//go:build js_eval

package clientstate

import (
	"errors"
	"testing"
	"time"
)

func TestJSEvaluatorInterruptsLongRules(t *testing.T) {
	evaluator := NewJSEvaluator(JSWithTimeout(20 * time.Millisecond))
	compiled, err := evaluator.Compile(`(function(){ while (true) {} })()`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	start := time.Now()
	_, err = compiled.Evaluate(RuleContext{Key: "filters"})
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) || evalErr.Engine != EngineJS {
		t.Fatalf("expected a js evaluation error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("rule was not interrupted in time (%s)", elapsed)
	}
}

func TestJSEvaluatorSeesPath(t *testing.T) {
	out, err := NewJSEvaluator().Evaluate(RuleContext{Key: "owner", Path: "filters.owner"}, `path + "/" + key`)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if out != "filters.owner/owner" {
		t.Fatalf("unexpected result %v", out)
	}
}
