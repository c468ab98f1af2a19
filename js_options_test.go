package clientstate

import (
	"testing"
	"time"
)

func TestJSRuleSettings(t *testing.T) {
	defaults := newJSRuleSettings(nil)
	if defaults.timeout != DefaultJSRuleTimeout || defaults.cache != nil || defaults.registry != nil {
		t.Fatalf("unexpected defaults %+v", defaults)
	}

	registry := DefaultFunctions()
	cache := NewMemoryProgramCache()
	got := newJSRuleSettings([]JSEvaluatorOption{
		nil,
		JSWithProgramCache(cache),
		JSWithFunctionRegistry(registry),
		JSWithTimeout(-time.Second),
	})
	if got.cache != cache {
		t.Fatalf("program cache was not applied")
	}
	if got.registry == nil || got.registry == registry {
		t.Fatalf("registry should be copied, got %p for %p", got.registry, registry)
	}
	if got.timeout != 0 {
		t.Fatalf("negative timeouts disable the limit, got %s", got.timeout)
	}

	if kept := newJSRuleSettings([]JSEvaluatorOption{JSWithFunctionRegistry(nil)}); kept.registry != nil {
		t.Fatalf("a nil registry must be ignored")
	}
}
