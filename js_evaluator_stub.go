//go:build !js_eval

package clientstate

// NewJSEvaluator is unavailable without the js_eval build tag. NewEvaluator
// turns the nil result into ErrNoEvaluator.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = newJSRuleSettings(opts)
	return nil
}

func jsEvaluatorAvailable() bool {
	return false
}

func isJSEvaluator(Evaluator) bool {
	return false
}
