package clientstate

import "time"

// EvaluatorLogEvent describes one expression rule evaluation.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	Rule     string
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records evaluator events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}

// FailedEvaluations forwards only failing evaluations to logger, so a broken
// rule surfaces in the diagnostics stream without flooding it.
func FailedEvaluations(logger DiagnosticLogger) EvaluatorLogger {
	if logger == nil {
		return noopEvaluatorLogger{}
	}
	return EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
		if event.Err == nil {
			return
		}
		logDiagnostic(logger, "rule:"+event.Rule, "", Diagnostic{
			Kind:    DiagnosticRuleError,
			Context: "rule:" + event.Rule,
			Message: "classification rule failed to evaluate",
			Err:     event.Err,
		})
	})
}
