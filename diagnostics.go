package clientstate

import (
	"context"
	"log/slog"
)

// DiagnosticEvent is emitted for every violation or diagnostic surfaced in
// development mode.
type DiagnosticEvent struct {
	Context   string
	Action    string
	Violation *ValidationViolation
	Diag      *Diagnostic
}

// DiagnosticLogger records development diagnostics.
type DiagnosticLogger interface {
	LogDiagnostic(DiagnosticEvent)
}

// DiagnosticLoggerFunc adapts a function to DiagnosticLogger.
type DiagnosticLoggerFunc func(DiagnosticEvent)

// LogDiagnostic implements DiagnosticLogger.
func (f DiagnosticLoggerFunc) LogDiagnostic(event DiagnosticEvent) {
	if f != nil {
		f(event)
	}
}

type noopDiagnosticLogger struct{}

func (noopDiagnosticLogger) LogDiagnostic(DiagnosticEvent) {}

type slogDiagnostics struct {
	logger *slog.Logger
}

// SlogDiagnostics writes violations as warnings and other diagnostics at a
// level matching their severity.
func SlogDiagnostics(logger *slog.Logger) DiagnosticLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return slogDiagnostics{logger: logger.With("component", "clientstate")}
}

func (l slogDiagnostics) LogDiagnostic(event DiagnosticEvent) {
	ctx := context.Background()
	switch {
	case event.Violation != nil:
		v := event.Violation
		attrs := []any{
			slog.String("store", event.Context),
			slog.String("key", v.Key),
			slog.String("class", string(v.DetectedClass)),
			slog.String("reason", v.Reason),
		}
		if event.Action != "" {
			attrs = append(attrs, slog.String("action", event.Action))
		}
		l.logger.Log(ctx, slog.LevelWarn, v.Message, attrs...)
	case event.Diag != nil:
		d := event.Diag
		level := slog.LevelInfo
		switch d.Kind {
		case DiagnosticPersistFailed, DiagnosticHydrateFailed, DiagnosticResetRegression:
			level = slog.LevelWarn
		case DiagnosticEmptyArray:
			level = slog.LevelDebug
		}
		attrs := []any{
			slog.String("store", event.Context),
			slog.String("kind", string(d.Kind)),
		}
		if d.Key != "" {
			attrs = append(attrs, slog.String("key", d.Key))
		}
		if event.Action != "" {
			attrs = append(attrs, slog.String("action", event.Action))
		}
		if d.Err != nil {
			attrs = append(attrs, slog.Any("error", d.Err))
		}
		l.logger.Log(ctx, level, d.Message, attrs...)
	}
}

func logViolation(logger DiagnosticLogger, context, action string, v ValidationViolation) {
	logger.LogDiagnostic(DiagnosticEvent{Context: context, Action: action, Violation: &v})
}

func logDiagnostic(logger DiagnosticLogger, context, action string, d Diagnostic) {
	logger.LogDiagnostic(DiagnosticEvent{Context: context, Action: action, Diag: &d})
}
