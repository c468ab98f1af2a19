package clientstate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/goliatone/go-clientstate/pkg/activity"
)

// StateClass tags a value as safe to hold in client state or as data that
// belongs to the server cache.
type StateClass string

const (
	// ClientOnly values may live in a client store.
	ClientOnly StateClass = "ClientOnly"
	// ServerOwned values must be read from the server cache; only their
	// identifier may be kept client side.
	ServerOwned StateClass = "ServerOwned"
)

// Reasons reported by the built-in classification rules.
const (
	ReasonAllowListed = "allow-listed-identifier"
	ReasonPrimitive   = "primitive"
	ReasonIDPattern   = "id-pattern"
	ReasonUndefined   = "undefined-treated-as-empty"
	ReasonDatabaseRow = "database-row"
	ReasonEmptyArray  = "ambiguous-empty-array"
	ReasonPlainObject = "plain-object"
	ReasonCycle       = "cycle-detected"
	ReasonMaxDepth    = "max-depth-exceeded"

	reasonArrayPrefix  = "array:"
	reasonNestedPrefix = "nested:"
)

// DefaultMaxDepth bounds how deep the validator descends into nested objects.
const DefaultMaxDepth = 6

// Classification is the outcome of classifying a single field.
type Classification struct {
	Class  StateClass `json:"class"`
	Reason string     `json:"reason"`
}

// ClientState is the value held by a client store: ids, enums, booleans,
// primitives and nested plain objects of the same.
type ClientState map[string]any

type undefinedValue struct{}

func (undefinedValue) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Undefined marks a declared field that does not hold a value yet.
var Undefined = undefinedValue{}

func isUndefined(value any) bool {
	_, ok := value.(undefinedValue)
	return ok
}

// ValidationViolation describes server-shaped data found in client state.
// Violations are reported, never returned as errors.
type ValidationViolation struct {
	Key           string     `json:"key"`
	DetectedClass StateClass `json:"detected_class"`
	Sample        any        `json:"sample,omitempty"`
	Reason        string     `json:"reason"`
	Message       string     `json:"message"`
	Action        string     `json:"action,omitempty"`
}

func (v ValidationViolation) identity() string {
	return v.Key + "\x00" + v.Reason
}

// DiagnosticKind names a non-violation report.
type DiagnosticKind string

const (
	DiagnosticCycle           DiagnosticKind = "cycle-detected"
	DiagnosticEmptyArray      DiagnosticKind = "ambiguous-empty-array"
	DiagnosticPersistFailed   DiagnosticKind = "persist-failed"
	DiagnosticHydrateFailed   DiagnosticKind = "hydrate-failed"
	DiagnosticHydrateDropped  DiagnosticKind = "hydrate-dropped-key"
	DiagnosticResetRegression DiagnosticKind = "reset-regression"
	DiagnosticRuleError       DiagnosticKind = "rule-error"
)

// Diagnostic is a report that is surfaced for visibility but is not a
// violation of the client/server split.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Context string         `json:"context"`
	Key     string         `json:"key,omitempty"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
}

// Report groups the violations and diagnostics produced by one inspection.
type Report struct {
	Violations  []ValidationViolation `json:"violations"`
	Diagnostics []Diagnostic          `json:"diagnostics,omitempty"`
}

// Valid reports whether no violations were found.
func (r Report) Valid() bool {
	return len(r.Violations) == 0
}

// Mode selects between loud development diagnostics and silent production
// behaviour.
type Mode int

const (
	// ModeDevelopment logs violations as soon as they are detected.
	ModeDevelopment Mode = iota
	// ModeProduction only returns violations.
	ModeProduction
)

func (m Mode) String() string {
	switch m {
	case ModeProduction:
		return "production"
	default:
		return "development"
	}
}

// ParseMode converts a textual mode. Unknown values map to development.
func ParseMode(value string) Mode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "production", "prod":
		return ModeProduction
	default:
		return ModeDevelopment
	}
}

// Storage is the durable persistence port used by client stores. Payloads are
// opaque bytes stored under a single namespaced key per store.
type Storage interface {
	Get(ctx context.Context, name string) ([]byte, bool, error)
	Set(ctx context.Context, name string, payload []byte) error
}

// Option configures classifiers, validators and stores.
type Option func(*config)

type config struct {
	mode               Mode
	maxDepth           int
	identifierKeys     map[string]struct{}
	identifierSuffixes []string
	timestampKeys      []string
	rules              []ClassificationRule
	diagnostics        DiagnosticLogger
	storage            Storage
	namespace          string
	activityHooks      activity.Hooks
	activityConfig     activity.Config
	activityConfigSet  bool
	activitySession    activity.Session
}

var (
	defaultIdentifierSuffixes = []string{"Id", "ID", "_id"}
	defaultTimestampKeys      = []string{"created_at", "updated_at", "deleted_at"}
)

func applyOptions(opts []Option) config {
	cfg := config{
		mode:               ModeDevelopment,
		maxDepth:           DefaultMaxDepth,
		identifierSuffixes: append([]string(nil), defaultIdentifierSuffixes...),
		timestampKeys:      append([]string(nil), defaultTimestampKeys...),
		namespace:          "clientstate",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.maxDepth <= 0 {
		cfg.maxDepth = DefaultMaxDepth
	}
	return cfg
}

func (cfg config) diagnosticLogger() DiagnosticLogger {
	if cfg.mode == ModeProduction {
		return noopDiagnosticLogger{}
	}
	if cfg.diagnostics != nil {
		return cfg.diagnostics
	}
	return SlogDiagnostics(slog.Default())
}

// WithMode selects development or production behaviour.
func WithMode(mode Mode) Option {
	return func(cfg *config) {
		cfg.mode = mode
	}
}

// WithMaxDepth overrides how deep nested objects are inspected.
func WithMaxDepth(depth int) Option {
	return func(cfg *config) {
		cfg.maxDepth = depth
	}
}

// WithIdentifierKeys registers keys that intentionally hold identifiers.
func WithIdentifierKeys(keys ...string) Option {
	return func(cfg *config) {
		if cfg.identifierKeys == nil {
			cfg.identifierKeys = make(map[string]struct{}, len(keys))
		}
		for _, key := range keys {
			if key = strings.TrimSpace(key); key != "" {
				cfg.identifierKeys[key] = struct{}{}
			}
		}
	}
}

// WithIdentifierSuffixes replaces the suffix convention used to recognise
// identifier keys (defaults: Id, ID, _id).
func WithIdentifierSuffixes(suffixes ...string) Option {
	return func(cfg *config) {
		cfg.identifierSuffixes = cfg.identifierSuffixes[:0]
		for _, suffix := range suffixes {
			if suffix != "" {
				cfg.identifierSuffixes = append(cfg.identifierSuffixes, suffix)
			}
		}
	}
}

// WithTimestampKeys replaces the timestamp markers that, together with an id,
// make an object look like a database row.
func WithTimestampKeys(keys ...string) Option {
	return func(cfg *config) {
		cfg.timestampKeys = cfg.timestampKeys[:0]
		for _, key := range keys {
			if key != "" {
				cfg.timestampKeys = append(cfg.timestampKeys, key)
			}
		}
	}
}

// WithRules appends custom classification rules. They are checked before the
// built-in database-row heuristic.
func WithRules(rules ...ClassificationRule) Option {
	return func(cfg *config) {
		for _, rule := range rules {
			if rule.Match != nil || rule.MatchPath != nil {
				cfg.rules = append(cfg.rules, rule)
			}
		}
	}
}

// WithDiagnosticLogger routes development diagnostics to logger.
func WithDiagnosticLogger(logger DiagnosticLogger) Option {
	return func(cfg *config) {
		cfg.diagnostics = logger
	}
}

// WithStorage wires the durable storage used for persisted keys.
func WithStorage(storage Storage) Option {
	return func(cfg *config) {
		cfg.storage = storage
	}
}

// WithNamespace sets the prefix of storage keys (default "clientstate").
func WithNamespace(namespace string) Option {
	return func(cfg *config) {
		if namespace = strings.Trim(strings.TrimSpace(namespace), "/"); namespace != "" {
			cfg.namespace = namespace
		}
	}
}
