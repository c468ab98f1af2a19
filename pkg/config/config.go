// Package config loads clientstate settings from TOML, YAML or JSON files and
// turns them into library options.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	clientstate "github.com/goliatone/go-clientstate"
	"github.com/goliatone/go-clientstate/pkg/activity"
	"github.com/goliatone/go-clientstate/pkg/storage"
)

// Storage drivers understood by OpenStorage.
const (
	DriverNone   = "none"
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Config is the file representation of the library options.
type Config struct {
	Mode               string         `toml:"mode" json:"mode" yaml:"mode"`
	MaxDepth           int            `toml:"max_depth" json:"max_depth" yaml:"max_depth"`
	Namespace          string         `toml:"namespace" json:"namespace" yaml:"namespace"`
	IdentifierKeys     []string       `toml:"identifier_keys" json:"identifier_keys" yaml:"identifier_keys"`
	IdentifierSuffixes []string       `toml:"identifier_suffixes" json:"identifier_suffixes" yaml:"identifier_suffixes"`
	TimestampKeys      []string       `toml:"timestamp_keys" json:"timestamp_keys" yaml:"timestamp_keys"`
	Rules              []RuleConfig   `toml:"rules" json:"rules" yaml:"rules"`
	Storage            StorageConfig  `toml:"storage" json:"storage" yaml:"storage"`
	Activity           ActivityConfig `toml:"activity" json:"activity" yaml:"activity"`
}

// RuleConfig declares an expression classification rule.
type RuleConfig struct {
	Name       string `toml:"name" json:"name" yaml:"name"`
	Engine     string `toml:"engine" json:"engine" yaml:"engine"`
	Expression string `toml:"expression" json:"expression" yaml:"expression"`
	Reason     string `toml:"reason" json:"reason" yaml:"reason"`
	Class      string `toml:"class" json:"class" yaml:"class"`
}

// StorageConfig selects the durable storage adapter.
type StorageConfig struct {
	Driver string `toml:"driver" json:"driver" yaml:"driver"`
	Path   string `toml:"path" json:"path" yaml:"path"`
}

// ActivityConfig controls store activity emission. A nil Enabled leaves the
// decision to the hooks passed to the stores.
type ActivityConfig struct {
	Enabled *bool  `toml:"enabled" json:"enabled" yaml:"enabled"`
	Channel string `toml:"channel" json:"channel" yaml:"channel"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Mode:      clientstate.ModeDevelopment.String(),
		MaxDepth:  clientstate.DefaultMaxDepth,
		Namespace: "clientstate",
		Storage:   StorageConfig{Driver: DriverNone},
	}
}

// ApplyEnvOverrides applies CLIENTSTATE_* environment variables on top of
// the file values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CLIENTSTATE_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("CLIENTSTATE_MAX_DEPTH"); v != "" {
		if depth, err := strconv.Atoi(v); err == nil {
			c.MaxDepth = depth
		}
	}
	if v := os.Getenv("CLIENTSTATE_NAMESPACE"); v != "" {
		c.Namespace = v
	}
	if v := os.Getenv("CLIENTSTATE_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("CLIENTSTATE_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(strings.TrimSpace(c.Mode)) {
	case "", "development", "dev", "production", "prod":
	default:
		errs = append(errs, fmt.Errorf("config: mode: unknown mode %q", c.Mode))
	}
	if c.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("config: max_depth: must not be negative"))
	}
	switch c.driver() {
	case DriverNone, DriverMemory:
	case DriverFile, DriverSQLite:
		if strings.TrimSpace(c.Storage.Path) == "" {
			errs = append(errs, fmt.Errorf("config: storage.path: required for driver %q", c.Storage.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("config: storage.driver: unknown driver %q", c.Storage.Driver))
	}
	for i, rule := range c.Rules {
		if strings.TrimSpace(rule.Expression) == "" {
			errs = append(errs, fmt.Errorf("config: rules[%d]: expression is required", i))
		}
		switch clientstate.StateClass(rule.Class) {
		case "", clientstate.ClientOnly, clientstate.ServerOwned:
		default:
			errs = append(errs, fmt.Errorf("config: rules[%d]: unknown class %q", i, rule.Class))
		}
	}
	return errors.Join(errs...)
}

// sharedPrograms lets reloaded configs reuse compiled expressions.
var sharedPrograms = clientstate.NewMemoryProgramCache()

// Options converts the configuration into library options. Expression rules
// are compiled here, so a broken expression fails at load time. Evaluation
// failures are reported through diagnostics.
func (c *Config) Options(diagnostics clientstate.DiagnosticLogger) ([]clientstate.Option, error) {
	opts := []clientstate.Option{
		clientstate.WithMode(clientstate.ParseMode(c.Mode)),
		clientstate.WithMaxDepth(c.MaxDepth),
		clientstate.WithNamespace(c.Namespace),
	}
	if len(c.IdentifierKeys) > 0 {
		opts = append(opts, clientstate.WithIdentifierKeys(c.IdentifierKeys...))
	}
	if len(c.IdentifierSuffixes) > 0 {
		opts = append(opts, clientstate.WithIdentifierSuffixes(c.IdentifierSuffixes...))
	}
	if len(c.TimestampKeys) > 0 {
		opts = append(opts, clientstate.WithTimestampKeys(c.TimestampKeys...))
	}
	if diagnostics != nil {
		opts = append(opts, clientstate.WithDiagnosticLogger(diagnostics))
	}
	if c.Activity.Enabled != nil || c.Activity.Channel != "" {
		enabled := c.Activity.Enabled == nil || *c.Activity.Enabled
		opts = append(opts, clientstate.WithActivityConfig(activity.Config{Enabled: enabled, Channel: c.Activity.Channel}))
	}

	rules := make([]clientstate.ClassificationRule, 0, len(c.Rules))
	for i, rc := range c.Rules {
		evaluator, err := clientstate.NewEvaluator(rc.Engine, clientstate.EvaluatorOptions{Cache: sharedPrograms})
		if err != nil {
			return nil, fmt.Errorf("config: rules[%d]: %w", i, err)
		}
		name := rc.Name
		if name == "" {
			name = fmt.Sprintf("rule-%d", i)
		}
		rule, err := clientstate.ExpressionRule(clientstate.ExpressionRuleConfig{
			Name:       name,
			Expression: rc.Expression,
			Reason:     rc.Reason,
			Class:      clientstate.StateClass(rc.Class),
			Evaluator:  evaluator,
			Logger:     clientstate.FailedEvaluations(diagnostics),
		})
		if err != nil {
			return nil, fmt.Errorf("config: rules[%d]: %w", i, err)
		}
		rules = append(rules, rule)
	}
	if len(rules) > 0 {
		opts = append(opts, clientstate.WithRules(rules...))
	}
	return opts, nil
}

// OpenStorage opens the configured storage adapter. The returned close func
// is never nil. Driver "none" yields a nil Storage.
func (c *Config) OpenStorage() (clientstate.Storage, func() error, error) {
	noop := func() error { return nil }
	switch c.driver() {
	case DriverNone:
		return nil, noop, nil
	case DriverMemory:
		return storage.NewMemory(), noop, nil
	case DriverFile:
		file, err := storage.NewFile(c.Storage.Path)
		if err != nil {
			return nil, noop, fmt.Errorf("config: open file storage: %w", err)
		}
		return file, noop, nil
	case DriverSQLite:
		db, err := storage.OpenSQLite(c.Storage.Path)
		if err != nil {
			return nil, noop, fmt.Errorf("config: open sqlite storage: %w", err)
		}
		return db, db.Close, nil
	default:
		return nil, noop, fmt.Errorf("config: storage.driver: unknown driver %q", c.Storage.Driver)
	}
}

func (c *Config) driver() string {
	driver := strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if driver == "" {
		return DriverNone
	}
	return driver
}
