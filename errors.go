package clientstate

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is matched by every ConfigurationError.
	ErrConfiguration = errors.New("clientstate: invalid store configuration")
	// ErrUnknownAction is returned by Dispatch for undeclared action names.
	ErrUnknownAction = errors.New("clientstate: unknown action")
)

// ConfigurationError is returned by NewStore when the store definition is
// unusable. It is the only error the store raises on its own behalf, and only
// at construction.
type ConfigurationError struct {
	Store  string
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Key != "" {
		return fmt.Sprintf("clientstate: store %q: key %q: %s", e.Store, e.Key, e.Reason)
	}
	return fmt.Sprintf("clientstate: store %q: %s", e.Store, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

func configurationError(store, key, format string, args ...any) error {
	return &ConfigurationError{Store: store, Key: key, Reason: fmt.Sprintf(format, args...)}
}
