package clientstate

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Function represents a helper callable from rule expressions.
type Function func(args ...any) (any, error)

// FunctionRegistry stores rule helpers keyed by lower-cased name.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions: make(map[string]Function),
	}
}

// DefaultFunctions returns a registry preloaded with the helpers most shape
// rules need:
//
//	hasany(fields, "created_at", "inserted_at")  any key present
//	hasall(fields, "id", "tenant_id")            every key present
//	isuuid(value)                                 value parses as a UUID
func DefaultFunctions() *FunctionRegistry {
	registry := NewFunctionRegistry()
	_ = registry.Register("hasany", hasKeysFunction(false))
	_ = registry.Register("hasall", hasKeysFunction(true))
	_ = registry.Register("isuuid", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("isuuid expects 1 argument, got %d", len(args))
		}
		s, ok := args[0].(string)
		if !ok {
			return false, nil
		}
		_, err := uuid.Parse(s)
		return err == nil, nil
	})
	return registry
}

func hasKeysFunction(all bool) Function {
	return func(args ...any) (any, error) {
		if len(args) < 2 {
			return nil, fmt.Errorf("expected an object and at least one key")
		}
		n := inspect(args[0])
		if n.kind != shapeObject {
			return false, nil
		}
		for _, arg := range flattenArgs(args[1:]) {
			key, ok := arg.(string)
			if !ok {
				return nil, fmt.Errorf("key must be a string, got %T", arg)
			}
			present := n.has(key)
			if all && !present {
				return false, nil
			}
			if !all && present {
				return true, nil
			}
		}
		return all, nil
	}
}

// flattenArgs expands a single list argument so helpers accept both
// hasany(fields, "a", "b") and hasany(fields, ["a", "b"]).
func flattenArgs(args []any) []any {
	if len(args) != 1 {
		return args
	}
	if list, ok := args[0].([]any); ok {
		return list
	}
	return args
}

// Register stores fn under name guarding against duplicates.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("clientstate: function %q is nil", name)
	}
	if name == "" {
		return fmt.Errorf("clientstate: function name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	key := strings.ToLower(name)
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("clientstate: function %q already registered", name)
	}
	r.functions[key] = fn
	return nil
}

// Clone returns a shallow copy of the registry.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{
		functions: make(map[string]Function, len(r.functions)),
	}
	for name, fn := range r.functions {
		clone.functions[name] = fn
	}
	return clone
}

// Call executes the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("clientstate: function registry is nil")
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("clientstate: function %q not registered", name)
	}
	return fn(args...)
}

// Names returns registered function names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *FunctionRegistry) bound(name string) func(...any) (any, error) {
	return func(arguments ...any) (any, error) {
		return r.Call(name, arguments...)
	}
}
