package clientstate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-clientstate/internal/hydrate"
	"github.com/goliatone/go-clientstate/layering"
	"github.com/goliatone/go-clientstate/pkg/activity"
)

// ActionFunc computes a partial update from a private copy of the current
// state. The returned keys are merged over the state; an error leaves the
// state untouched and is returned to the caller unchanged.
type ActionFunc func(state ClientState, args ...any) (ClientState, error)

// Listener observes state transitions. Both snapshots are private copies.
type Listener func(next, prev ClientState)

// StoreStatus is Clean until any validation reports a violation, Dirty after.
type StoreStatus string

const (
	StatusClean StoreStatus = "clean"
	StatusDirty StoreStatus = "dirty"
)

// ResetAction is the reserved name of the reset transition.
const ResetAction = "reset"

const maxStoredDiagnostics = 256

// StoreConfig declares a client store.
type StoreConfig struct {
	Name         string
	InitialState ClientState
	Actions      map[string]ActionFunc
	// PersistKeys lists the keys written to durable storage. Each must exist
	// in InitialState.
	PersistKeys []string
}

// Store is a client state container with declared actions, validation around
// every action in development mode, and an allow-listed persistence subset.
// One instance is created per logical store and passed explicitly.
type Store struct {
	name        string
	mode        Mode
	validator   *Validator
	logger      DiagnosticLogger
	emitter     *activity.Emitter
	storage     Storage
	storageKey  string
	initial     ClientState
	persistKeys []string
	schemas     *hydrate.KeySchemas
	actions     map[string]ActionFunc

	writeMu sync.Mutex

	mu          sync.RWMutex
	state       ClientState
	status      StoreStatus
	seen        map[string]struct{}
	baseline    []string
	violations  []ValidationViolation
	diagnostics []Diagnostic

	listenersMu  sync.RWMutex
	listeners    map[int]Listener
	nextListener int
}

// NewStore validates the definition, checks the initial state, hydrates the
// allow-listed keys from storage and returns the store. The only error it
// returns is a *ConfigurationError.
func NewStore(ctx context.Context, def StoreConfig, opts ...Option) (*Store, error) {
	cfg := applyOptions(opts)
	if ctx == nil {
		ctx = context.Background()
	}

	name := strings.TrimSpace(def.Name)
	if name == "" {
		return nil, configurationError(def.Name, "", "store name must not be empty")
	}
	if def.InitialState == nil {
		return nil, configurationError(name, "", "initial state must not be nil")
	}
	actions := make(map[string]ActionFunc, len(def.Actions))
	for action, fn := range def.Actions {
		switch {
		case strings.TrimSpace(action) == "":
			return nil, configurationError(name, "", "action name must not be empty")
		case action == ResetAction:
			return nil, configurationError(name, "", "action name %q is reserved", ResetAction)
		case fn == nil:
			return nil, configurationError(name, "", "action %q has no implementation", action)
		}
		actions[action] = fn
	}
	persistKeys, err := checkPersistKeys(name, def.InitialState, def.PersistKeys)
	if err != nil {
		return nil, err
	}

	initial := layering.Clone(def.InitialState)
	var schemas *hydrate.KeySchemas
	if len(persistKeys) > 0 {
		schemas, err = hydrate.CompileKeySchemas(initial, persistKeys)
		if err != nil {
			return nil, configurationError(name, "", "persisted keys must hold JSON encodable values: %v", err)
		}
	}

	s := &Store{
		name:        name,
		mode:        cfg.mode,
		validator:   newValidator(cfg),
		logger:      cfg.diagnosticLogger(),
		emitter:     cfg.activityEmitter(),
		storage:     cfg.storage,
		storageKey:  cfg.namespace + "/" + name,
		initial:     initial,
		persistKeys: persistKeys,
		schemas:     schemas,
		actions:     actions,
		status:      StatusClean,
		seen:        map[string]struct{}{},
		listeners:   map[int]Listener{},
	}

	report := s.validator.inspect(initial, name)
	s.baseline = violationIdentities(report.Violations)
	s.recordState(ctx, report, "")

	state := layering.Clone(initial)
	if stored := s.hydrate(ctx); len(stored) > 0 {
		state = ClientState(layering.Overlay(stored, state))
		s.recordState(ctx, s.validator.inspect(state, name), "hydrate")
	}
	s.state = state

	s.emit(ctx, activity.Event{
		Verb:     activity.VerbStoreCreated,
		Metadata: map[string]any{"mode": cfg.mode.String()},
	})
	return s, nil
}

func checkPersistKeys(name string, initial ClientState, keys []string) ([]string, error) {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := initial[key]; !ok {
			return nil, configurationError(name, key, "persist key is not declared in the initial state")
		}
		if _, dup := seen[key]; dup {
			return nil, configurationError(name, key, "persist key is listed more than once")
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out, nil
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.name
}

// State returns a copy of the current state.
func (s *Store) State() ClientState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return layering.Clone(s.state)
}

// Get returns a copy of the value at key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.state[key]
	if !ok {
		return nil, false
	}
	return layering.Clone(value), true
}

// InitialState returns a copy of the state the store was declared with.
func (s *Store) InitialState() ClientState {
	return layering.Clone(s.initial)
}

// Status reports whether any validation has found violations so far.
func (s *Store) Status() StoreStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Violations returns every violation reported during the store's life, in
// detection order, each tagged with the action that introduced it. A
// violation that was resolved and later reintroduced appears once per
// introduction.
func (s *Store) Violations() []ValidationViolation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ValidationViolation(nil), s.violations...)
}

// Diagnostics returns the most recent non-violation reports.
func (s *Store) Diagnostics() []Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Diagnostic(nil), s.diagnostics...)
}

// Actions returns the declared action names in sorted order.
func (s *Store) Actions() []string {
	names := make([]string, 0, len(s.actions))
	for name := range s.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Action returns a bound dispatcher for name.
func (s *Store) Action(name string) func(ctx context.Context, args ...any) error {
	return func(ctx context.Context, args ...any) error {
		return s.Dispatch(ctx, name, args...)
	}
}

// Dispatch runs the named action. In development mode the returned patch is
// validated before it is applied and the full state after; only violations
// not seen before are reported, tagged with the action name. Persistence and
// listener notification follow, in that order.
func (s *Store) Dispatch(ctx context.Context, name string, args ...any) error {
	fn, ok := s.actions[name]
	if !ok {
		return fmt.Errorf("%w: %q on store %q", ErrUnknownAction, name, s.name)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	next, prev, err := s.apply(ctx, name, fn, args)
	if err != nil {
		return err
	}
	s.notify(next, prev)
	return nil
}

// apply runs fn and commits its patch while holding writeMu. The lock is
// released on return even when fn panics.
func (s *Store) apply(ctx context.Context, name string, fn ActionFunc, args []any) (next, prev ClientState, err error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prev = s.State()
	patch, err := fn(layering.Clone(prev), args...)
	if err != nil {
		return nil, nil, err
	}
	if s.mode == ModeDevelopment {
		s.record(ctx, s.validator.inspect(patch, s.name), name)
	}
	next = ClientState(layering.Overlay(patch, prev))
	s.mu.Lock()
	s.state = layering.Clone(next)
	s.mu.Unlock()
	if s.mode == ModeDevelopment {
		s.recordState(ctx, s.validator.inspect(next, s.name), name)
	}
	s.persist(ctx, next, name)
	s.emit(ctx, activity.Event{
		Verb:     activity.VerbActionApplied,
		Action:   name,
		Metadata: map[string]any{"keys": patchKeys(patch)},
	})
	return next, prev, nil
}

// Reset restores a copy of the initial state and validates it. Violations
// that differ from the ones found at construction mean something mutated the
// initial state and are reported as a reset-regression diagnostic.
func (s *Store) Reset(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	next, prev := s.reset(ctx)
	s.notify(next, prev)
}

func (s *Store) reset(ctx context.Context) (next, prev ClientState) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prev = s.State()
	next = layering.Clone(s.initial)
	s.mu.Lock()
	s.state = layering.Clone(next)
	s.mu.Unlock()

	report := s.validator.inspect(next, s.name)
	if got := violationIdentities(report.Violations); !equalStrings(got, s.baseline) {
		report.Diagnostics = append(report.Diagnostics, Diagnostic{
			Kind:    DiagnosticResetRegression,
			Context: s.name,
			Message: fmt.Sprintf("[%s] reset state validates differently than at construction (%d violations, expected %d)", s.name, len(got), len(s.baseline)),
		})
	}
	s.recordState(ctx, report, ResetAction)
	s.persist(ctx, next, ResetAction)
	s.emit(ctx, activity.Event{Verb: activity.VerbStoreReset, Action: ResetAction})
	return next, prev
}

// Subscribe registers fn for state transitions and returns a function that
// removes it. Listeners run synchronously after validation and persistence.
func (s *Store) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	s.listenersMu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
		})
	}
}

func (s *Store) notify(next, prev ClientState) {
	s.listenersMu.RLock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	listeners := make([]Listener, 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		listeners = append(listeners, s.listeners[id])
	}
	s.listenersMu.RUnlock()

	for _, listener := range listeners {
		listener(layering.Clone(next), layering.Clone(prev))
	}
}

// recordState records a validation of the whole state. Violations it no
// longer finds are forgotten, so one that comes back is reported again and
// tagged with the action that reintroduced it.
func (s *Store) recordState(ctx context.Context, report Report, action string) {
	current := make(map[string]struct{}, len(report.Violations))
	for _, violation := range report.Violations {
		current[violation.identity()] = struct{}{}
	}
	s.mu.Lock()
	for id := range s.seen {
		if _, ok := current[id]; !ok {
			delete(s.seen, id)
		}
	}
	s.mu.Unlock()
	s.record(ctx, report, action)
}

// record keeps violations not reported before, logs them with action and
// flips the store to Dirty.
func (s *Store) record(ctx context.Context, report Report, action string) {
	var fresh []ValidationViolation
	s.mu.Lock()
	for _, violation := range report.Violations {
		id := violation.identity()
		if _, ok := s.seen[id]; ok {
			continue
		}
		s.seen[id] = struct{}{}
		violation.Action = action
		s.violations = append(s.violations, violation)
		fresh = append(fresh, violation)
	}
	if len(fresh) > 0 {
		s.status = StatusDirty
	}
	for _, diagnostic := range report.Diagnostics {
		s.appendDiagnosticLocked(diagnostic)
	}
	s.mu.Unlock()

	for _, violation := range fresh {
		logViolation(s.logger, s.name, action, violation)
		s.emit(ctx, activity.Event{
			Verb:   activity.VerbViolation,
			Action: action,
			Key:    violation.Key,
			Reason: violation.Reason,
		})
	}
	for _, diagnostic := range report.Diagnostics {
		logDiagnostic(s.logger, s.name, action, diagnostic)
	}
}

func (s *Store) diagnose(action string, diagnostic Diagnostic) {
	s.mu.Lock()
	s.appendDiagnosticLocked(diagnostic)
	s.mu.Unlock()
	logDiagnostic(s.logger, s.name, action, diagnostic)
}

func (s *Store) appendDiagnosticLocked(diagnostic Diagnostic) {
	s.diagnostics = append(s.diagnostics, diagnostic)
	if over := len(s.diagnostics) - maxStoredDiagnostics; over > 0 {
		s.diagnostics = append([]Diagnostic(nil), s.diagnostics[over:]...)
	}
}

func (s *Store) emit(ctx context.Context, event activity.Event) {
	if !s.emitter.Enabled() {
		return
	}
	event.Store = s.name
	// Activity is best effort; hook failures never affect the store.
	_ = s.emitter.Emit(ctx, event)
}

func violationIdentities(violations []ValidationViolation) []string {
	ids := make([]string, 0, len(violations))
	for _, violation := range violations {
		ids = append(ids, violation.identity())
	}
	sort.Strings(ids)
	return ids
}

func patchKeys(patch ClientState) []string {
	keys := make([]string, 0, len(patch))
	for key := range patch {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
