package clientstate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-clientstate/internal/hydrate"
	"github.com/goliatone/go-clientstate/layering"
	"github.com/goliatone/go-clientstate/pkg/activity"
)

// StorageKey returns the durable storage key of the store,
// "<namespace>/<name>".
func (s *Store) StorageKey() string {
	return s.storageKey
}

// hydrate reads the persisted payload and keeps only allow-listed keys whose
// JSON type still matches the initial value, decoded back into the initial
// value's Go type. Everything else in the payload is ignored so stale
// schemas never leak into the store.
func (s *Store) hydrate(ctx context.Context) map[string]any {
	if s.storage == nil || len(s.persistKeys) == 0 {
		return nil
	}
	raw, ok, err := s.storage.Get(ctx, s.storageKey)
	if err != nil {
		s.diagnose("hydrate", Diagnostic{
			Kind:    DiagnosticHydrateFailed,
			Context: s.name,
			Message: fmt.Sprintf("[%s] could not read persisted state; using initial state", s.name),
			Err:     err,
		})
		return nil
	}
	if !ok || len(raw) == 0 {
		return nil
	}

	dropped := func(key, why string, cause error) {
		s.diagnose("hydrate", Diagnostic{
			Kind:    DiagnosticHydrateDropped,
			Context: s.name,
			Key:     key,
			Message: fmt.Sprintf("[%s] ignored persisted key '%s': %s", s.name, key, why),
			Err:     cause,
		})
		s.emit(ctx, activity.Event{Verb: activity.VerbHydrateDropped, Key: key, Reason: why})
	}
	decoder := hydrate.NewDecoder[map[string]any](
		hydrate.WithPreHook[map[string]any](hydrate.AllowKeys(s.persistKeys, func(key string) {
			dropped(key, "not in the persist allow-list", nil)
		})),
		hydrate.WithPreHook[map[string]any](s.schemas.Hook(func(key string, err error) {
			dropped(key, "type no longer matches the initial value", err)
		})),
	)
	payload, err := decoder.Unmarshal(hydrate.Context{Store: s.name, Key: s.storageKey}, raw)
	if err != nil {
		s.diagnose("hydrate", Diagnostic{
			Kind:    DiagnosticHydrateFailed,
			Context: s.name,
			Message: fmt.Sprintf("[%s] persisted state is unreadable; using initial state", s.name),
			Err:     err,
		})
		return nil
	}
	return payload
}

// persist writes the allow-listed subset of state. Failures are reported as
// diagnostics and never undo the in-memory update.
func (s *Store) persist(ctx context.Context, state ClientState, action string) {
	if s.storage == nil || len(s.persistKeys) == 0 {
		return
	}
	raw, err := json.Marshal(layering.Pick(state, s.persistKeys))
	if err == nil {
		err = s.storage.Set(ctx, s.storageKey, raw)
	}
	if err == nil {
		return
	}
	s.diagnose(action, Diagnostic{
		Kind:    DiagnosticPersistFailed,
		Context: s.name,
		Message: fmt.Sprintf("[%s] could not persist state; in-memory state kept", s.name),
		Err:     err,
	})
	s.emit(ctx, activity.Event{Verb: activity.VerbPersistFailed, Action: action})
}
