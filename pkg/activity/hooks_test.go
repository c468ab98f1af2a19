package activity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEventNormalizeTrimsAndClones(t *testing.T) {
	meta := map[string]any{"mode": "development"}
	evt := Event{
		Session:  Session{ActorID: " actor ", UserID: " user ", TenantID: " tenant "},
		Verb:     " client_store.created ",
		Store:    " contacts ",
		Key:      " selectedContact ",
		Channel:  " clientstate ",
		Metadata: meta,
	}

	got := evt.Normalize()

	if got.Verb != VerbStoreCreated || got.Store != "contacts" || got.Key != "selectedContact" {
		t.Fatalf("unexpected normalized fields: %+v", got)
	}
	if got.ActorID != "actor" || got.UserID != "user" || got.TenantID != "tenant" || got.Channel != "clientstate" {
		t.Fatalf("unexpected trimming: %+v", got)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be set")
	}
	got.Metadata["mode"] = "changed"
	if meta["mode"] != "development" {
		t.Fatalf("expected original metadata untouched: %+v", meta)
	}
}

func TestEventPayload(t *testing.T) {
	event := Event{
		Verb:     VerbViolation,
		Store:    "contacts",
		Action:   "selectContactObject",
		Key:      "selectedContact",
		Reason:   "database-row",
		Metadata: map[string]any{"mode": "development"},
	}
	payload := event.Payload()
	want := map[string]any{
		"mode":   "development",
		"action": "selectContactObject",
		"key":    "selectedContact",
		"reason": "database-row",
	}
	if len(payload) != len(want) {
		t.Fatalf("payload = %v, want %v", payload, want)
	}
	for key, value := range want {
		if payload[key] != value {
			t.Fatalf("expected payload %s=%v, got %v", key, value, payload[key])
		}
	}
	payload["mode"] = "changed"
	if event.Metadata["mode"] != "development" {
		t.Fatalf("payload must not alias metadata")
	}

	if bare := (Event{Verb: VerbStoreCreated, Store: "contacts"}).Payload(); bare != nil {
		t.Fatalf("expected nil payload, got %+v", bare)
	}
}

func TestHooksNotifyDropsInvalidEvents(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}
	for _, event := range []Event{{Verb: VerbStoreCreated}, {Store: "contacts"}, {Verb: " ", Store: "contacts"}} {
		if err := hooks.Notify(context.Background(), event); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	}
	if len(capture.Events) != 0 {
		t.Fatalf("expected no events captured, got %d", len(capture.Events))
	}
}

func TestHooksNotifyFanOutAndJoinErrors(t *testing.T) {
	capture := &CaptureHook{}
	boom1 := errors.New("boom1")
	boom2 := errors.New("boom2")
	var ctxSeen bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, event Event) error {
			ctxSeen = ctx != nil
			return nil
		}),
		capture,
		HookFunc(func(context.Context, Event) error { return boom1 }),
		nil,
		HookFunc(func(context.Context, Event) error { return boom2 }),
	}

	err := hooks.Notify(nil, Event{Verb: VerbActionApplied, Store: "contacts"})
	if !errors.Is(err, boom1) || !errors.Is(err, boom2) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !ctxSeen {
		t.Fatalf("expected context fallback to be non-nil")
	}
	if len(capture.Events) != 1 {
		t.Fatalf("expected event to be captured once, got %d", len(capture.Events))
	}
}

func TestHooksCloneDropsNil(t *testing.T) {
	if got := (Hooks{nil, nil}).Clone(); got != nil {
		t.Fatalf("expected nil hooks, got %+v", got)
	}
	hook := HookFunc(func(context.Context, Event) error { return nil })
	original := Hooks{nil, hook}
	clone := original.Clone()
	if len(clone) != 1 {
		t.Fatalf("expected 1 hook, got %d", len(clone))
	}
	clone[0] = nil
	if original[1] == nil {
		t.Fatalf("clone must not share backing array")
	}
}

func TestEmitterDisabledAndEnabled(t *testing.T) {
	capture := &CaptureHook{}
	event := Event{Verb: VerbStoreCreated, Store: "contacts"}

	disabled := NewEmitter(Hooks{capture}, Config{Enabled: false})
	if disabled.Enabled() {
		t.Fatalf("expected emitter to be disabled")
	}
	if err := disabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events) != 0 {
		t.Fatalf("expected no events captured when disabled")
	}
	if NewEmitter(Hooks{nil}, Config{Enabled: true}).Enabled() {
		t.Fatalf("an emitter without hooks has nothing to do")
	}

	enabled := NewEmitter(Hooks{capture}, Config{Enabled: true})
	if err := enabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("emit: %v", err)
	}
	got, ok := capture.Last(VerbStoreCreated)
	if !ok || got.Channel != DefaultChannel {
		t.Fatalf("expected default channel applied, got %+v", got)
	}
}

func TestEmitterStampsSession(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, Channel: "crm"}).
		WithSession(Session{ActorID: "actor-1", UserID: "user-default", TenantID: "tenant-1"})

	occurred := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	err := emitter.Emit(context.Background(), Event{
		Session:    Session{UserID: "user-explicit"},
		Verb:       VerbStoreReset,
		Store:      "contacts",
		Channel:    "custom",
		OccurredAt: occurred,
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	got := capture.Events[0]
	if got.ActorID != "actor-1" || got.TenantID != "tenant-1" {
		t.Fatalf("expected session identifiers, got %+v", got)
	}
	if got.UserID != "user-explicit" {
		t.Fatalf("expected explicit user preserved, got %q", got.UserID)
	}
	if got.Channel != "custom" {
		t.Fatalf("expected explicit channel preserved, got %q", got.Channel)
	}
	if !got.OccurredAt.Equal(occurred) {
		t.Fatalf("expected occurred_at preserved, got %v", got.OccurredAt)
	}
	if _, ok := capture.Last(VerbViolation); ok {
		t.Fatalf("no violation was emitted")
	}
}
