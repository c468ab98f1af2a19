package clientstate

import (
	"context"
	"testing"

	"github.com/goliatone/go-clientstate/pkg/activity"
)

func TestWithActivityHooksClonesAndFiltersNil(t *testing.T) {
	hook := activity.HookFunc(func(context.Context, activity.Event) error { return nil })
	hooks := activity.Hooks{nil, hook}

	cfg := applyOptions([]Option{WithActivityHooks(hooks)})
	if len(cfg.activityHooks) != 1 {
		t.Fatalf("expected 1 hook, got %d", len(cfg.activityHooks))
	}
	if !cfg.activityConfig.Enabled {
		t.Fatalf("hooks should enable emission by default")
	}

	// Mutating the caller's slice must not reach the configuration.
	hooks[1] = nil
	if cfg.activityHooks[0] == nil {
		t.Fatalf("expected cloned hooks unaffected by mutation")
	}
}

func TestActivityDisabledByDefault(t *testing.T) {
	cfg := applyOptions(nil)
	if cfg.activityHooks != nil || cfg.activityEmitter().Enabled() {
		t.Fatalf("expected no activity by default")
	}
}

func TestActivityConfigWinsOverHooks(t *testing.T) {
	hook := activity.HookFunc(func(context.Context, activity.Event) error { return nil })

	for name, opts := range map[string][]Option{
		"config first": {WithActivityConfig(activity.Config{Enabled: false}), WithActivityHooks(activity.Hooks{hook})},
		"config last":  {WithActivityHooks(activity.Hooks{hook}), WithActivityConfig(activity.Config{Enabled: false})},
	} {
		cfg := applyOptions(opts)
		if cfg.activityEmitter().Enabled() {
			t.Fatalf("%s: explicit config should disable emission", name)
		}
	}
}

func TestActivitySessionAndChannel(t *testing.T) {
	hook := &activity.CaptureHook{}
	cfg := applyOptions([]Option{
		WithActivityHooks(activity.Hooks{hook}),
		WithActivityConfig(activity.Config{Enabled: true, Channel: "crm-ui"}),
		WithActivitySession(activity.Session{UserID: "u-1"}),
	})
	event := activity.Event{Verb: activity.VerbStoreCreated, Store: "prefs"}
	if err := cfg.activityEmitter().Emit(context.Background(), event); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(hook.Events) != 1 {
		t.Fatalf("expected one event, got %d", len(hook.Events))
	}
	got := hook.Events[0]
	if got.Channel != "crm-ui" || got.UserID != "u-1" {
		t.Fatalf("expected channel and session defaults, got %+v", got)
	}
}
