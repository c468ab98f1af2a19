package clientstate

import "github.com/goliatone/go-clientstate/pkg/activity"

// WithActivityHooks attaches activity hooks to stores. Hooks are cloned and
// nil entries dropped. Emission is enabled unless WithActivityConfig turns
// it off.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := hooks.Clone()
	return func(cfg *config) {
		cfg.activityHooks = normalized
		if !cfg.activityConfigSet {
			cfg.activityConfig.Enabled = len(normalized) > 0
		}
	}
}

// WithActivityConfig overrides emission defaults (enabled flag, channel).
func WithActivityConfig(activityCfg activity.Config) Option {
	return func(cfg *config) {
		cfg.activityConfig = activityCfg
		cfg.activityConfigSet = true
	}
}

// WithActivitySession stamps actor, user and tenant identifiers on every
// event a store emits.
func WithActivitySession(session activity.Session) Option {
	return func(cfg *config) {
		cfg.activitySession = session
	}
}

func (cfg config) activityEmitter() *activity.Emitter {
	return activity.NewEmitter(cfg.activityHooks, cfg.activityConfig).WithSession(cfg.activitySession)
}
