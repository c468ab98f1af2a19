package activity

import (
	"context"
	"strings"
)

// DefaultChannel is applied to events emitted without a channel.
const DefaultChannel = "clientstate"

// Config controls whether a store emits activity and on which channel.
type Config struct {
	Enabled bool
	Channel string
}

// Emitter stamps a store's defaults on events and forwards them to hooks.
type Emitter struct {
	hooks   Hooks
	enabled bool
	channel string
	session Session
}

// NewEmitter constructs an emitter. It is disabled when cfg says so or when
// no usable hook is left.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	hooks = hooks.Clone()
	return &Emitter{
		hooks:   hooks,
		enabled: cfg.Enabled && hooks.Enabled(),
		channel: channel,
	}
}

// WithSession returns a copy of the emitter that fills blank session
// identifiers from session.
func (e *Emitter) WithSession(session Session) *Emitter {
	if e == nil {
		return nil
	}
	clone := *e
	clone.session = session
	return &clone
}

// Enabled reports whether emissions should be attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Emit applies the default channel and session, then notifies the hooks.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	event.Session = event.Session.merge(e.session)
	return e.hooks.Notify(ctx, event)
}
