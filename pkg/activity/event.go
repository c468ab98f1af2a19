package activity

import (
	"strings"
	"time"
)

// ObjectTypeStore is the object type sinks record for client store events.
const ObjectTypeStore = "client_store"

// Verbs emitted by client stores.
const (
	VerbStoreCreated   = "client_store.created"
	VerbActionApplied  = "client_store.action.applied"
	VerbViolation      = "client_store.violation"
	VerbStoreReset     = "client_store.reset"
	VerbPersistFailed  = "client_store.persist.failed"
	VerbHydrateDropped = "client_store.hydrate.dropped"
)

// Session identifies who is driving a store. IDs are plain strings so call
// sites are not tied to a UUID type.
type Session struct {
	ActorID  string
	UserID   string
	TenantID string
}

// merge fills blank identifiers of s from fallback.
func (s Session) merge(fallback Session) Session {
	if s.ActorID == "" {
		s.ActorID = fallback.ActorID
	}
	if s.UserID == "" {
		s.UserID = fallback.UserID
	}
	if s.TenantID == "" {
		s.TenantID = fallback.TenantID
	}
	return s
}

// Event is one occurrence in the life of a client store. Action, Key and
// Reason are set when the verb concerns a dispatched action or a single
// state key.
type Event struct {
	Session

	Verb       string
	Store      string
	Action     string
	Key        string
	Reason     string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// Valid reports whether the event names both a verb and a store.
func (e Event) Valid() bool {
	return strings.TrimSpace(e.Verb) != "" && strings.TrimSpace(e.Store) != ""
}

// Normalize returns a trimmed copy of e with its own metadata map and a
// timestamp.
func (e Event) Normalize() Event {
	out := e
	out.ActorID = strings.TrimSpace(e.ActorID)
	out.UserID = strings.TrimSpace(e.UserID)
	out.TenantID = strings.TrimSpace(e.TenantID)
	out.Verb = strings.TrimSpace(e.Verb)
	out.Store = strings.TrimSpace(e.Store)
	out.Action = strings.TrimSpace(e.Action)
	out.Key = strings.TrimSpace(e.Key)
	out.Reason = strings.TrimSpace(e.Reason)
	out.Channel = strings.TrimSpace(e.Channel)
	out.Metadata = cloneMap(e.Metadata)
	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now()
	}
	return out
}

// Payload flattens the action, key and reason into a copy of the metadata.
// It is the shape sinks store alongside the verb. Nil when there is nothing
// to record.
func (e Event) Payload() map[string]any {
	payload := cloneMap(e.Metadata)
	for field, value := range map[string]string{
		"action": e.Action,
		"key":    e.Key,
		"reason": e.Reason,
	} {
		if value = strings.TrimSpace(value); value == "" {
			continue
		}
		if payload == nil {
			payload = map[string]any{}
		}
		payload[field] = value
	}
	return payload
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
