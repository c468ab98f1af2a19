// Package usersink forwards client store activity into a go-users activity
// feed.
package usersink

import (
	"context"
	"strings"

	"github.com/goliatone/go-clientstate/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook adapts client store events to a go-users ActivitySink, so violations
// and store lifecycle show up in the same feed as user activity.
type Hook struct {
	Sink usertypes.ActivitySink
}

// Notify converts the event with Record and logs it to the sink.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil || !event.Valid() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, Record(event))
}

// Record maps a store event to an activity record: the store becomes the
// object and the event payload the record data. go-users keys sessions by
// UUID, so session identifiers that are not UUIDs are kept in the data as
// actor_ref, user_ref and tenant_ref.
func Record(event activity.Event) usertypes.ActivityRecord {
	event = event.Normalize()
	record := usertypes.ActivityRecord{
		ActorID:    parseUUID(event.ActorID),
		UserID:     parseUUID(event.UserID),
		TenantID:   parseUUID(event.TenantID),
		Verb:       event.Verb,
		ObjectType: activity.ObjectTypeStore,
		ObjectID:   event.Store,
		Channel:    event.Channel,
		Data:       event.Payload(),
		OccurredAt: event.OccurredAt,
	}
	refs := []struct{ field, raw string }{
		{"actor_ref", event.ActorID},
		{"user_ref", event.UserID},
		{"tenant_ref", event.TenantID},
	}
	for _, ref := range refs {
		if ref.raw == "" || parseUUID(ref.raw) != uuid.Nil {
			continue
		}
		if record.Data == nil {
			record.Data = map[string]any{}
		}
		record.Data[ref.field] = ref.raw
	}
	return record
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}
