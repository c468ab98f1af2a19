package usersink_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-clientstate/pkg/activity"
	"github.com/goliatone/go-clientstate/pkg/activity/usersink"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookNotifyMapsViolation(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	session := activity.Session{
		ActorID:  uuid.NewString(),
		UserID:   uuid.NewString(),
		TenantID: uuid.NewString(),
	}
	event := activity.Event{
		Session:    session,
		Verb:       activity.VerbViolation,
		Store:      "contacts",
		Action:     "selectContactObject",
		Key:        "selectedContact",
		Reason:     "database-row",
		Channel:    "crm",
		OccurredAt: now,
	}
	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ActorID.String() != session.ActorID || record.UserID.String() != session.UserID || record.TenantID.String() != session.TenantID {
		t.Fatalf("unexpected identifiers: %+v", record)
	}
	if record.Verb != activity.VerbViolation || record.ObjectType != activity.ObjectTypeStore || record.ObjectID != "contacts" {
		t.Fatalf("unexpected record payload: %+v", record)
	}
	if record.Channel != "crm" || !record.OccurredAt.Equal(now) {
		t.Fatalf("unexpected channel or time: %+v", record)
	}
	if record.Data["key"] != "selectedContact" || record.Data["action"] != "selectContactObject" || record.Data["reason"] != "database-row" {
		t.Fatalf("expected the event payload as data, got %v", record.Data)
	}
	if _, ok := record.Data["actor_ref"]; ok {
		t.Fatalf("uuid identifiers must not be duplicated into data: %v", record.Data)
	}
}

func TestRecordKeepsNonUUIDSessionRefs(t *testing.T) {
	record := usersink.Record(activity.Event{
		Session: activity.Session{ActorID: "rep-42", TenantID: "acme"},
		Verb:    activity.VerbStoreCreated,
		Store:   "contacts",
	})
	if record.ActorID != uuid.Nil || record.TenantID != uuid.Nil {
		t.Fatalf("expected nil uuids, got %s/%s", record.ActorID, record.TenantID)
	}
	if record.Data["actor_ref"] != "rep-42" || record.Data["tenant_ref"] != "acme" {
		t.Fatalf("expected refs in data, got %v", record.Data)
	}
	if _, ok := record.Data["user_ref"]; ok {
		t.Fatalf("blank identifiers are not recorded: %v", record.Data)
	}
	if record.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be defaulted")
	}
}

func TestHookNotifySkipsInvalidEvents(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	_ = hook.Notify(context.Background(), activity.Event{})
	_ = hook.Notify(context.Background(), activity.Event{Verb: activity.VerbStoreReset})

	if len(sink.records) != 0 {
		t.Fatalf("expected no records for incomplete events, got %d", len(sink.records))
	}
	if err := (usersink.Hook{}).Notify(context.Background(), activity.Event{Verb: activity.VerbStoreReset, Store: "x"}); err != nil {
		t.Fatalf("a hook without a sink is a no-op, got %v", err)
	}
}

func TestHookNotifyPropagatesSinkError(t *testing.T) {
	boom := errors.New("sink down")
	sink := &recordingSink{err: boom}
	hook := usersink.Hook{Sink: sink}

	err := hook.Notify(context.Background(), activity.Event{Verb: activity.VerbStoreReset, Store: "contacts"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
}
