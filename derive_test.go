package clientstate_test

import (
	"context"
	"errors"
	"testing"

	clientstate "github.com/goliatone/go-clientstate"
	"github.com/goliatone/go-clientstate/pkg/servercache"
)

type contact struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func contactID(c contact) string { return c.ID }

var contacts = []contact{
	{ID: "c-1", Name: "Ada"},
	{ID: "c-2", Name: "Grace"},
	{ID: "c-2", Name: "Grace (duplicate)"},
}

func TestDeriveSelected(t *testing.T) {
	cases := []struct {
		name       string
		selected   any
		collection []contact
		wantName   string
		wantOK     bool
	}{
		{name: "nothing selected", selected: nil, collection: contacts},
		{name: "empty string selection", selected: "", collection: contacts},
		{name: "undefined selection", selected: clientstate.Undefined, collection: contacts},
		{name: "collection still loading", selected: "c-1", collection: nil},
		{name: "empty collection", selected: "c-1", collection: []contact{}},
		{name: "stale selection", selected: "c-9", collection: contacts},
		{name: "match", selected: "c-1", collection: contacts, wantName: "Ada", wantOK: true},
		{name: "duplicate ids resolve to the first", selected: "c-2", collection: contacts, wantName: "Grace", wantOK: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, ok := clientstate.DeriveSelected(tc.selected, tc.collection, contactID)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if got.Name != tc.wantName {
				t.Fatalf("record = %+v, want name %q", got, tc.wantName)
			}
		})
	}
}

func TestDeriveSelectedIsDeterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		got, ok := clientstate.DeriveSelected("c-2", contacts, contactID)
		if !ok || got.Name != "Grace" {
			t.Fatalf("run %d returned %+v", i, got)
		}
	}
}

func TestDeriveSelectedRecord(t *testing.T) {
	records := []map[string]any{
		{"id": "d-1", "title": "Renewal"},
		{"id": 42, "title": "Upsell"},
		{"title": "no id"},
	}
	got, ok := clientstate.DeriveSelectedRecord("d-1", records)
	if !ok || got["title"] != "Renewal" {
		t.Fatalf("expected Renewal, got %+v", got)
	}
	got, ok = clientstate.DeriveSelectedRecord(42, records)
	if !ok || got["title"] != "Upsell" {
		t.Fatalf("numeric ids should match by their string form, got %+v", got)
	}
	if _, ok := clientstate.DeriveSelectedRecord(nil, records); ok {
		t.Fatalf("nil selection must not match")
	}
}

func TestRecordIDReadsStructsAndMaps(t *testing.T) {
	if got := clientstate.RecordID(contact{ID: "c-7"}); got != "c-7" {
		t.Fatalf("struct id = %q", got)
	}
	if got := clientstate.RecordID(map[string]any{"id": "m-1"}); got != "m-1" {
		t.Fatalf("map id = %q", got)
	}
	if got := clientstate.RecordID("scalar"); got != "" {
		t.Fatalf("scalars have no id, got %q", got)
	}
}

func TestDeriveFromCache(t *testing.T) {
	cache := servercache.NewMemory()
	key := clientstate.QueryKey{"contacts", "list", map[string]any{"status": "active"}}

	if _, ok := clientstate.DeriveFromCache(cache, key, "c-1", contactID); ok {
		t.Fatalf("unknown query is still loading and must not match")
	}

	cache.Set(key, contacts)
	got, ok := clientstate.DeriveFromCache(cache, clientstate.QueryKey{"contacts", "list", map[string]any{"status": "active"}}, "c-1", contactID)
	if !ok || got.Name != "Ada" {
		t.Fatalf("expected Ada from the cache, got %+v", got)
	}

	cache.SetError(key, errors.New("timeout"))
	if _, ok := clientstate.DeriveFromCache(cache, key, "c-1", contactID); !ok {
		t.Fatalf("a failed refetch keeps the previous data")
	}

	cache.Invalidate(key)
	if _, ok := clientstate.DeriveFromCache(cache, key, "c-1", contactID); ok {
		t.Fatalf("invalidated entries must not match")
	}

	if _, ok := clientstate.DeriveFromCache[contact](nil, key, "c-1", contactID); ok {
		t.Fatalf("nil cache must not match")
	}
}

func TestDeriveFromCacheAcceptsLooseData(t *testing.T) {
	cache := servercache.NewMemory()
	single := clientstate.QueryKey{"contact", "c-3"}
	cache.Set(single, contact{ID: "c-3", Name: "Katherine"})
	if got, ok := clientstate.DeriveFromCache(cache, single, "c-3", contactID); !ok || got.Name != "Katherine" {
		t.Fatalf("single record data should be matched, got %+v", got)
	}

	loose := clientstate.QueryKey{"contacts", "loose"}
	cache.Set(loose, []any{contact{ID: "c-4", Name: "Dorothy"}, "junk"})
	if got, ok := clientstate.DeriveFromCache(cache, loose, "c-4", contactID); !ok || got.Name != "Dorothy" {
		t.Fatalf("[]any data should be matched, got %+v", got)
	}
}

func TestSelectedJoinsStoreAndCache(t *testing.T) {
	ctx := context.Background()
	store, err := clientstate.NewStore(ctx, clientstate.StoreConfig{
		Name:         "contacts-view",
		InitialState: clientstate.ClientState{"selectedContactId": nil},
		Actions: map[string]clientstate.ActionFunc{
			"select": func(_ clientstate.ClientState, args ...any) (clientstate.ClientState, error) {
				return clientstate.ClientState{"selectedContactId": args[0]}, nil
			},
		},
	}, clientstate.WithMode(clientstate.ModeProduction))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	cache := servercache.NewMemory()
	query := clientstate.QueryKey{"contacts"}
	cache.Set(query, contacts)

	if _, ok := clientstate.Selected(store, "selectedContactId", cache, query, contactID); ok {
		t.Fatalf("nothing is selected yet")
	}
	if err := store.Dispatch(ctx, "select", "c-2"); err != nil {
		t.Fatalf("select: %v", err)
	}
	got, ok := clientstate.Selected(store, "selectedContactId", cache, query, contactID)
	if !ok || got.Name != "Grace" {
		t.Fatalf("expected Grace, got %+v", got)
	}
	if _, ok := store.Get("selectedContact"); ok {
		t.Fatalf("derivation must not write the record into the store")
	}
	if _, ok := clientstate.Selected(store, "missingKey", cache, query, contactID); ok {
		t.Fatalf("unknown store keys must not match")
	}
}
