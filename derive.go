package clientstate

import "fmt"

// QueryKey identifies an entry in the server cache, e.g.
// QueryKey{"contacts", "list", filters}.
type QueryKey []any

// QueryResult is what the server cache reports for a query. Only Data is
// read here; loading and error state belong to the UI.
type QueryResult struct {
	Data      any
	IsLoading bool
	Err       error
}

// ServerCache is the read-only port to the external server-state cache.
type ServerCache interface {
	Subscribe(key QueryKey) QueryResult
}

// DeriveSelected returns the first record of collection whose id equals
// selectedID. It reports false when nothing is selected, the collection is
// still loading (nil) or empty, or the id no longer matches a record.
// Duplicate ids resolve to the first record.
func DeriveSelected[T any](selectedID any, collection []T, idOf func(T) string) (T, bool) {
	var zero T
	id, ok := selectionID(selectedID)
	if !ok || collection == nil || idOf == nil {
		return zero, false
	}
	for _, record := range collection {
		if idOf(record) == id {
			return record, true
		}
	}
	return zero, false
}

// DeriveSelectedRecord is DeriveSelected for untyped records, matching on
// the "id" property of maps or structs.
func DeriveSelectedRecord(selectedID any, collection []map[string]any) (map[string]any, bool) {
	return DeriveSelected(selectedID, collection, RecordID[map[string]any])
}

// RecordID reads the "id" property of an object value as a string.
func RecordID[T any](record T) string {
	n := inspect(record)
	if n.kind != shapeObject {
		return ""
	}
	value, ok := n.field("id")
	if !ok {
		return ""
	}
	id, _ := selectionID(value)
	return id
}

// DeriveFromCache looks the selection up in the data the cache holds for
// key. Data may be a []T, a single T, or []any holding T values. The cache is
// only read.
func DeriveFromCache[T any](cache ServerCache, key QueryKey, selectedID any, idOf func(T) string) (T, bool) {
	var zero T
	if cache == nil {
		return zero, false
	}
	if _, ok := selectionID(selectedID); !ok {
		return zero, false
	}
	return DeriveSelected(selectedID, collectionOf[T](cache.Subscribe(key).Data), idOf)
}

// Selected joins the identifier held at key in the store with the server
// cache entry for query. Nothing is written back into the store.
func Selected[T any](s *Store, key string, cache ServerCache, query QueryKey, idOf func(T) string) (T, bool) {
	var zero T
	if s == nil {
		return zero, false
	}
	selectedID, ok := s.Get(key)
	if !ok {
		return zero, false
	}
	return DeriveFromCache(cache, query, selectedID, idOf)
}

func collectionOf[T any](data any) []T {
	switch typed := data.(type) {
	case nil:
		return nil
	case []T:
		return typed
	case T:
		return []T{typed}
	case []any:
		out := make([]T, 0, len(typed))
		for _, item := range typed {
			if record, ok := item.(T); ok {
				out = append(out, record)
			}
		}
		return out
	}
	return nil
}

// selectionID normalises a client-held identifier. Empty strings, nil and
// Undefined mean "nothing selected".
func selectionID(value any) (string, bool) {
	switch typed := value.(type) {
	case nil:
		return "", false
	case undefinedValue:
		return "", false
	case string:
		return typed, typed != ""
	case *string:
		if typed == nil || *typed == "" {
			return "", false
		}
		return *typed, true
	case fmt.Stringer:
		id := typed.String()
		return id, id != ""
	default:
		n := inspect(value)
		if n.kind != shapeScalar || n.null {
			return "", false
		}
		return fmt.Sprint(value), true
	}
}
