package servercache

import (
	"errors"
	"testing"

	clientstate "github.com/goliatone/go-clientstate"
	"github.com/stretchr/testify/require"
)

func TestMemoryUnknownKeyIsLoading(t *testing.T) {
	cache := NewMemory()
	result := cache.Subscribe(clientstate.QueryKey{"contacts"})
	require.True(t, result.IsLoading)
	require.Nil(t, result.Data)
}

func TestMemoryCanonicalKeys(t *testing.T) {
	cache := NewMemory()
	cache.Set(clientstate.QueryKey{"contacts", map[string]any{"status": "open", "owner": "me"}}, []string{"a"})

	result := cache.Subscribe(clientstate.QueryKey{"contacts", map[string]any{"owner": "me", "status": "open"}})
	require.False(t, result.IsLoading)
	require.Equal(t, []string{"a"}, result.Data)
}

func TestMemoryLoadingAndErrorKeepData(t *testing.T) {
	cache := NewMemory()
	key := clientstate.QueryKey{"contacts"}
	cache.Set(key, []string{"a"})

	cache.SetLoading(key)
	result := cache.Subscribe(key)
	require.True(t, result.IsLoading)
	require.Equal(t, []string{"a"}, result.Data)

	boom := errors.New("offline")
	cache.SetError(key, boom)
	result = cache.Subscribe(key)
	require.False(t, result.IsLoading)
	require.ErrorIs(t, result.Err, boom)
	require.Equal(t, []string{"a"}, result.Data)

	cache.Invalidate(key)
	require.True(t, cache.Subscribe(key).IsLoading)
}
