package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	clientstate "github.com/goliatone/go-clientstate"
	"github.com/goliatone/go-clientstate/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "development", cfg.Mode)
	assert.Equal(t, clientstate.DefaultMaxDepth, cfg.MaxDepth)
	assert.Equal(t, DriverNone, cfg.Storage.Driver)
	require.NoError(t, cfg.Validate())
}

func TestLoadTOML(t *testing.T) {
	cfg, err := NewLoader(filepath.Join("testdata", "clientstate.toml")).Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Mode)
	assert.Equal(t, 4, cfg.MaxDepth)
	assert.Equal(t, "crm", cfg.Namespace)
	assert.Equal(t, []string{"ownerRef"}, cfg.IdentifierKeys)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	require.NotNil(t, cfg.Activity.Enabled)
	assert.False(t, *cfg.Activity.Enabled)
	require.Len(t, cfg.Rules, 2)
	assert.Equal(t, "cel", cfg.Rules[1].Engine)
	assert.Equal(t, "ClientOnly", cfg.Rules[1].Class)
}

func TestLoadYAMLAndJSON(t *testing.T) {
	yamlCfg, err := NewLoader(filepath.Join("testdata", "clientstate.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, 5, yamlCfg.MaxDepth)
	assert.Equal(t, []string{"Id", "Ref"}, yamlCfg.IdentifierSuffixes)
	assert.Equal(t, []string{"created_at", "modified_at"}, yamlCfg.TimestampKeys)
	assert.Equal(t, StorageConfig{Driver: DriverFile, Path: "./state"}, yamlCfg.Storage)
	assert.Equal(t, "clientstate", yamlCfg.Namespace, "unset fields keep defaults")

	jsonCfg, err := NewLoader(filepath.Join("testdata", "clientstate.json")).Load()
	require.NoError(t, err)
	assert.Equal(t, clientstate.ModeProduction, clientstate.ParseMode(jsonCfg.Mode))
	assert.Equal(t, DriverSQLite, jsonCfg.Storage.Driver)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader(filepath.Join(t.TempDir(), "absent.toml")).Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clientstate.ini")
	require.NoError(t, os.WriteFile(path, []byte("mode=production"), 0o600))

	_, err := NewLoader(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported extension")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	_, err := NewLoader(filepath.Join("testdata", "invalid.toml")).Load()
	require.Error(t, err)

	msg := err.Error()
	for _, want := range []string{
		`unknown mode "staging"`,
		"max_depth: must not be negative",
		`unknown driver "redis"`,
		"rules[0]: expression is required",
		`rules[0]: unknown class "Maybe"`,
	} {
		assert.Contains(t, msg, want)
	}
}

func TestValidateRequiresPathForDurableDrivers(t *testing.T) {
	cfg := Default()
	cfg.Storage.Driver = DriverSQLite
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.path")
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CLIENTSTATE_MODE", "production")
	t.Setenv("CLIENTSTATE_MAX_DEPTH", "3")
	t.Setenv("CLIENTSTATE_NAMESPACE", "tenant-a")
	t.Setenv("CLIENTSTATE_STORAGE_DRIVER", "file")
	t.Setenv("CLIENTSTATE_STORAGE_PATH", "/var/lib/clientstate")

	cfg, err := NewLoader(filepath.Join("testdata", "clientstate.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Mode)
	assert.Equal(t, 3, cfg.MaxDepth)
	assert.Equal(t, "tenant-a", cfg.Namespace)
	assert.Equal(t, "/var/lib/clientstate", cfg.Storage.Path)
}

func TestApplyEnvOverridesIgnoresBadDepth(t *testing.T) {
	t.Setenv("CLIENTSTATE_MAX_DEPTH", "deep")
	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, clientstate.DefaultMaxDepth, cfg.MaxDepth)
}

func TestOptionsCompileRules(t *testing.T) {
	cfg, err := NewLoader(filepath.Join("testdata", "clientstate.toml")).Load()
	require.NoError(t, err)

	opts, err := cfg.Options(nil)
	require.NoError(t, err)

	classifier := clientstate.NewClassifier(opts...)
	deal := map[string]any{"dealStage": "won", "amount": 1200}
	assert.Equal(t,
		clientstate.Classification{Class: clientstate.ServerOwned, Reason: "deal-snapshot"},
		classifier.Classify("deal", deal))

	draft := map[string]any{"id": "tmp-1", "created_at": "now", "draft": true}
	assert.Equal(t,
		clientstate.Classification{Class: clientstate.ClientOnly, Reason: "local-draft"},
		classifier.Classify("draft", draft))

	assert.True(t, classifier.IsIdentifierKey("ownerRef"))
}

func TestOptionsReportsBadExpression(t *testing.T) {
	cfg := Default()
	cfg.Rules = []RuleConfig{{Name: "broken", Expression: "fields[", Engine: "expr"}}

	_, err := cfg.Options(nil)
	require.Error(t, err)
	var evalErr *clientstate.EvaluationError
	require.True(t, errors.As(err, &evalErr))
	assert.Equal(t, "broken", evalErr.Rule)
}

func TestOptionsReportsUnknownEngine(t *testing.T) {
	cfg := Default()
	cfg.Rules = []RuleConfig{{Expression: "true", Engine: "lua"}}

	_, err := cfg.Options(nil)
	require.ErrorIs(t, err, clientstate.ErrNoEvaluator)
}

func TestOptionsApplyToStores(t *testing.T) {
	cfg, err := NewLoader(filepath.Join("testdata", "clientstate.toml")).Load()
	require.NoError(t, err)
	backend, closeFn, err := cfg.OpenStorage()
	require.NoError(t, err)
	defer closeFn()

	opts, err := cfg.Options(nil)
	require.NoError(t, err)
	opts = append(opts, clientstate.WithStorage(backend))

	store, err := clientstate.NewStore(context.Background(), clientstate.StoreConfig{
		Name:         "prefs",
		InitialState: clientstate.ClientState{"viewMode": "table"},
		Actions: map[string]clientstate.ActionFunc{
			"setView": func(_ clientstate.ClientState, args ...any) (clientstate.ClientState, error) {
				return clientstate.ClientState{"viewMode": args[0]}, nil
			},
		},
		PersistKeys: []string{"viewMode"},
	}, opts...)
	require.NoError(t, err)
	assert.Equal(t, "crm/prefs", store.StorageKey())

	require.NoError(t, store.Dispatch(context.Background(), "setView", "board"))
	raw, ok, err := backend.Get(context.Background(), "crm/prefs")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"viewMode":"board"}`, string(raw))
}

func TestOpenStorageDrivers(t *testing.T) {
	dir := t.TempDir()

	none := Default()
	backend, closeFn, err := none.OpenStorage()
	require.NoError(t, err)
	assert.Nil(t, backend)
	require.NoError(t, closeFn())

	file := Default()
	file.Storage = StorageConfig{Driver: DriverFile, Path: filepath.Join(dir, "files")}
	backend, closeFn, err = file.OpenStorage()
	require.NoError(t, err)
	assert.IsType(t, &storage.File{}, backend)
	require.NoError(t, closeFn())

	db := Default()
	db.Storage = StorageConfig{Driver: DriverSQLite, Path: filepath.Join(dir, "state.db")}
	backend, closeFn, err = db.OpenStorage()
	require.NoError(t, err)
	assert.IsType(t, &storage.SQLite{}, backend)
	require.NoError(t, closeFn())
}

func TestLoaderWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clientstate.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "development"`), 0o600))

	loader := NewLoader(path)
	_, err := loader.Load()
	require.NoError(t, err)

	reloaded := make(chan *Config, 4)
	loader.OnChange(func(cfg *Config) { reloaded <- cfg })
	require.NoError(t, loader.Watch())
	defer loader.Close()

	require.NoError(t, os.WriteFile(path, []byte("mode = \"production\"\nmax_depth = 2\n"), 0o600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "production", cfg.Mode)
		assert.Equal(t, 2, cfg.MaxDepth)
	case err := <-loader.Errors():
		t.Fatalf("unexpected watch error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
	require.Eventually(t, func() bool {
		return loader.Config().Mode == "production"
	}, time.Second, 10*time.Millisecond)
}

func TestLoaderWatchKeepsLastGoodConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clientstate.toml")
	require.NoError(t, os.WriteFile(path, []byte(`max_depth = 3`), 0o600))

	loader := NewLoader(path)
	_, err := loader.Load()
	require.NoError(t, err)
	require.NoError(t, loader.Watch())
	defer loader.Close()

	require.NoError(t, os.WriteFile(path, []byte(`max_depth = -4`), 0o600))

	select {
	case err := <-loader.Errors():
		assert.Contains(t, err.Error(), "max_depth")
	case <-time.After(5 * time.Second):
		t.Fatal("expected a reload error")
	}
	assert.Equal(t, 3, loader.Config().MaxDepth)
}
