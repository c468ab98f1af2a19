package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	clientstate "github.com/goliatone/go-clientstate"
	"github.com/goliatone/go-clientstate/pkg/config"
	"github.com/goliatone/go-clientstate/schema/openapi"
)

// StoreResult is the outcome of building one store definition.
type StoreResult struct {
	File        string                            `json:"file"`
	Store       string                            `json:"store,omitempty"`
	Error       string                            `json:"error,omitempty"`
	Violations  []clientstate.ValidationViolation `json:"violations,omitempty"`
	Diagnostics []clientstate.Diagnostic          `json:"diagnostics,omitempty"`
}

// Failed reports whether the result should fail the scan.
func (r StoreResult) Failed() bool {
	return r.Error != "" || len(r.Violations) > 0
}

// StoreDescription lists the classified fields of one store.
type StoreDescription struct {
	Store  string                        `json:"store"`
	Fields []clientstate.FieldDescriptor `json:"fields"`
}

type scanner struct {
	configPath string
	files      []string
	loader     *config.Loader

	mu   sync.Mutex
	opts []clientstate.Option
}

func newScanner(configPath string, files []string) (*scanner, error) {
	s := &scanner{configPath: configPath, files: files}
	if configPath != "" {
		s.loader = config.NewLoader(configPath)
	}
	if err := s.reloadConfig(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *scanner) reloadConfig() error {
	cfg := config.Default()
	if s.loader != nil {
		loaded, err := s.loader.Load()
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg.ApplyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	opts, err := cfg.Options(nil)
	if err != nil {
		return err
	}
	// Stores are built silently and without storage: only the declared
	// definitions are under review.
	opts = append(opts, clientstate.WithMode(clientstate.ModeProduction), clientstate.WithStorage(nil))
	s.mu.Lock()
	s.opts = opts
	s.mu.Unlock()
	return nil
}

func (s *scanner) options() []clientstate.Option {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]clientstate.Option(nil), s.opts...)
}

// Scan builds every definition in every file.
func (s *scanner) Scan(ctx context.Context) []StoreResult {
	opts := s.options()
	var results []StoreResult
	for _, file := range s.files {
		defs, err := config.LoadDefinitions(file)
		if err != nil {
			results = append(results, StoreResult{File: file, Error: err.Error()})
			continue
		}
		for _, def := range defs {
			result := StoreResult{File: file, Store: def.Name}
			store, err := clientstate.NewStore(ctx, def.StoreConfig(), opts...)
			if err != nil {
				result.Error = err.Error()
			} else {
				result.Violations = store.Violations()
				result.Diagnostics = store.Diagnostics()
			}
			results = append(results, result)
		}
	}
	return results
}

// Describe classifies every field of every store in file.
func (s *scanner) Describe(file string) ([]StoreDescription, error) {
	defs, err := config.LoadDefinitions(file)
	if err != nil {
		return nil, err
	}
	opts := s.options()
	out := make([]StoreDescription, 0, len(defs))
	for _, def := range defs {
		out = append(out, StoreDescription{
			Store:  def.Name,
			Fields: clientstate.Describe(def.InitialState, opts...),
		})
	}
	return out, nil
}

// OpenAPI renders the definitions in file as an OpenAPI document whose
// properties carry the same classification Describe reports.
func (s *scanner) OpenAPI(file string) (map[string]any, error) {
	defs, err := config.LoadDefinitions(file)
	if err != nil {
		return nil, err
	}
	stores := make([]openapi.Store, 0, len(defs))
	for _, def := range defs {
		stores = append(stores, openapi.Store{
			Name:         def.Name,
			InitialState: def.InitialState,
			PersistKeys:  def.PersistKeys,
		})
	}
	generator := openapi.NewGenerator(
		openapi.WithInfo("statecheck", "1.0.0", openapi.WithInfoDescription(filepath.Base(file))),
		openapi.WithClassifierOptions(s.options()...),
	)
	return generator.Generate(stores)
}

// Watch calls rescan after definitions or the config change, until ctx is
// done. A config that fails to reload is reported and the previous options
// stay in effect.
func (s *scanner) Watch(ctx context.Context, rescan func(), onError func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	watched := map[string]struct{}{}
	targets := map[string]struct{}{}
	for _, path := range append(append([]string(nil), s.files...), s.configPath) {
		if path == "" {
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		targets[abs] = struct{}{}
		dir := filepath.Dir(abs)
		if _, ok := watched[dir]; ok {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		watched[dir] = struct{}{}
	}
	configAbs := ""
	if s.configPath != "" {
		configAbs, _ = filepath.Abs(s.configPath)
	}

	var (
		timer        *time.Timer
		fire         <-chan time.Time
		configChange bool
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			name, _ := filepath.Abs(event.Name)
			if _, ok := targets[name]; !ok {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if name == configAbs {
				configChange = true
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(100 * time.Millisecond)
			fire = timer.C
		case <-fire:
			fire = nil
			if configChange {
				configChange = false
				if err := s.reloadConfig(); err != nil {
					onError(err)
					continue
				}
			}
			rescan()
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			return err
		}
	}
}

func (s *scanner) Close() error {
	if s.loader != nil {
		return s.loader.Close()
	}
	return nil
}

func hasFindings(results []StoreResult) bool {
	for _, result := range results {
		if result.Failed() {
			return true
		}
	}
	return false
}
