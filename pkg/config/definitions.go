package config

import (
	"fmt"
	"os"

	clientstate "github.com/goliatone/go-clientstate"
)

// Definition declares a client store without its actions. It is what the
// statecheck scanner reads to vet initial state and persist keys in CI.
type Definition struct {
	Name         string         `toml:"name" json:"name" yaml:"name"`
	InitialState map[string]any `toml:"initial_state" json:"initial_state" yaml:"initial_state"`
	PersistKeys  []string       `toml:"persist_keys" json:"persist_keys" yaml:"persist_keys"`
}

type definitionFile struct {
	Stores []Definition `toml:"stores" json:"stores" yaml:"stores"`
}

// LoadDefinitions reads the `stores` list of a TOML, YAML or JSON file.
func LoadDefinitions(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var file definitionFile
	if err := decodeFile(path, data, &file); err != nil {
		return nil, err
	}
	return file.Stores, nil
}

// StoreConfig converts the definition for NewStore.
func (d Definition) StoreConfig() clientstate.StoreConfig {
	initial := clientstate.ClientState(d.InitialState)
	if d.InitialState != nil {
		initial = make(clientstate.ClientState, len(d.InitialState))
		for key, value := range d.InitialState {
			initial[key] = value
		}
	}
	return clientstate.StoreConfig{
		Name:         d.Name,
		InitialState: initial,
		PersistKeys:  append([]string(nil), d.PersistKeys...),
	}
}
