package profile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Store exposes profile retrieval for HTTP handlers and the widget.
type Store interface {
	List() []Profile
	FindByID(id string) (Profile, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Profile
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied profiles.
func NewMemoryStore(items []Profile) *MemoryStore {
	return &MemoryStore{items: append([]Profile(nil), items...)}
}

// List returns the loaded profiles.
func (s *MemoryStore) List() []Profile {
	return append([]Profile(nil), s.items...)
}

// FindByID looks up a profile by identifier.
func (s *MemoryStore) FindByID(id string) (Profile, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Profile{}, false
}

type profileFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadFile reads profiles from a YAML file of the form `profiles: [...]`.
func LoadFile(path string) ([]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML profile definitions and fills sentinel defaults.
func Parse(data []byte) ([]Profile, error) {
	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}

	out := make([]Profile, 0, len(file.Profiles))
	for i, p := range file.Profiles {
		if p.ID == "" {
			return nil, fmt.Errorf("profile #%d has no id", i)
		}
		out = append(out, p.WithDefaults())
	}
	return out, nil
}
