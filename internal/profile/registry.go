package profile

import (
	"embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

// DefaultName is the profile used when none is requested.
const DefaultName = "default"

// Registry manages the assistant profiles loaded from embedded YAML.
type Registry struct {
	profiles map[string]*Profile
	mu       sync.RWMutex
}

// NewRegistry creates a registry and loads the embedded assistant profiles.
func NewRegistry() (*Registry, error) {
	data, err := configFiles.ReadFile("config/assistant.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read assistant profiles: %w", err)
	}
	return Parse(data)
}

// Parse builds a registry from YAML. A "default" profile is required.
func Parse(data []byte) (*Registry, error) {
	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assistant profiles: %w", err)
	}

	r := &Registry{profiles: make(map[string]*Profile, len(file.Profiles))}
	for name, p := range file.Profiles {
		if p == nil {
			return nil, fmt.Errorf("profile %s is empty", name)
		}
		if p.MaxTokens <= 0 {
			return nil, fmt.Errorf("profile %s: max_tokens must be positive", name)
		}
		if p.Temperature < 0 || p.Temperature > 1 {
			return nil, fmt.Errorf("profile %s: temperature must be within [0, 1]", name)
		}
		p.Name = name
		r.profiles[name] = p
	}

	if _, ok := r.profiles[DefaultName]; !ok {
		return nil, fmt.Errorf("missing %q profile", DefaultName)
	}
	return r, nil
}

// Get returns the named profile.
func (r *Registry) Get(name string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown profile: %s", name)
	}
	return p, nil
}

// Default returns the default profile.
func (r *Registry) Default() *Profile {
	p, _ := r.Get(DefaultName)
	return p
}

// Names lists the loaded profiles in alphabetical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
