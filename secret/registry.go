package secret

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ProviderFactory creates a Provider from configuration options.
type ProviderFactory func(options map[string]any) (Provider, error)

// Registry manages provider factories by name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

// NewDefaultRegistry creates a registry holding the "env" and "file"
// factories. The file factory reads an optional "base_dir" option.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register("env", func(map[string]any) (Provider, error) {
		return NewEnvProvider(), nil
	})
	_ = r.Register("file", func(options map[string]any) (Provider, error) {
		baseDir, _ := options["base_dir"].(string)
		return NewFileProvider(baseDir), nil
	})
	return r
}

// Register adds a factory. Names must be unique.
func (r *Registry) Register(name string, factory ProviderFactory) error {
	name = strings.TrimSpace(name)
	if name == "" || factory == nil {
		return errors.New("secret: invalid provider registration")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("secret: provider %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates a provider by name.
func (r *Registry) Create(name string, options map[string]any) (Provider, error) {
	name = strings.TrimSpace(name)

	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotRegistered, name)
	}
	return factory(options)
}

// List returns registered provider names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewResolver creates a strict-mode Resolver with one provider per
// registered factory, each built with options[name].
func (r *Registry) NewResolver(options map[string]map[string]any) (*Resolver, error) {
	resolver := NewResolver(true)
	for _, name := range r.List() {
		p, err := r.Create(name, options[name])
		if err != nil {
			_ = resolver.Close()
			return nil, fmt.Errorf("secret: create provider %q: %w", name, err)
		}
		resolver.Register(p)
	}
	return resolver, nil
}
