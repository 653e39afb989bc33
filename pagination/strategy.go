package pagination

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Strategy selects how an endpoint continues to the next page.
type Strategy string

const (
	StrategyOffset Strategy = "offset"
	StrategyCursor Strategy = "cursor"
	StrategyToken  Strategy = "token"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyOffset, StrategyCursor, StrategyToken:
		return true
	}
	return false
}

// EndpointConfig describes the pagination shape of one list endpoint.
type EndpointConfig struct {
	// Strategy selects which parameter fields are meaningful.
	// Default: offset
	Strategy Strategy `yaml:"strategy"`

	// DefaultLimit is the page size used when none is requested.
	// Default: 50
	DefaultLimit int `yaml:"default_limit"`

	// MaxLimit caps the page size.
	// Default: 100
	MaxLimit int `yaml:"max_limit"`

	// PageParam is the page number parameter (offset).
	// Default: "page"
	PageParam string `yaml:"page_param"`

	// SizeParam is the page size parameter (offset).
	// Default: "per_page"
	SizeParam string `yaml:"size_param"`

	// CursorParam is the opaque cursor parameter (cursor).
	// Default: "cursor"
	CursorParam string `yaml:"cursor_param"`

	// TokenParam is the continuation token parameter (token).
	// Default: "next_token"
	TokenParam string `yaml:"token_param"`

	// LimitParam is the page size parameter (cursor, token).
	// Default: "limit"
	LimitParam string `yaml:"limit_param"`
}

// DefaultEndpointConfig is used for endpoints that were never registered.
func DefaultEndpointConfig() EndpointConfig {
	return EndpointConfig{}.withDefaults()
}

func (c EndpointConfig) withDefaults() EndpointConfig {
	if c.Strategy == "" {
		c.Strategy = StrategyOffset
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = 50
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = 100
	}
	if c.DefaultLimit > c.MaxLimit {
		c.DefaultLimit = c.MaxLimit
	}
	if c.PageParam == "" {
		c.PageParam = "page"
	}
	if c.SizeParam == "" {
		c.SizeParam = "per_page"
	}
	if c.CursorParam == "" {
		c.CursorParam = "cursor"
	}
	if c.TokenParam == "" {
		c.TokenParam = "next_token"
	}
	if c.LimitParam == "" {
		c.LimitParam = "limit"
	}
	return c
}

// Registry maps endpoint names to their pagination configuration.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]EndpointConfig
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{endpoints: make(map[string]EndpointConfig)}
}

// Register sets the configuration for name, replacing any previous one.
// Zero fields take their defaults.
func (r *Registry) Register(name string, cfg EndpointConfig) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("pagination: endpoint name is required")
	}
	if cfg.Strategy != "" && !cfg.Strategy.Valid() {
		return fmt.Errorf("pagination: endpoint %q: unknown strategy %q", name, cfg.Strategy)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[name] = cfg.withDefaults()
	return nil
}

// Lookup returns the configuration for name. Unregistered endpoints get
// DefaultEndpointConfig and false.
func (r *Registry) Lookup(name string) (EndpointConfig, bool) {
	if r == nil {
		return DefaultEndpointConfig(), false
	}

	r.mu.RLock()
	cfg, ok := r.endpoints[strings.TrimSpace(name)]
	r.mu.RUnlock()
	if !ok {
		return DefaultEndpointConfig(), false
	}
	return cfg, true
}

// Endpoints returns the registered endpoint names, sorted.
func (r *Registry) Endpoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
