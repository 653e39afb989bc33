package cache

import "time"

// Policy configures caching behavior.
type Policy struct {
	// DefaultTTL applies to endpoints without an override. Zero disables
	// caching for them.
	DefaultTTL time.Duration

	// MaxTTL clamps every TTL. Zero means no maximum.
	MaxTTL time.Duration

	// EndpointTTL overrides DefaultTTL per endpoint name. A zero entry
	// disables caching for that endpoint.
	EndpointTTL map[string]time.Duration
}

// DefaultPolicy caches for 5 minutes, at most 1 hour.
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL: 5 * time.Minute,
		MaxTTL:     time.Hour,
	}
}

// NoCachePolicy disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{}
}

// ShouldCache reports whether responses from endpoint are cached.
func (p Policy) ShouldCache(endpoint string) bool {
	return p.EffectiveTTL(endpoint) > 0
}

// EffectiveTTL returns the clamped TTL for endpoint.
func (p Policy) EffectiveTTL(endpoint string) time.Duration {
	ttl, ok := p.EndpointTTL[endpoint]
	if !ok {
		ttl = p.DefaultTTL
	}
	if ttl < 0 {
		return 0
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}
