package client

import (
	"github.com/jonwraymond/reqcore/auth"
	"github.com/jonwraymond/reqcore/cache"
	"github.com/jonwraymond/reqcore/observe"
	"github.com/jonwraymond/reqcore/pagination"
)

type options struct {
	logger         observe.Logger
	observer       observe.Observer
	cache          *cache.Middleware
	registry       *pagination.Registry
	reauthenticate auth.ReauthenticateFunc
}

// Option configures a Client.
type Option func(*options)

// WithLogger sets the logger for retries, breaker transitions and call
// completion. It takes precedence over the observer's logger.
func WithLogger(logger observe.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithObserver records spans and metrics for every call. The Client does not
// shut the observer down.
func WithObserver(obs observe.Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithCache serves repeated safe requests through mw, replacing any cache
// built from Config.Cache.
func WithCache(mw *cache.Middleware) Option {
	return func(o *options) {
		o.cache = mw
	}
}

// WithRegistry shares a pagination registry between clients.
func WithRegistry(r *pagination.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithReauthenticate refreshes an expired or rejected bearer token. Only
// NewFromConfig uses it, and it selects bearer auth even without an initial
// Auth.BearerToken.
func WithReauthenticate(fn auth.ReauthenticateFunc) Option {
	return func(o *options) {
		o.reauthenticate = fn
	}
}
