// Package cache caches successful read-only API responses.
//
// A Middleware sits in front of the request path. Safe requests (GET and
// HEAD) are keyed by method, endpoint, path and canonical query; a hit is
// served without touching the queue, rate limiter or network. Errors are
// never cached.
package cache
