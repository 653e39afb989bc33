// Package transport performs single HTTP attempts against an API and
// classifies their outcome for the resilience layer.
//
// HTTPTransport never retries. A 429 becomes *resilience.RateLimitError, any
// other non-2xx status becomes *resilience.HTTPError, and connection level
// failures become *resilience.NetworkError with an errno-style code
// (ECONNRESET, ECONNREFUSED, ENOTFOUND, ETIMEDOUT). Retry-After is parsed in
// both its delay-seconds and HTTP-date forms.
package transport
