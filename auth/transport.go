package auth

import "net/http"

// Invalidator is implemented by credentials that can be refreshed after the
// server rejects them.
type Invalidator interface {
	Invalidate()
}

// RoundTripper applies credentials to each outgoing request.
//
// The request is cloned before headers are set. A 401 response invalidates
// credentials that implement Invalidator; the response is still returned to
// the caller so the retry layer decides whether to try again.
type RoundTripper struct {
	base  http.RoundTripper
	creds Credentials
}

// NewRoundTripper wraps base. A nil base uses http.DefaultTransport.
func NewRoundTripper(base http.RoundTripper, creds Credentials) *RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &RoundTripper{base: base, creds: creds}
}

// RoundTrip implements http.RoundTripper.
func (rt *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if rt.creds == nil {
		return rt.base.RoundTrip(req)
	}

	out := req.Clone(req.Context())
	if err := rt.creds.Apply(req.Context(), out); err != nil {
		return nil, err
	}

	resp, err := rt.base.RoundTrip(out)
	if err == nil && resp.StatusCode == http.StatusUnauthorized {
		if inv, ok := rt.creds.(Invalidator); ok {
			inv.Invalidate()
		}
	}
	return resp, err
}

var _ http.RoundTripper = (*RoundTripper)(nil)
