// Package auth provides client-side credentials for outgoing API requests.
//
// APIKey sets a static key header. BearerToken carries an access token,
// reads its expiry from the JWT exp claim and, once the token is within the
// configured skew of expiring, obtains a new one through a reauthenticate
// callback. Concurrent callers share a single reauthentication.
//
// RoundTripper applies Credentials to every request sent through an
// http.Client and invalidates bearer tokens rejected with 401.
package auth
