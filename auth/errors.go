package auth

import "errors"

// Sentinel errors for client credentials.
var (
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenMalformed     = errors.New("auth: token malformed")

	// ErrReauthenticationFailed wraps the error returned by a reauthenticate callback.
	ErrReauthenticationFailed = errors.New("auth: reauthentication failed")
)
