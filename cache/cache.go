package cache

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
)

// MaxKeyLength bounds keys accepted by ValidateKey. Keys from RequestKeyer
// are far shorter; the bound catches keyers that embed raw bodies.
const MaxKeyLength = 512

var (
	ErrNilCache   = errors.New("cache: no response cache configured")
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)

// Cache holds encoded GET response snapshots keyed by a Keyer.
//
// Values are opaque to the store: Middleware encodes the status, headers and
// body of a 2xx response and decodes them on a hit. A store must be safe for
// concurrent use, must not retain or mutate the slice passed to Set, and must
// stop returning an entry once its TTL has elapsed.
type Cache interface {
	// Get returns the snapshot for key. A miss, an expired entry and a
	// backend failure all report ok == false; a cache outage degrades to a
	// transport call.
	Get(ctx context.Context, key string) (value []byte, ok bool)

	// Set stores value for ttl. A non-positive ttl stores nothing. Errors are
	// logged by Middleware and never fail the request.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete drops key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// ValidateKey rejects keys a store could misinterpret: blank keys, keys
// longer than MaxKeyLength, and keys carrying control characters.
func ValidateKey(key string) error {
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.TrimSpace(key) == "" || strings.IndexFunc(key, unicode.IsControl) >= 0 {
		return ErrInvalidKey
	}
	return nil
}
