package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// ReauthenticateFunc obtains a fresh access token.
type ReauthenticateFunc func(ctx context.Context) (string, error)

// BearerConfig configures a bearer token credential.
type BearerConfig struct {
	// Token is the initial access token. It may be empty when Reauthenticate
	// is set.
	Token string

	// Reauthenticate is called when the token is missing, expired or
	// invalidated. Without it an expired token fails with ErrTokenExpired.
	Reauthenticate ReauthenticateFunc

	// Skew treats a token as expired this long before its exp claim.
	// Default: 30s
	Skew time.Duration

	// HeaderName is the header containing the token.
	// Default: "Authorization"
	HeaderName string

	// TokenPrefix is the prefix before the token in the header.
	// Default: "Bearer "
	TokenPrefix string
}

// BearerToken is a bearer credential with expiry tracking.
//
// Expiry is read from the exp claim of JWT tokens without verifying the
// signature; the server remains the authority. Opaque tokens have no known
// expiry and are used until invalidated.
type BearerToken struct {
	config BearerConfig
	now    func() time.Time

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	stale     bool

	sf singleflight.Group
}

// NewBearerToken creates a bearer credential.
func NewBearerToken(config BearerConfig) *BearerToken {
	if config.Skew == 0 {
		config.Skew = 30 * time.Second
	}
	if config.HeaderName == "" {
		config.HeaderName = "Authorization"
	}
	if config.TokenPrefix == "" {
		config.TokenPrefix = "Bearer "
	}

	b := &BearerToken{config: config, now: time.Now}
	b.store(config.Token)
	return b
}

// ExpiryFromJWT returns the exp claim of a JWT. The signature is not
// verified. A token without an exp claim returns the zero time.
func ExpiryFromJWT(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}

func (b *BearerToken) store(token string) {
	token = strings.TrimSpace(token)
	var exp time.Time
	if token != "" {
		// Opaque tokens keep a zero expiry.
		exp, _ = ExpiryFromJWT(token)
	}

	b.mu.Lock()
	b.token = token
	b.expiresAt = exp
	b.stale = false
	b.mu.Unlock()
}

// Expired reports whether the current token is missing, invalidated or
// within Skew of its expiry.
func (b *BearerToken) Expired() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.expiredLocked()
}

func (b *BearerToken) expiredLocked() bool {
	if b.token == "" || b.stale {
		return true
	}
	if b.expiresAt.IsZero() {
		return false
	}
	return !b.now().Add(b.config.Skew).Before(b.expiresAt)
}

// ExpiresAt returns the exp claim of the current token, or zero if unknown.
func (b *BearerToken) ExpiresAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.expiresAt
}

// Invalidate marks the current token unusable so the next Token call
// reauthenticates.
func (b *BearerToken) Invalidate() {
	b.mu.Lock()
	b.stale = true
	b.mu.Unlock()
}

// Token returns a usable token, reauthenticating first if needed.
func (b *BearerToken) Token(ctx context.Context) (string, error) {
	b.mu.RLock()
	token, expired := b.token, b.expiredLocked()
	b.mu.RUnlock()
	if !expired {
		return token, nil
	}

	if b.config.Reauthenticate == nil {
		if token == "" {
			return "", ErrMissingCredentials
		}
		return "", ErrTokenExpired
	}

	// Shared by every waiter, so one caller's cancellation must not fail the rest.
	ch := b.sf.DoChan("reauthenticate", func() (any, error) {
		// A concurrent caller may have refreshed already.
		b.mu.RLock()
		current, stillExpired := b.token, b.expiredLocked()
		b.mu.RUnlock()
		if !stillExpired {
			return current, nil
		}

		fresh, err := b.config.Reauthenticate(context.WithoutCancel(ctx))
		if err != nil {
			return "", errors.Join(ErrReauthenticationFailed, err)
		}
		if strings.TrimSpace(fresh) == "" {
			return "", fmt.Errorf("%w: empty token", ErrReauthenticationFailed)
		}
		b.store(fresh)
		return strings.TrimSpace(fresh), nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Apply sets the Authorization header on req.
func (b *BearerToken) Apply(ctx context.Context, req *http.Request) error {
	token, err := b.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set(b.config.HeaderName, b.config.TokenPrefix+token)
	return nil
}

var _ Credentials = (*BearerToken)(nil)
