package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// Credentials decorate an outgoing request with authentication.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Apply may block (e.g. reauthentication) and must honor ctx.
type Credentials interface {
	Apply(ctx context.Context, req *http.Request) error
}

// APIKeyConfig configures a static API key credential.
type APIKeyConfig struct {
	// Key is the API key value.
	Key string `yaml:"key"`

	// HeaderName is the header carrying the key.
	// Default: "api-key"
	HeaderName string `yaml:"header"`
}

// APIKey applies a static key header.
type APIKey struct {
	config APIKeyConfig
}

// NewAPIKey creates an API key credential. The key is trimmed of surrounding
// whitespace.
func NewAPIKey(config APIKeyConfig) *APIKey {
	if config.HeaderName == "" {
		config.HeaderName = "api-key"
	}
	config.Key = strings.TrimSpace(config.Key)
	return &APIKey{config: config}
}

// Apply sets the key header on req.
func (k *APIKey) Apply(_ context.Context, req *http.Request) error {
	if k.config.Key == "" {
		return ErrMissingCredentials
	}
	req.Header.Set(k.config.HeaderName, k.config.Key)
	return nil
}

// HeaderName returns the header the key is sent in.
func (k *APIKey) HeaderName() string {
	return k.config.HeaderName
}

// Fingerprint returns a short SHA-256 prefix that identifies the key in logs
// without revealing it.
func (k *APIKey) Fingerprint() string {
	return Fingerprint(k.config.Key)
}

// Fingerprint hashes secret with SHA-256 and returns the first 12 hex digits.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(hash[:])[:12]
}

var _ Credentials = (*APIKey)(nil)
