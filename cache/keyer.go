package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jonwraymond/reqcore/transport"
)

// Keyer derives cache keys from requests.
//
// Contract:
// - Determinism: equal requests produce equal keys regardless of query or
//   map ordering.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(req *transport.Request) (string, error)
}

// RequestKeyer hashes the request path, query and body.
type RequestKeyer struct {
	// VaryHeaders are request headers folded into the key, e.g. Accept-Language.
	VaryHeaders []string
}

// NewRequestKeyer creates a keyer that varies on the named headers.
func NewRequestKeyer(varyHeaders ...string) *RequestKeyer {
	return &RequestKeyer{VaryHeaders: varyHeaders}
}

// Key returns cache:<METHOD>:<endpoint>:<hash>, where hash is the first 16
// hex characters of SHA-256 over the canonical request.
func (k *RequestKeyer) Key(req *transport.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	parts := map[string]any{
		"path": req.PathOrDefault(),
	}
	if len(req.Query) > 0 {
		// Encode sorts by key.
		parts["query"] = req.Query.Encode()
	}
	if req.Body != nil {
		body, err := bodyValue(req.Body)
		if err != nil {
			return "", err
		}
		parts["body"] = body
	}
	if len(k.VaryHeaders) > 0 && req.Header != nil {
		vary := make(map[string]any, len(k.VaryHeaders))
		for _, h := range k.VaryHeaders {
			if v := req.Header.Get(h); v != "" {
				vary[h] = v
			}
		}
		parts["vary"] = vary
	}

	canonical, err := canonicalize(parts)
	if err != nil {
		return "", fmt.Errorf("cache: failed to canonicalize request: %w", err)
	}
	hash := sha256.Sum256(canonical)

	endpoint := req.Endpoint
	if endpoint == "" {
		endpoint = req.PathOrDefault()
	}
	return fmt.Sprintf("cache:%s:%s:%s", req.MethodOrDefault(), endpoint, hex.EncodeToString(hash[:8])), nil
}

// bodyValue decodes raw JSON bodies so that key order does not matter.
func bodyValue(body any) (any, error) {
	var raw []byte
	switch b := body.(type) {
	case []byte:
		raw = b
	case json.RawMessage:
		raw = b
	default:
		return body, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw), nil
	}
	return v, nil
}

func canonicalize(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []byte("{")
	for i, k := range keys {
		if i > 0 {
			out = append(out, ',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		out = append(out, kb...)
		out = append(out, ':')

		vb, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		out = append(out, vb...)
	}
	return append(out, '}'), nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	out := []byte("[")
	for i, v := range s {
		if i > 0 {
			out = append(out, ',')
		}
		vb, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		out = append(out, vb...)
	}
	return append(out, ']'), nil
}

var _ Keyer = (*RequestKeyer)(nil)
