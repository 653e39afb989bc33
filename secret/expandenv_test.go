package secret

import (
	"errors"
	"strings"
	"testing"
)

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("API_HOST", "api.example.com")
	t.Setenv("API_VERSION", "3")

	got, err := ExpandEnvStrict("https://${API_HOST}/api/$API_VERSION")
	if err != nil {
		t.Fatalf("ExpandEnvStrict() error = %v", err)
	}
	if got != "https://api.example.com/api/3" {
		t.Errorf("ExpandEnvStrict() = %q", got)
	}
}

func TestExpandEnvStrict_MissingVarsSortedAndDeduped(t *testing.T) {
	t.Setenv("PRESENT", "ok")

	_, err := ExpandEnvStrict("${ZETA} ${PRESENT} ${ALPHA} ${ZETA}")
	if !errors.Is(err, ErrMissingEnv) {
		t.Fatalf("error = %v, want ErrMissingEnv", err)
	}
	if !strings.HasSuffix(err.Error(), ": ALPHA, ZETA") {
		t.Errorf("error = %q, want sorted unique names", err)
	}
}

func TestExpandEnvStrict_DollarEscape(t *testing.T) {
	t.Setenv("X", "y")

	out, err := ExpandEnvStrict("$$${X}")
	if err != nil {
		t.Fatalf("ExpandEnvStrict() error = %v", err)
	}
	if out != "$y" {
		t.Errorf("ExpandEnvStrict() = %q, want %q", out, "$y")
	}
}

func TestExpandEnv_CustomLookup(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == "TOKEN" {
			return "abc", true
		}
		return "", false
	}

	got, err := expandEnv("key=${TOKEN} cost=$$5", lookup)
	if err != nil || got != "key=abc cost=$5" {
		t.Errorf("expandEnv() = %q, %v", got, err)
	}
	if _, err := expandEnv("${NOPE}", lookup); !errors.Is(err, ErrMissingEnv) {
		t.Errorf("expandEnv(missing) error = %v", err)
	}
}
