package secret

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type stubProvider struct {
	name     string
	values   map[string]string
	resolve  func(ref string) (string, error)
	closed   bool
	closeErr error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Resolve(_ context.Context, ref string) (string, error) {
	if s.resolve != nil {
		return s.resolve(ref)
	}
	return s.values[ref], nil
}

func (s *stubProvider) Close() error {
	s.closed = true
	return s.closeErr
}

func TestEnvProvider(t *testing.T) {
	t.Setenv("REQCORE_TEST_KEY", "s3cret")
	p := NewEnvProvider()

	if p.Name() != "env" {
		t.Errorf("Name() = %q, want env", p.Name())
	}
	got, err := p.Resolve(context.Background(), "REQCORE_TEST_KEY")
	if err != nil || got != "s3cret" {
		t.Errorf("Resolve() = %q, %v", got, err)
	}
	if _, err := p.Resolve(context.Background(), "REQCORE_UNSET_KEY"); !errors.Is(err, ErrMissingEnv) {
		t.Errorf("Resolve(unset) error = %v, want ErrMissingEnv", err)
	}
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "api_key")
	if err := os.WriteFile(path, []byte("key-123\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	p := NewFileProvider("")
	if p.Name() != "file" {
		t.Errorf("Name() = %q, want file", p.Name())
	}
	got, err := p.Resolve(context.Background(), path)
	if err != nil || got != "key-123" {
		t.Errorf("Resolve() = %q, %v", got, err)
	}
	if _, err := p.Resolve(context.Background(), filepath.Join(dir, "missing")); err == nil {
		t.Error("Resolve(missing) error = nil")
	}
}

func TestFileProvider_BaseDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "token"), []byte("tok\r\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	p := NewFileProvider(dir)

	got, err := p.Resolve(context.Background(), "token")
	if err != nil || got != "tok" {
		t.Errorf("Resolve(relative) = %q, %v", got, err)
	}
	for _, ref := range []string{"../etc/passwd", "/etc/passwd"} {
		if _, err := p.Resolve(context.Background(), ref); !errors.Is(err, ErrInvalidRef) {
			t.Errorf("Resolve(%q) error = %v, want ErrInvalidRef", ref, err)
		}
	}
}

func TestFileProvider_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFileProvider("").Resolve(ctx, "/dev/null"); !errors.Is(err, context.Canceled) {
		t.Errorf("Resolve() error = %v, want context.Canceled", err)
	}
}
