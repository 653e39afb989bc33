package cache

import (
	"testing"
	"time"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.DefaultTTL != 5*time.Minute || p.MaxTTL != time.Hour {
		t.Errorf("DefaultPolicy() = %+v", p)
	}
	if !p.ShouldCache("contacts") {
		t.Error("DefaultPolicy should cache")
	}
	if NoCachePolicy().ShouldCache("contacts") {
		t.Error("NoCachePolicy should not cache")
	}
}

func TestPolicy_EffectiveTTL(t *testing.T) {
	p := Policy{
		DefaultTTL: time.Minute,
		MaxTTL:     10 * time.Minute,
		EndpointTTL: map[string]time.Duration{
			"tags":     time.Hour,
			"contacts": 0,
			"deals":    2 * time.Minute,
			"bad":      -time.Second,
		},
	}

	tests := []struct {
		endpoint string
		want     time.Duration
	}{
		{"accounts", time.Minute},
		{"deals", 2 * time.Minute},
		{"tags", 10 * time.Minute},
		{"contacts", 0},
		{"bad", 0},
	}
	for _, tt := range tests {
		if got := p.EffectiveTTL(tt.endpoint); got != tt.want {
			t.Errorf("EffectiveTTL(%q) = %v, want %v", tt.endpoint, got, tt.want)
		}
	}
	if p.ShouldCache("contacts") {
		t.Error("zero endpoint override should disable caching")
	}
}
