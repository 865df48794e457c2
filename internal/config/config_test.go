package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrdinalFromPodName(t *testing.T) {
	tests := []struct {
		name    string
		podName string
		want    uint32
	}{
		{"single digit", "clacheless-1", 1},
		{"multi digit", "clacheless-123", 123},
		{"zero", "clacheless-0", 0},
		{"no dash", "clacheless", 0},
		{"non-numeric suffix", "clacheless-abc", 0},
		{"empty", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OrdinalFromPodName(tt.podName))
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Contains(t, cfg.AddressTemplate, "ORDINAL")
	assert.Equal(t, uint32(0), cfg.Ordinal)
	assert.Equal(t, uint64(3600)*1_000_000, cfg.TTLMicros)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "/secrets/dc/key", cfg.SecretPath)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CLACHELESS_ADDR_TEMPLATE", "node-ORDINAL.svc:9999")
	t.Setenv("POD_NAME", "node-4")
	t.Setenv("CLACHELESS_TTL", "30")

	cfg := Load()

	assert.Equal(t, "node-ORDINAL.svc:9999", cfg.AddressTemplate)
	assert.Equal(t, uint32(4), cfg.Ordinal)
	assert.Equal(t, uint64(30)*1_000_000, cfg.TTLMicros)
}
