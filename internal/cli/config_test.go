package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClientConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadClientConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.FallbackTag)
	assert.Empty(t, cfg.BaseURL)
}

func TestLoadClientConfigParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tagstack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url: https://cfg.example/docs
hostname: play.example.com
fallback_tag: root
storage_path: /tmp/tagstack.db
cache_ttl: 90s
`), 0o600))

	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://cfg.example/docs", cfg.BaseURL)
	assert.Equal(t, "play.example.com", cfg.Hostname)
	assert.Equal(t, "root", cfg.FallbackTag)
	assert.Equal(t, 90*time.Second, cfg.CacheTTLDuration())
}

func TestLoadClientConfigRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tagstack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: [unclosed"), 0o600))

	_, err := LoadClientConfig(path)
	require.Error(t, err)
}

func TestNormalizeFillsHostname(t *testing.T) {
	cfg := &ClientConfig{}
	cfg.Normalize()
	assert.Equal(t, "default", cfg.FallbackTag)
	// Hostname comes from the machine; just require it tried.
	host, err := os.Hostname()
	if err == nil {
		assert.Equal(t, host, cfg.Hostname)
	}
}
