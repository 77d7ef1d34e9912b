package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfiguration_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfiguration(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfiguration(), cfg)
}

func TestLoadConfiguration_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configuration.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
port = 25566
online_mode = false
max_players = 100
`), 0o644))

	cfg, err := LoadConfiguration(path)
	require.NoError(t, err)
	assert.Equal(t, 25566, cfg.Port)
	assert.False(t, cfg.OnlineMode)
	assert.Equal(t, 100, cfg.MaxPlayers)
	assert.Equal(t, DefaultConfiguration().ServerName, cfg.ServerName)
}

func TestLoadFeatures_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
compression_threshold = 64

[rcon]
enabled = true
port = 25575
password = "secret"
`), 0o644))

	cfg, err := LoadFeatures(path)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.CompressionThreshold)
	assert.True(t, cfg.RCON.Enabled)
	assert.Equal(t, "secret", cfg.RCON.Password)
}
