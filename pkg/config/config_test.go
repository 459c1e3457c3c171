package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"BUTTERVOLUME_CONFIG", "VOLUMES_PATH", "SNAPSHOTS_PATH", "TEST_REMOTE_PATH",
		"SCHEDULE", "SCHEDULE_PAUSE_MARKER", "SOCKET", "TIMER", "DTFORMAT",
		"LOGLEVEL", "SSH_PORT", "DEBUG_LISTEN",
	} {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("BUTTERVOLUME_CONFIG", filepath.Join(t.TempDir(), "missing.yml"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.TimerSeconds)
	assert.Equal(t, "/var/lib/buttervolume/volumes", cfg.VolumesPath)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("volumes_path: /from/file\ntimer_seconds: 30\n"), 0o644))
	t.Setenv("BUTTERVOLUME_CONFIG", cfgFile)
	t.Setenv("TIMER", "90")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/from/file", cfg.VolumesPath)
	assert.Equal(t, 90, cfg.TimerSeconds)
}
