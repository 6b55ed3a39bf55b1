package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vftpd/vftpd/internal/config"
)

func TestLoadSettingsAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	require.NoError(t, config.WriteDefaultFile(path))

	settings, err := config.LoadSettings(path)
	require.NoError(t, err)
	require.Equal(t, config.Defaults(), settings)
}

func TestLoadSettingsOverridesFillOnlyZeroFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	content := `
listen_addr = "127.0.0.1:2200"
max_login_attempts = 5

[passive_port_range]
start = 30000
end = 30100
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	settings, err := config.LoadSettings(path)
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:2200", settings.ListenAddr)
	require.Equal(t, 5, settings.MaxLoginAttempts)
	require.NotNil(t, settings.PassivePortRange)
	require.Equal(t, 30000, settings.PassivePortRange.Start)
	require.Equal(t, 30100, settings.PassivePortRange.End)

	// untouched knobs still fall back to Defaults().
	require.Equal(t, config.Defaults().Banner, settings.Banner)
	require.Equal(t, config.Defaults().IdleTimeoutSeconds, settings.IdleTimeoutSeconds)
}

func TestLoadSettingsMissingFile(t *testing.T) {
	_, err := config.LoadSettings(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
