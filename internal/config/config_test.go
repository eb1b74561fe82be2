package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
project_id: tutor-project
transport_mode: webhook
public_base_url: https://bot.example.com
port: "9090"
log_level: debug
`

func writeConfig(t *testing.T, body string) {
	t.Helper()
	tmp, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	require.NoError(t, err)
	_, err = tmp.WriteString(body)
	require.NoError(t, err)
	require.NoError(t, tmp.Close())
	t.Setenv("CONFIG_PATH", tmp.Name())
}

func TestLoad_FromFile(t *testing.T) {
	writeConfig(t, sampleConfig)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "tutor-project", cfg.ProjectID)
	require.Equal(t, ModeWebhook, cfg.Mode)
	require.Equal(t, "https://bot.example.com", cfg.PublicBaseURL)
	require.Equal(t, ":9090", cfg.Addr())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	writeConfig(t, sampleConfig)
	t.Setenv("GOOGLE_CLOUD_PROJECT", "other-project")
	t.Setenv("TRANSPORT_MODE", ModeLongPoll)
	t.Setenv("PORT", "8081")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "other-project", cfg.ProjectID)
	require.Equal(t, ModeLongPoll, cfg.Mode)
	require.Equal(t, "8081", cfg.Port)
}

func TestLoad_Defaults(t *testing.T) {
	writeConfig(t, "project_id: p\n")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ModeLongPoll, cfg.Mode)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "info", cfg.LogLevel)
	require.Empty(t, cfg.PublicBaseURL)
}

func TestLoad_MissingProjectID(t *testing.T) {
	writeConfig(t, "port: \"8080\"\n")

	_, err := Load()
	require.ErrorIs(t, err, ErrMissingProjectID)
}

func TestLoad_InvalidMode(t *testing.T) {
	writeConfig(t, "project_id: p\ntransport_mode: carrier-pigeon\n")

	_, err := Load()
	require.ErrorIs(t, err, ErrInvalidMode)
}

func TestLoad_InvalidPort(t *testing.T) {
	writeConfig(t, "project_id: p\nport: \"not-a-port\"\n")

	_, err := Load()
	require.ErrorIs(t, err, ErrInvalidPort)
}
