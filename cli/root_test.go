package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/genvid/genvid/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupGlobalConfig(t *testing.T) {
	t.Run("Should inject the YAML configuration into the context", func(t *testing.T) {
		dir := t.TempDir()
		cfgPath := filepath.Join(dir, "genvid.yaml")
		require.NoError(t, os.WriteFile(cfgPath, []byte("api:\n  base_url: https://yaml.example.com\n"), 0o600))

		cmd := RootCmd()
		require.NoError(t, cmd.ParseFlags([]string{"--env-file=", "--config", cfgPath}))

		require.NoError(t, SetupGlobalConfig(cmd))

		cfg := config.FromContext(cmd.Context())
		require.NotNil(t, cfg)
		assert.Equal(t, "https://yaml.example.com", cfg.API.BaseURL)
	})
	t.Run("Should let the base-url flag override the YAML file", func(t *testing.T) {
		dir := t.TempDir()
		cfgPath := filepath.Join(dir, "genvid.yaml")
		require.NoError(t, os.WriteFile(cfgPath, []byte("api:\n  base_url: https://yaml.example.com\n"), 0o600))

		cmd := RootCmd()
		require.NoError(t, cmd.ParseFlags([]string{
			"--env-file=", "--config", cfgPath, "--base-url", "https://flag.example.com",
		}))

		require.NoError(t, SetupGlobalConfig(cmd))

		assert.Equal(t, "https://flag.example.com", config.FromContext(cmd.Context()).API.BaseURL)
	})
	t.Run("Should reject an env file outside the working directory", func(t *testing.T) {
		cmd := RootCmd()
		require.NoError(t, cmd.ParseFlags([]string{"--env-file", "/etc/passwd"}))
		require.Error(t, SetupGlobalConfig(cmd))
	})
}

func TestChangedFlags(t *testing.T) {
	t.Run("Should only collect changed flags mapped to configuration", func(t *testing.T) {
		cmd := RootCmd()
		require.NoError(t, cmd.ParseFlags([]string{"--log-level", "debug", "--json"}))
		flags := changedFlags(cmd)
		assert.Equal(t, map[string]any{"log-level": "debug"}, flags)
	})
}
