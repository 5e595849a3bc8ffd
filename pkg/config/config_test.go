package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSource struct {
	data       map[string]any
	sourceType SourceType
}

func (m *mapSource) Load() (map[string]any, error) { return m.data, nil }

func (m *mapSource) Type() SourceType { return m.sourceType }

func TestLoader_Load(t *testing.T) {
	t.Run("Should load defaults when no sources provided", func(t *testing.T) {
		cfg, err := NewService().Load(t.Context())
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
		assert.Equal(t, "sse", cfg.Transport.Kind)
		assert.Equal(t, 1500*time.Millisecond, cfg.Transport.ReconnectDelay)
		assert.Equal(t, 25*time.Second, cfg.Transport.PingInterval)
		assert.Equal(t, 3*time.Second, cfg.Poll.Interval)
		assert.Equal(t, "constant", cfg.Transport.Backoff)
	})

	t.Run("Should apply YAML then CLI in precedence order", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "genvid.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://yaml.example.com
transport:
  kind: socket
  reconnect_delay: 2s
poll:
  interval: null
`), 0o600))
		svc := NewService()

		cfg, err := svc.Load(
			t.Context(),
			NewYAMLProvider(path),
			NewCLIProvider(map[string]any{"base-url": "https://cli.example.com", "unknown": true}),
		)
		require.NoError(t, err)
		assert.Equal(t, "https://cli.example.com", cfg.API.BaseURL)
		assert.Equal(t, "socket", cfg.Transport.Kind)
		assert.Equal(t, 2*time.Second, cfg.Transport.ReconnectDelay)
		assert.Equal(t, 3*time.Second, cfg.Poll.Interval)
		assert.Equal(t, SourceCLI, svc.GetSource("api.base_url"))
		assert.Equal(t, SourceYAML, svc.GetSource("transport.kind"))
		assert.Equal(t, SourceDefault, svc.GetSource("poll.interval"))
	})

	t.Run("Should let declared environment variables win", func(t *testing.T) {
		t.Setenv("GENVID_TRANSPORT", "poll")
		t.Setenv("GENVID_POLL_INTERVAL", "750ms")
		t.Setenv("GENVID_TOKEN", "secret")
		t.Setenv("GENVID_UNDECLARED", "ignored")
		svc := NewService()

		cfg, err := svc.Load(t.Context(), &mapSource{
			data:       map[string]any{"transport": map[string]any{"kind": "socket"}},
			sourceType: SourceYAML,
		})
		require.NoError(t, err)
		assert.Equal(t, "poll", cfg.Transport.Kind)
		assert.Equal(t, 750*time.Millisecond, cfg.Poll.Interval)
		assert.Equal(t, "secret", cfg.API.Token.Value())
		assert.Equal(t, SourceEnv, svc.GetSource("transport.kind"))
	})

	t.Run("Should let CLI flags override the environment", func(t *testing.T) {
		t.Setenv("GENVID_TRANSPORT", "poll")
		svc := NewService()

		cfg, err := svc.Load(t.Context(), NewCLIProvider(map[string]any{"transport": "socket"}))
		require.NoError(t, err)
		assert.Equal(t, "socket", cfg.Transport.Kind)
		assert.Equal(t, SourceCLI, svc.GetSource("transport.kind"))
	})

	t.Run("Should ignore a missing YAML file", func(t *testing.T) {
		_, err := NewService().Load(t.Context(), NewYAMLProvider(filepath.Join(t.TempDir(), "absent.yaml")))
		assert.NoError(t, err)
	})

	t.Run("Should reject invalid values", func(t *testing.T) {
		cases := map[string]map[string]any{
			"transport kind": {"transport": map[string]any{"kind": "carrier-pigeon"}},
			"base url":       {"api": map[string]any{"base_url": "localhost:8000"}},
			"backoff":        {"transport": map[string]any{"backoff": "random"}},
			"delay order":    {"transport": map[string]any{"reconnect_delay": "1m", "max_reconnect_delay": "1s"}},
			"metrics addr":   {"monitoring": map[string]any{"enabled": true, "addr": ""}},
		}
		for name, data := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := NewService().Load(t.Context(), &mapSource{data: data, sourceType: SourceCLI})
				assert.Error(t, err)
			})
		}
	})
}

func TestContext(t *testing.T) {
	t.Run("Should fall back to defaults", func(t *testing.T) {
		assert.Equal(t, Default(), FromContext(context.Background()))
	})

	t.Run("Should return the stored configuration", func(t *testing.T) {
		cfg := Default()
		cfg.Transport.Kind = "poll"
		assert.Same(t, cfg, FromContext(ContextWithConfig(t.Context(), cfg)))
	})
}

func TestKeys(t *testing.T) {
	t.Run("Should list every leaf sorted by path", func(t *testing.T) {
		all := Keys()
		require.NotEmpty(t, all)
		for i := 1; i < len(all); i++ {
			assert.Less(t, all[i-1].Path, all[i].Path)
		}
		k, ok := LookupKey("transport.kind")
		require.True(t, ok)
		assert.Equal(t, "GENVID_TRANSPORT", k.EnvVar)
		_, ok = LookupKey("transport")
		assert.False(t, ok)
	})

	t.Run("Should map env vars to key paths", func(t *testing.T) {
		paths := envPaths()
		assert.Equal(t, "api.base_url", paths["GENVID_API_BASE_URL"])
		assert.Equal(t, "poll.interval", paths["GENVID_POLL_INTERVAL"])
	})

	t.Run("Should mark SensitiveString keys and redact their values", func(t *testing.T) {
		cfg := Default()
		cfg.API.Token = "tok-123"
		token, ok := LookupKey("api.token")
		require.True(t, ok)
		assert.True(t, token.Sensitive)
		assert.Equal(t, "[REDACTED]", token.Value(cfg))
		redis, _ := LookupKey("notify.redis_url")
		assert.True(t, redis.Sensitive)
		assert.Equal(t, "", redis.Value(cfg))
		baseURL, _ := LookupKey("api.base_url")
		assert.False(t, baseURL.Sensitive)
		assert.Equal(t, "http://localhost:8000", baseURL.Value(cfg))
	})

	t.Run("Should format durations and numbers", func(t *testing.T) {
		cfg := Default()
		interval, _ := LookupKey("poll.interval")
		assert.Equal(t, "3s", interval.Value(cfg))
		retries, _ := LookupKey("api.retry_count")
		assert.Equal(t, "3", retries.Value(cfg))
	})
}

func TestSensitiveString(t *testing.T) {
	t.Run("Should redact non-empty values in text and JSON", func(t *testing.T) {
		s := SensitiveString("tok-123")
		assert.Equal(t, "[REDACTED]", s.String())
		assert.Equal(t, "tok-123", s.Value())
		data, err := json.Marshal(struct {
			Token SensitiveString `json:"token"`
		}{Token: s})
		require.NoError(t, err)
		assert.JSONEq(t, `{"token":"[REDACTED]"}`, string(data))
	})

	t.Run("Should keep empty values empty", func(t *testing.T) {
		assert.Equal(t, "", SensitiveString("").String())
	})
}
