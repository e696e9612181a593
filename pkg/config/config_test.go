package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, 0.70, cfg.Routing.ConfidenceThreshold)
	assert.Equal(t, 2, cfg.Routing.ClarifyBound)
	assert.Equal(t, 2, cfg.Routing.RetryBound)
	assert.Equal(t, "policy", cfg.Routing.ProductInfoRoute)
	assert.Equal(t, "suspend", cfg.Routing.ClarificationMode)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "switchboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
routing:
  confidence_threshold: 0.85
  clarify_bound: 3
  product_info_route: web
storage:
  type: file
  file_path: /var/lib/switchboard
server:
  port: 9090
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.85, cfg.Routing.ConfidenceThreshold)
	assert.Equal(t, 3, cfg.Routing.ClarifyBound)
	assert.Equal(t, "web", cfg.Routing.ProductInfoRoute)
	assert.Equal(t, "file", cfg.Storage.Type)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Untouched fields keep defaults.
	assert.Equal(t, 2, cfg.Routing.RetryBound)
	assert.Equal(t, "suspend", cfg.Routing.ClarificationMode)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "switchboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routing:\n  clarify_bound: 3\n"), 0644))

	t.Setenv("SWITCHBOARD_CLARIFY_BOUND", "1")
	t.Setenv("SWITCHBOARD_TURN_TIMEOUT", "90s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Routing.ClarifyBound)
	assert.Equal(t, 90*time.Second, cfg.Routing.TurnTimeout)
}

func TestLoad_GeminiKeyFallback(t *testing.T) {
	t.Chdir(t.TempDir()) // avoid picking up a local switchboard.yaml
	t.Setenv("GEMINI_API_KEY", "key-from-gemini-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "key-from-gemini-env", cfg.Model.APIKey)

	// An explicit switchboard key wins over the shared Gemini variable.
	t.Setenv("SWITCHBOARD_API_KEY", "explicit-key")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "explicit-key", cfg.Model.APIKey)
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"threshold above one", func(c *Config) { c.Routing.ConfidenceThreshold = 1.5 }, "confidence_threshold"},
		{"negative clarify bound", func(c *Config) { c.Routing.ClarifyBound = -1 }, "clarify_bound"},
		{"bad product route", func(c *Config) { c.Routing.ProductInfoRoute = "complaint" }, "product_info_route"},
		{"bad clarification mode", func(c *Config) { c.Routing.ClarificationMode = "loop" }, "clarification_mode"},
		{"bad storage type", func(c *Config) { c.Storage.Type = "s3" }, "storage.type"},
		{"redis without address", func(c *Config) { c.Storage.Type = "redis" }, "redis.address"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
