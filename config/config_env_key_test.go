package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeEnvKey_UsesExistingCamelCaseKeys(t *testing.T) {
	existing := map[string]any{
		"routing": map[string]any{
			"defaultSpeedKmh": 15,
			"dataPath":        "./data",
		},
		"planner": map[string]any{
			"timeBudget": "5s",
		},
		"pubsub": map[string]any{
			"topicId":  "",
			"redisUrl": "",
		},
	}

	tests := []struct {
		envKey string
		want   string
	}{
		{envKey: "ROUTING_DEFAULTSPEEDKMH", want: "routing.defaultSpeedKmh"},
		{envKey: "ROUTING_DATAPATH", want: "routing.dataPath"},
		{envKey: "PLANNER_TIMEBUDGET", want: "planner.timeBudget"},
		{envKey: "PUBSUB_TOPICID", want: "pubsub.topicId"},
		{envKey: "PUBSUB_REDISURL", want: "pubsub.redisUrl"},
		{envKey: "NEW_FEATURE_FLAG", want: "new.feature.flag"},
	}

	for _, tt := range tests {
		t.Run(tt.envKey, func(t *testing.T) {
			if got := canonicalizeEnvKey(tt.envKey, existing); got != tt.want {
				t.Fatalf("canonicalizeEnvKey(%q) = %q, want %q", tt.envKey, got, tt.want)
			}
		})
	}
}

func TestLoadWithEnv_OverlaysEnvironment(t *testing.T) {
	dir := t.TempDir()
	content := `
env:
  env: test
  serviceName: tourplanner
http:
  port: 8080
planner:
  maxPasses: 10
  timeBudget: 2s
pubsub:
  provider: noop
  redisUrl: ""
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.yaml"), []byte(content), 0o600))
	t.Chdir(dir)
	t.Setenv("PLANNER_TIMEBUDGET", "750ms")
	t.Setenv("PUBSUB_REDISURL", "redis://localhost:6379/0")

	cfg, err := LoadWithEnv[Config]("test")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	require.NotNil(t, cfg.Planner)
	assert.Equal(t, 10, cfg.Planner.MaxPasses)
	assert.Equal(t, 750*time.Millisecond, cfg.Planner.TimeBudget)
	assert.Equal(t, "redis://localhost:6379/0", cfg.PubSub.RedisURL)
}

func TestLoadWithEnv_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := LoadWithEnv[Config]("absent")
	assert.Error(t, err)
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.Equal(t, ".", cfg.Routing.DataPath)
	assert.Equal(t, 100, cfg.Planner.MaxPasses)
	assert.Equal(t, 5*time.Second, cfg.Planner.TimeBudget)
	assert.Equal(t, "noop", cfg.PubSub.Provider)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}
