package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8090
  name: fallback-service
fallback:
  strategy: dynamic_rag
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "dynamic_rag", cfg.Fallback.Strategy)
	assert.Equal(t, 5, cfg.Generation.Retry.MaxAttempts)
	assert.Equal(t, 15*time.Second, cfg.Generation.Retry.InitialWait)
	assert.Equal(t, 4.0, cfg.Generation.Retry.Multiplier)
	assert.Equal(t, 0.6, cfg.Fallback.ConfidenceThreshold)
	assert.Equal(t, []string{"nlu_fallback", "out_of_scope"}, cfg.Fallback.FallbackIntents)
	assert.Equal(t, "memory", cfg.VectorStore.Driver)
	assert.Equal(t, "ask_loan_need", cfg.Dialogue.ResetIntent)
	assert.False(t, cfg.Fallback.Disabled)
}

func TestLoadConfigParsesDurationsAndProfiles(t *testing.T) {
	path := writeConfig(t, `
generation:
  attemptTimeout: 5s
  retry:
    maxAttempts: 3
    initialWait: 250ms
    multiplier: 2
fallback:
  strategies:
    static_rag:
      k: 4
      perDocChars: 120
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Generation.AttemptTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Generation.Retry.InitialWait)
	assert.Equal(t, 4, cfg.Fallback.Strategies["static_rag"].K)
	assert.Equal(t, 120, cfg.Fallback.Strategies["static_rag"].PerDocChars)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
dashscope:
  apiKey: from-file
fallback:
  strategy: static_rag
`)
	t.Setenv("FINASSIST_DASHSCOPE_APIKEY", "from-env")
	t.Setenv("FINASSIST_FALLBACK_STRATEGY", "llm_only")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.DashScope.APIKey)
	assert.Equal(t, "llm_only", cfg.Fallback.Strategy)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"strategy":     "fallback:\n  strategy: telepathy\n",
		"vector store": "vectorStore:\n  driver: pgvector\n",
		"backend":      "generation:\n  backend: mystery\n",
		"retry":        "generation:\n  retry:\n    multiplier: 0.5\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
