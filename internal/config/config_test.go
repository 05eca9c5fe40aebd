package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/card-purpose/internal/common"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	Prepare(v)
	if yaml != "" {
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	}
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper(t, ""))
	require.NoError(t, err)

	assert.InDelta(t, 0.85, cfg.Fuzzy.Threshold, 1e-9)
	assert.InDelta(t, 0.5, cfg.Fuzzy.EditWeight, 1e-9)
	assert.Equal(t, 3, cfg.Fuzzy.NGramSize)
	assert.InDelta(t, 0.90, cfg.Review.High, 1e-9)
	assert.InDelta(t, 0.50, cfg.Review.Low, 1e-9)
	assert.Equal(t, []string{"기타"}, cfg.Review.ForceReviewCategories)
	assert.Equal(t, uint64(50), cfg.Feedback.BatchSize)
	assert.Equal(t, 4, cfg.Engine.ParallelWorkers)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, filepath.IsAbs(cfg.Database.Path) || strings.HasPrefix(cfg.Database.Path, "~"))
}

func TestLoad_FileOverrides(t *testing.T) {
	cfg, err := Load(newViper(t, `
fuzzy:
  threshold: 0.9
review:
  high: 0.95
  low: 0.6
  force_review_categories: ["기타", "접대비"]
llm:
  provider: gemini
  timeout: 5s
feedback:
  batch_size: 20
`))
	require.NoError(t, err)

	assert.InDelta(t, 0.9, cfg.FuzzyConfig().Threshold, 1e-9)
	th := cfg.Thresholds()
	assert.InDelta(t, 0.95, th.High, 1e-9)
	assert.InDelta(t, 0.6, th.Low, 1e-9)
	assert.Equal(t, []string{"기타", "접대비"}, th.ForceReviewCategories)
	assert.Equal(t, "gemini", cfg.LLMConfig().Provider)
	assert.Equal(t, 5*time.Second, cfg.LLMConfig().Timeout)
	assert.Equal(t, uint64(20), cfg.FeedbackConfig().BatchSize)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PURPOSE_ENGINE_PARALLEL_WORKERS", "8")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load(newViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.EngineConfig().ParallelWorkers)
	assert.Equal(t, "sk-test", cfg.LLMConfig().APIKey)
}

func TestLLMConfig_KeyFollowsProvider(t *testing.T) {
	cfg := &Config{LLM: LLMConfig{Provider: "gemini", AnthropicKey: "a", GeminiKey: "g"}}
	assert.Equal(t, "g", cfg.LLMConfig().APIKey)

	cfg.LLM.Provider = "anthropic"
	assert.Equal(t, "a", cfg.LLMConfig().APIKey)

	cfg.LLM.APIKey = "explicit"
	assert.Equal(t, "explicit", cfg.LLMConfig().APIKey)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"low above high", "review:\n  high: 0.5\n  low: 0.9\n"},
		{"zero batch", "feedback:\n  batch_size: 0\n"},
		{"bad level", "logging:\n  level: loud\n"},
		{"bad fuzzy threshold", "fuzzy:\n  threshold: 1.5\n"},
		{"unknown few-shot strategy", "llm:\n  few_shot_strategy: divers\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(newViper(t, tt.yaml))
			require.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadEnv(filepath.Join(dir, "missing.env")))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("PURPOSE_TEST_LOADENV=yes\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("PURPOSE_TEST_LOADENV") })

	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "yes", os.Getenv("PURPOSE_TEST_LOADENV"))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("PURPOSE_TEST_DIR", "/data")

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "x/y.db"), ExpandPath("~/x/y.db"))
	assert.Equal(t, "/data/ref.db", ExpandPath("$PURPOSE_TEST_DIR/ref.db"))
	assert.Equal(t, "/abs/ref.db", ExpandPath("/abs/ref.db"))
}

func TestEnsureParentDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "ref.db")
	require.NoError(t, EnsureParentDir(path))
	info, err := os.Stat(filepath.Join(dir, "a", "b"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	require.NoError(t, EnsureParentDir(":memory:"))
}
