package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFrom_DefaultsWithoutFileValues(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "app:\n  name: storygen-test\n")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "storygen-test", cfg.App.Name)
	assert.Equal(t, 20, cfg.Pipeline.ChapterCount)
	assert.Equal(t, 1000, cfg.Pipeline.ChapterLength)
	assert.Equal(t, 3, cfg.Pipeline.Rounds)
	assert.InDelta(t, 3.0, cfg.Pipeline.Investment, 1e-9)
	assert.Equal(t, "小说", cfg.Pipeline.FilePrefix)
	assert.Equal(t, "游戏高手", cfg.Pipeline.DefaultTopic)
	assert.Equal(t, 3, cfg.LLM.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.LLM.Retry.InitialInterval)
	assert.False(t, cfg.Pipeline.PersistPartial)
}

func TestLoadFrom_ExpandsPlaceholdersAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
llm:
  default_provider: openai
  providers:
    openai:
      api_key: ${STORYGEN_TEST_API_KEY:missing}
      model: ${STORYGEN_TEST_MODEL:gpt-4o-mini}
      timeout: 90s
pipeline:
  chapter_count: 12
`)
	t.Setenv("STORYGEN_TEST_API_KEY", "sk-test")
	t.Setenv("PIPELINE_CHAPTER_LENGTH", "640")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	provider := cfg.LLM.Providers["openai"]
	assert.Equal(t, "sk-test", provider.APIKey)
	assert.Equal(t, "gpt-4o-mini", provider.Model)
	assert.Equal(t, 90*time.Second, provider.Timeout)
	assert.Equal(t, 12, cfg.Pipeline.ChapterCount)
	assert.Equal(t, 640, cfg.Pipeline.ChapterLength)
}

func TestLoadFrom_MergesEnvironmentFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "pipeline:\n  chapter_count: 12\n  concurrency: 1\n")
	writeConfig(t, dir, "config.staging.yaml", "pipeline:\n  concurrency: 4\n")
	t.Setenv("APP_ENV", "staging")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Pipeline.ChapterCount)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
}

func TestLoadFrom_ExplicitPathMustExist(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadFrom_RejectsInvalidPipeline(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "pipeline:\n  chapter_count: 0\n")

	_, err := LoadFrom(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chapter_count")
}

func TestLoadFrom_RejectsUnknownDefaultProvider(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "llm:\n  default_provider: claude\n")

	_, err := LoadFrom(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claude")
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("STORYGEN_TEST_SET", "value")

	assert.Equal(t, "a=value", expandEnv("a=${STORYGEN_TEST_SET}"))
	assert.Equal(t, "b=fallback", expandEnv("b=${STORYGEN_TEST_UNSET_X:fallback}"))
	assert.Equal(t, "c=", expandEnv("c=${STORYGEN_TEST_UNSET_X:}"))
	assert.Equal(t, "d=${STORYGEN_TEST_UNSET_X}", expandEnv("d=${STORYGEN_TEST_UNSET_X}"))
}

func TestLoadFrom_QueueRequiresLedger(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "features:\n  queue:\n    enabled: true\n")

	_, err := LoadFrom(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "features.queue")
}
