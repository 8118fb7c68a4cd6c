package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFromDir(t *testing.T, dir string) *Config {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFromDir(t, t.TempDir())

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "shipsmith.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Pipeline.DiscoverLimit)
	assert.Equal(t, 15, cfg.Pipeline.FrequencyNorm)
	assert.Equal(t, "artifacts", cfg.Pipeline.ArtifactsDir)
	assert.True(t, cfg.Sources.HackerNews.Enabled)
	assert.Equal(t, "story", cfg.Sources.HackerNews.Tags)
	assert.True(t, cfg.Sources.HackerNews.ByDate)
	assert.Empty(t, cfg.Sources.HackerNews.Query)
	assert.Equal(t, "shipsmith/0.1.0", cfg.Sources.Reddit.UserAgent)
	assert.Len(t, cfg.Sources.Reddit.Subreddits, 5)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/shipsmith
sources:
  hackernews:
    query: "cli tooling"
    limit: 50
  github:
    token: ghp_test
pipeline:
  discover_limit: 5
  frequency_norm: 20
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg := loadFromDir(t, dir)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/shipsmith", cfg.Store.DatabaseURL)
	assert.Equal(t, "cli tooling", cfg.Sources.HackerNews.Query)
	assert.Equal(t, 50, cfg.Sources.HackerNews.Limit)
	assert.Equal(t, "ghp_test", cfg.Sources.GitHub.Token)
	assert.Equal(t, 5, cfg.Pipeline.DiscoverLimit)
	assert.Equal(t, 20, cfg.Pipeline.FrequencyNorm)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SHIPSMITH_STORE_DRIVER", "postgres")
	t.Setenv("SHIPSMITH_SOURCES_GITHUB_TOKEN", "ghp_env")

	cfg := loadFromDir(t, t.TempDir())

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "ghp_env", cfg.Sources.GitHub.Token)
}

func TestInitLogger_InvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)
}

func TestInitLogger_Valid(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))
}
