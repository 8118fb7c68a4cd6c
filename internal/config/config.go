// Package config loads typed application settings and bootstraps logging.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Sources  SourcesConfig  `yaml:"sources" mapstructure:"sources"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SourcesConfig holds per-source credentials and enablement.
type SourcesConfig struct {
	HackerNews HackerNewsConfig `yaml:"hackernews" mapstructure:"hackernews"`
	GitHub     GitHubConfig     `yaml:"github" mapstructure:"github"`
	Reddit     RedditConfig     `yaml:"reddit" mapstructure:"reddit"`
}

// HackerNewsConfig configures the Hacker News Algolia source.
type HackerNewsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Query   string `yaml:"query" mapstructure:"query"`
	Tags    string `yaml:"tags" mapstructure:"tags"`
	ByDate  bool   `yaml:"by_date" mapstructure:"by_date"`
	Limit   int    `yaml:"limit" mapstructure:"limit"`
}

// GitHubConfig configures the GitHub Issues source.
type GitHubConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Token   string `yaml:"token" mapstructure:"token"`
	Limit   int    `yaml:"limit" mapstructure:"limit"`
}

// RedditConfig configures the Reddit source.
type RedditConfig struct {
	Enabled      bool     `yaml:"enabled" mapstructure:"enabled"`
	ClientID     string   `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string   `yaml:"client_secret" mapstructure:"client_secret"`
	UserAgent    string   `yaml:"user_agent" mapstructure:"user_agent"`
	Subreddits   []string `yaml:"subreddits" mapstructure:"subreddits"`
	Limit        int      `yaml:"limit" mapstructure:"limit"`
}

// PipelineConfig configures orchestrator behavior.
type PipelineConfig struct {
	DiscoverLimit int    `yaml:"discover_limit" mapstructure:"discover_limit"`
	FrequencyNorm int    `yaml:"frequency_norm" mapstructure:"frequency_norm"`
	ArtifactsDir  string `yaml:"artifacts_dir" mapstructure:"artifacts_dir"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SHIPSMITH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "shipsmith.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("pipeline.discover_limit", 10)
	v.SetDefault("pipeline.frequency_norm", 15)
	v.SetDefault("pipeline.artifacts_dir", "artifacts")
	v.SetDefault("sources.hackernews.enabled", true)
	v.SetDefault("sources.hackernews.query", "")
	v.SetDefault("sources.hackernews.tags", "story")
	v.SetDefault("sources.hackernews.by_date", true)
	v.SetDefault("sources.hackernews.limit", 25)
	v.SetDefault("sources.github.enabled", true)
	v.SetDefault("sources.github.token", "")
	v.SetDefault("sources.github.limit", 100)
	v.SetDefault("sources.reddit.enabled", true)
	v.SetDefault("sources.reddit.client_id", "")
	v.SetDefault("sources.reddit.client_secret", "")
	v.SetDefault("sources.reddit.user_agent", "shipsmith/0.1.0")
	v.SetDefault("sources.reddit.subreddits", []string{
		"programming", "learnprogramming", "webdev", "Python", "javascript",
	})
	v.SetDefault("sources.reddit.limit", 100)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
