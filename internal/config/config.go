// Package config loads application configuration from file and environment
// and initializes the global logger.
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
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures the global zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// OpenAIConfig holds OpenAI (or Azure OpenAI) API settings.
type OpenAIConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	Model      string `yaml:"model" mapstructure:"model"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Azure      bool   `yaml:"azure" mapstructure:"azure"`
	AzureURL   string `yaml:"azure_url" mapstructure:"azure_url"`
	APIVersion string `yaml:"api_version" mapstructure:"api_version"`
}

// SearchConfig configures the web evidence retriever.
type SearchConfig struct {
	Model      string `yaml:"model" mapstructure:"model"`
	MaxSources int    `yaml:"max_sources" mapstructure:"max_sources"`

	// RPM, when positive, rate-limits search calls per minute. Used for
	// deployments that must respect a provider requests-per-minute
	// ceiling; zero disables the limiter.
	RPM int `yaml:"rpm" mapstructure:"rpm"`
}

// PipelineConfig holds the product tunables of the research pipeline.
type PipelineConfig struct {
	DefaultProvider          string  `yaml:"default_provider" mapstructure:"default_provider"`
	MaxHypothesesPerCategory int     `yaml:"max_hypotheses_per_category" mapstructure:"max_hypotheses_per_category"`
	Workers                  int     `yaml:"workers" mapstructure:"workers"`
	MinVerifiedPct           float64 `yaml:"min_verified_pct" mapstructure:"min_verified_pct"`
	RelevanceFilter          bool    `yaml:"relevance_filter" mapstructure:"relevance_filter"`
	TrustedSteering          bool    `yaml:"trusted_steering" mapstructure:"trusted_steering"`
	ExecutiveSummary         bool    `yaml:"executive_summary" mapstructure:"executive_summary"`
}

// TelemetryConfig configures run-summary retention.
type TelemetryConfig struct {
	// DatabasePath enables the durable SQLite run log when non-empty.
	DatabasePath string `yaml:"database_path" mapstructure:"database_path"`
	RingSize     int    `yaml:"ring_size" mapstructure:"ring_size"`
}

// Load reads configuration from researcher.yaml (working directory or
// /etc/researcher) and RESEARCHER_* environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("researcher")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/researcher")

	// Environment
	v.SetEnvPrefix("RESEARCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("anthropic.model", "claude-3-5-haiku-20241022")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.api_version", "2025-04-01-preview")
	v.SetDefault("search.max_sources", 6)
	v.SetDefault("search.rpm", 0)
	v.SetDefault("pipeline.default_provider", "anthropic")
	v.SetDefault("pipeline.max_hypotheses_per_category", 4)
	v.SetDefault("pipeline.workers", 5)
	v.SetDefault("pipeline.min_verified_pct", 25.0)
	v.SetDefault("pipeline.relevance_filter", true)
	v.SetDefault("pipeline.trusted_steering", true)
	v.SetDefault("pipeline.executive_summary", false)
	v.SetDefault("telemetry.ring_size", 500)

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
