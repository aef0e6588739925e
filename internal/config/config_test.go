package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "anthropic", cfg.Pipeline.DefaultProvider)
	assert.Equal(t, 4, cfg.Pipeline.MaxHypothesesPerCategory)
	assert.Equal(t, 5, cfg.Pipeline.Workers)
	assert.InDelta(t, 25.0, cfg.Pipeline.MinVerifiedPct, 1e-9)
	assert.True(t, cfg.Pipeline.RelevanceFilter)
	assert.Equal(t, 6, cfg.Search.MaxSources)
	assert.Equal(t, 0, cfg.Search.RPM)
	assert.Equal(t, "claude-3-5-haiku-20241022", cfg.Anthropic.Model)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, 500, cfg.Telemetry.RingSize)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RESEARCHER_PIPELINE_WORKERS", "2")
	t.Setenv("RESEARCHER_SEARCH_MAX_SOURCES", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Pipeline.Workers)
	assert.Equal(t, 3, cfg.Search.MaxSources)
}

func TestInitLoggerRejectsBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	require.Error(t, err)
}
