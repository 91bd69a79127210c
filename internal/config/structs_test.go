package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "answersheet-63", cfg.Template.Name)
	assert.Equal(t, 63, cfg.Pipeline.Questions)
	assert.InDelta(t, 0.27, cfg.Pipeline.Classify.FilledThreshold, 1e-12)
	assert.InDelta(t, 0.10, cfg.Pipeline.Classify.SeparationMargin, 1e-12)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }},
		{"bad output format", func(c *Config) { c.Output.Format = "xml" }},
		{"bad intensity mode", func(c *Config) { c.Pipeline.Normalize.Mode = "green" }},
		{"bad threshold method", func(c *Config) { c.Pipeline.Normalize.Method = "adaptive" }},
		{"threshold out of range", func(c *Config) { c.Pipeline.Normalize.Threshold = 1.5 }},
		{"filled threshold out of range", func(c *Config) { c.Pipeline.Classify.FilledThreshold = -0.2 }},
		{"zero questions", func(c *Config) { c.Pipeline.Questions = 0 }},
		{"negative max residual", func(c *Config) { c.Pipeline.Register.MaxResidual = -1 }},
		{"too few fiducials", func(c *Config) { c.Pipeline.Register.MinFiducials = 2 }},
		{"zero timeout", func(c *Config) { c.Pipeline.TimeoutSec = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"zero upload limit", func(c *Config) { c.Server.MaxUploadMB = 0 }},
		{"zero batch workers", func(c *Config) { c.Batch.Workers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateEmptyOutputFormatAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Format = ""
	assert.NoError(t, cfg.Validate())
}

func TestToPipelineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.Questions = 40
	cfg.Pipeline.TimeoutSec = 15
	cfg.Pipeline.Normalize.Mode = "luma"
	cfg.Pipeline.Classify.FilledThreshold = 0.35
	cfg.Output.ThumbnailSize = 640
	cfg.Pipeline.Parallel.MaxWorkers = 3

	pCfg, err := cfg.ToPipelineConfig()
	require.NoError(t, err)

	assert.Equal(t, 40, pCfg.Questions)
	assert.Equal(t, 15*time.Second, pCfg.Timeout)
	assert.Equal(t, "luma", pCfg.Normalize.Mode)
	assert.InDelta(t, 0.35, pCfg.Classify.FilledThreshold, 1e-12)
	assert.Equal(t, 640, pCfg.Annotate.ThumbnailSize)
	assert.Equal(t, 3, pCfg.Parallel.MaxWorkers)

	require.NotNil(t, pCfg.Template)
	assert.Equal(t, "answersheet-63", pCfg.Template.Name)
}

func TestToPipelineConfigUnknownTemplate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Template.Name = "no-such-form"

	_, err := cfg.ToPipelineConfig()
	assert.Error(t, err)
}

func TestToBatchConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Batch.Workers = 7
	cfg.Batch.Recursive = true
	cfg.Batch.ContinueOnError = false
	cfg.Output.Format = "csv"
	cfg.Output.File = "out.csv"
	cfg.Output.AnnotatedDir = "review"

	bCfg := cfg.ToBatchConfig()
	assert.Equal(t, 7, bCfg.Workers)
	assert.True(t, bCfg.Recursive)
	assert.False(t, bCfg.ContinueOnError)
	assert.Equal(t, "csv", bCfg.Format)
	assert.Equal(t, "out.csv", bCfg.OutputFile)
	assert.Equal(t, "review", bCfg.OutputDir)
}
