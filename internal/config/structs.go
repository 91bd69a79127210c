//nolint:lll
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/MeKo-Tech/omr/internal/annotate"
	"github.com/MeKo-Tech/omr/internal/batch"
	"github.com/MeKo-Tech/omr/internal/classify"
	"github.com/MeKo-Tech/omr/internal/normalize"
	"github.com/MeKo-Tech/omr/internal/pipeline"
	"github.com/MeKo-Tech/omr/internal/register"
	"github.com/MeKo-Tech/omr/internal/template"
)

// Config represents the complete configuration for the omr application.
// It includes settings for all commands (scan, batch, pdf, serve) and
// supports loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Template selection
	Template TemplateConfig `mapstructure:"template" yaml:"template" json:"template"`

	// Pipeline configuration
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`
}

// TemplateConfig selects the form layout.
type TemplateConfig struct {
	Name string `mapstructure:"name" yaml:"name" json:"name"`
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

// PipelineConfig contains scan pipeline settings.
type PipelineConfig struct {
	// Question count on the sheet
	Questions int `mapstructure:"questions" yaml:"questions" json:"questions"`

	// Intensity and binarization settings
	Normalize NormalizeConfig `mapstructure:"normalize" yaml:"normalize" json:"normalize"`

	// Fiducial registration settings
	Register RegisterConfig `mapstructure:"register" yaml:"register" json:"register"`

	// Bubble classification settings
	Classify ClassifyConfig `mapstructure:"classify" yaml:"classify" json:"classify"`

	// Per-sheet timeout in seconds
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`

	// Parallel processing
	Parallel ParallelConfig `mapstructure:"parallel" yaml:"parallel" json:"parallel"`
}

// NormalizeConfig contains intensity conversion settings.
type NormalizeConfig struct {
	Mode             string  `mapstructure:"mode" yaml:"mode" json:"mode"`
	Method           string  `mapstructure:"method" yaml:"method" json:"method"`
	Threshold        float64 `mapstructure:"threshold" yaml:"threshold" json:"threshold"`
	SigmoidEnabled   bool    `mapstructure:"sigmoid_enabled" yaml:"sigmoid_enabled" json:"sigmoid_enabled"`
	SigmoidCenter    float64 `mapstructure:"sigmoid_center" yaml:"sigmoid_center" json:"sigmoid_center"`
	SigmoidSteepness float64 `mapstructure:"sigmoid_steepness" yaml:"sigmoid_steepness" json:"sigmoid_steepness"`
}

// RegisterConfig contains fiducial registration settings.
type RegisterConfig struct {
	MaxResidual  float64 `mapstructure:"max_residual" yaml:"max_residual" json:"max_residual"`
	MinFiducials int     `mapstructure:"min_fiducials" yaml:"min_fiducials" json:"min_fiducials"`
}

// ClassifyConfig contains bubble classification settings.
type ClassifyConfig struct {
	FilledThreshold  float64 `mapstructure:"filled_threshold" yaml:"filled_threshold" json:"filled_threshold"`
	SeparationMargin float64 `mapstructure:"separation_margin" yaml:"separation_margin" json:"separation_margin"`
}

// ParallelConfig contains parallel processing settings.
type ParallelConfig struct {
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers" json:"max_workers"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format        string `mapstructure:"format" yaml:"format" json:"format"`
	File          string `mapstructure:"file" yaml:"file" json:"file"`
	AnnotatedDir  string `mapstructure:"annotated_dir" yaml:"annotated_dir" json:"annotated_dir"`
	ThumbnailSize int    `mapstructure:"thumbnail_size" yaml:"thumbnail_size" json:"thumbnail_size"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	OverlayEnabled  bool   `mapstructure:"overlay_enabled" yaml:"overlay_enabled" json:"overlay_enabled"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	Recursive       bool `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
	SaveThumbnails  bool `mapstructure:"save_thumbnails" yaml:"save_thumbnails" json:"save_thumbnails"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	norm := normalize.DefaultConfig()
	reg := register.DefaultConfig()
	cls := classify.DefaultConfig()
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Template: TemplateConfig{
			Name: "answersheet-63",
		},
		Pipeline: PipelineConfig{
			Questions: 63,
			Normalize: NormalizeConfig{
				Mode:             norm.Mode,
				Method:           norm.Method,
				Threshold:        norm.Threshold,
				SigmoidEnabled:   norm.SigmoidEnabled,
				SigmoidCenter:    norm.SigmoidCenter,
				SigmoidSteepness: norm.SigmoidSteepness,
			},
			Register: RegisterConfig{
				MaxResidual:  reg.MaxResidual,
				MinFiducials: reg.MinFiducials,
			},
			Classify: ClassifyConfig{
				FilledThreshold:  cls.FilledThreshold,
				SeparationMargin: cls.SeparationMargin,
			},
			TimeoutSec: 30,
			Parallel: ParallelConfig{
				MaxWorkers: 0,
			},
		},
		Output: OutputConfig{
			Format:        "text",
			ThumbnailSize: annotate.DefaultConfig().ThumbnailSize,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			OverlayEnabled:  true,
		},
		Batch: BatchConfig{
			Workers:         4,
			Recursive:       false,
			ContinueOnError: true,
			SaveThumbnails:  true,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json", "csv"}
	if c.Output.Format != "" && !contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	validModes := []string{normalize.ModeLuma, normalize.ModeRed}
	if !contains(validModes, c.Pipeline.Normalize.Mode) {
		return fmt.Errorf("invalid intensity mode: %s (must be one of: %s)", c.Pipeline.Normalize.Mode, strings.Join(validModes, ", "))
	}

	validMethods := []string{normalize.MethodFixed, normalize.MethodOtsu}
	if !contains(validMethods, c.Pipeline.Normalize.Method) {
		return fmt.Errorf("invalid threshold method: %s (must be one of: %s)", c.Pipeline.Normalize.Method, strings.Join(validMethods, ", "))
	}

	if err := validateThreshold(c.Pipeline.Normalize.Threshold, "normalize.threshold"); err != nil {
		return err
	}
	if err := validateThreshold(c.Pipeline.Classify.FilledThreshold, "classify.filled_threshold"); err != nil {
		return err
	}
	if err := validateThreshold(c.Pipeline.Classify.SeparationMargin, "classify.separation_margin"); err != nil {
		return err
	}

	if c.Pipeline.Questions <= 0 {
		return fmt.Errorf("invalid question count: %d (must be positive)", c.Pipeline.Questions)
	}
	if c.Pipeline.Register.MaxResidual <= 0 {
		return fmt.Errorf("invalid max residual: %.2f (must be positive)", c.Pipeline.Register.MaxResidual)
	}
	if c.Pipeline.Register.MinFiducials < 3 {
		return fmt.Errorf("invalid min fiducials: %d (need at least 3 for an affine fit)", c.Pipeline.Register.MinFiducials)
	}
	if c.Pipeline.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Pipeline.TimeoutSec)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid server timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}

	return nil
}

// ToPipelineConfig converts the config to the internal pipeline configuration format.
func (c *Config) ToPipelineConfig() (pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()

	tpl, err := template.Resolve(c.Template.Name, c.Template.Path)
	if err != nil {
		return cfg, err
	}
	cfg.Template = tpl

	cfg.Questions = c.Pipeline.Questions
	cfg.Timeout = time.Duration(c.Pipeline.TimeoutSec) * time.Second

	cfg.Normalize.Mode = c.Pipeline.Normalize.Mode
	cfg.Normalize.Method = c.Pipeline.Normalize.Method
	cfg.Normalize.Threshold = c.Pipeline.Normalize.Threshold
	cfg.Normalize.SigmoidEnabled = c.Pipeline.Normalize.SigmoidEnabled
	cfg.Normalize.SigmoidCenter = c.Pipeline.Normalize.SigmoidCenter
	cfg.Normalize.SigmoidSteepness = c.Pipeline.Normalize.SigmoidSteepness

	cfg.Register.MaxResidual = c.Pipeline.Register.MaxResidual
	cfg.Register.MinFiducials = c.Pipeline.Register.MinFiducials

	cfg.Classify.FilledThreshold = c.Pipeline.Classify.FilledThreshold
	cfg.Classify.SeparationMargin = c.Pipeline.Classify.SeparationMargin

	cfg.Annotate.ThumbnailSize = c.Output.ThumbnailSize
	cfg.Parallel.MaxWorkers = c.Pipeline.Parallel.MaxWorkers

	return cfg, nil
}

// ToBatchConfig converts the config to the batch processing configuration.
func (c *Config) ToBatchConfig() batch.Config {
	cfg := batch.DefaultConfig()
	cfg.Workers = c.Batch.Workers
	cfg.Format = c.Output.Format
	cfg.OutputDir = c.Output.AnnotatedDir
	cfg.OutputFile = c.Output.File
	cfg.Recursive = c.Batch.Recursive
	cfg.ContinueOnError = c.Batch.ContinueOnError
	cfg.SaveThumbnails = c.Batch.SaveThumbnails
	return cfg
}

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}
