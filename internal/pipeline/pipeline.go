// Package pipeline wires the normalize, register, grid, classify and
// annotate stages into a single per-image run.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/omr/internal/annotate"
	"github.com/MeKo-Tech/omr/internal/classify"
	"github.com/MeKo-Tech/omr/internal/normalize"
	"github.com/MeKo-Tech/omr/internal/register"
	"github.com/MeKo-Tech/omr/internal/template"
)

// Config holds configuration for the reading pipeline and its components.
type Config struct {
	Template  *template.FormTemplate
	Questions int

	Normalize normalize.Config
	Register  register.Config
	Classify  classify.Config
	Annotate  annotate.Config

	// Timeout bounds one image's processing. The fiducial search is the only
	// stage whose cost is not strictly proportional to input size.
	Timeout time.Duration

	Parallel ParallelConfig
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		Template:  template.Default(),
		Questions: 0,
		Normalize: normalize.DefaultConfig(),
		Register:  register.DefaultConfig(),
		Classify:  classify.DefaultConfig(),
		Annotate:  annotate.DefaultConfig(),
		Timeout:   30 * time.Second,
		Parallel:  DefaultParallelConfig(),
	}
}

// Pipeline executes the full read for one scanned sheet at a time. A
// Pipeline is safe for concurrent use; each run keeps all state local.
type Pipeline struct {
	cfg Config
}

// Config returns a copy of the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg Config
	err error
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration at once, carrying component
// settings the individual setters do not cover. A nil template keeps the
// builder's current one.
func (b *Builder) WithConfig(cfg Config) *Builder {
	if cfg.Template == nil {
		cfg.Template = b.cfg.Template
	}
	b.cfg = cfg
	return b
}

// WithTemplate sets the form template directly.
func (b *Builder) WithTemplate(t *template.FormTemplate) *Builder {
	if t != nil {
		b.cfg.Template = t
	}
	return b
}

// WithTemplateName resolves a built-in template by name, or a YAML file when
// path is non-empty. Resolution errors surface from Build.
func (b *Builder) WithTemplateName(name, path string) *Builder {
	t, err := template.Resolve(name, path)
	if err != nil {
		b.err = err
		return b
	}
	b.cfg.Template = t
	return b
}

// WithQuestions sets the caller-declared question count.
func (b *Builder) WithQuestions(n int) *Builder {
	b.cfg.Questions = n
	return b
}

// WithIntensityMode selects the darkness conversion (luma or red).
func (b *Builder) WithIntensityMode(mode string) *Builder {
	if mode != "" {
		b.cfg.Normalize.Mode = mode
	}
	return b
}

// WithThresholdMethod selects the binarization method (fixed or otsu) and,
// for fixed, the threshold value.
func (b *Builder) WithThresholdMethod(method string, threshold float64) *Builder {
	if method != "" {
		b.cfg.Normalize.Method = method
	}
	if threshold > 0 {
		b.cfg.Normalize.Threshold = threshold
	}
	return b
}

// WithFilledThreshold sets the classifier's filled threshold.
func (b *Builder) WithFilledThreshold(t float64) *Builder {
	if t > 0 {
		b.cfg.Classify.FilledThreshold = t
	}
	return b
}

// WithSeparationMargin sets the classifier's ambiguity margin.
func (b *Builder) WithSeparationMargin(m float64) *Builder {
	if m > 0 {
		b.cfg.Classify.SeparationMargin = m
	}
	return b
}

// WithMaxResidual sets the registration residual tolerance in pixels.
func (b *Builder) WithMaxResidual(px float64) *Builder {
	if px > 0 {
		b.cfg.Register.MaxResidual = px
	}
	return b
}

// WithTimeout bounds one image's processing time (0 disables).
func (b *Builder) WithTimeout(d time.Duration) *Builder {
	if d >= 0 {
		b.cfg.Timeout = d
	}
	return b
}

// WithParallel sets worker pool configuration for multi-image runs.
func (b *Builder) WithParallel(cfg ParallelConfig) *Builder {
	b.cfg.Parallel = cfg
	return b
}

// Build validates the configuration and constructs the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.cfg.Template == nil {
		return nil, errors.New("pipeline: no form template configured")
	}
	if err := b.cfg.Template.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if b.cfg.Questions <= 0 {
		return nil, errors.New("pipeline: question count must be positive")
	}
	if err := b.cfg.Normalize.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if err := b.cfg.Classify.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	return &Pipeline{cfg: b.cfg}, nil
}
