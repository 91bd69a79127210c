package pipeline_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/omr/internal/pipeline"
	"github.com/MeKo-Tech/omr/internal/template"
)

func TestBuilderDefaultsNeedQuestionCount(t *testing.T) {
	_, err := pipeline.NewBuilder().Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "question count")
}

func TestBuilderBuildsWithQuestions(t *testing.T) {
	pl, err := pipeline.NewBuilder().WithQuestions(63).Build()
	require.NoError(t, err)

	cfg := pl.Config()
	assert.Equal(t, 63, cfg.Questions)
	assert.Equal(t, "answersheet-63", cfg.Template.Name)
	assert.InDelta(t, 0.27, cfg.Classify.FilledThreshold, 1e-12)
	assert.InDelta(t, 0.10, cfg.Classify.SeparationMargin, 1e-12)
}

func TestBuilderOverrides(t *testing.T) {
	pl, err := pipeline.NewBuilder().
		WithQuestions(40).
		WithIntensityMode("luma").
		WithThresholdMethod("fixed", 0.42).
		WithFilledThreshold(0.35).
		WithSeparationMargin(0.15).
		WithMaxResidual(8).
		WithTimeout(5 * time.Second).
		Build()
	require.NoError(t, err)

	cfg := pl.Config()
	assert.Equal(t, "luma", cfg.Normalize.Mode)
	assert.Equal(t, "fixed", cfg.Normalize.Method)
	assert.InDelta(t, 0.42, cfg.Normalize.Threshold, 1e-12)
	assert.InDelta(t, 0.35, cfg.Classify.FilledThreshold, 1e-12)
	assert.InDelta(t, 0.15, cfg.Classify.SeparationMargin, 1e-12)
	assert.InDelta(t, 8.0, cfg.Register.MaxResidual, 1e-12)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestBuilderEmptyOverridesKeepDefaults(t *testing.T) {
	pl, err := pipeline.NewBuilder().
		WithQuestions(10).
		WithIntensityMode("").
		WithThresholdMethod("", 0).
		WithFilledThreshold(0).
		Build()
	require.NoError(t, err)

	def := pipeline.DefaultConfig()
	cfg := pl.Config()
	assert.Equal(t, def.Normalize.Mode, cfg.Normalize.Mode)
	assert.Equal(t, def.Normalize.Method, cfg.Normalize.Method)
	assert.InDelta(t, def.Classify.FilledThreshold, cfg.Classify.FilledThreshold, 1e-12)
}

func TestBuilderWithConfigCarriesAllSettings(t *testing.T) {
	cfg := pipeline.DefaultConfig()
	cfg.Questions = 12
	cfg.Normalize.SigmoidEnabled = false
	cfg.Normalize.SigmoidSteepness = 12
	cfg.Annotate.ThumbnailSize = 123
	cfg.Parallel.MaxWorkers = 2

	pl, err := pipeline.NewBuilder().WithConfig(cfg).Build()
	require.NoError(t, err)

	got := pl.Config()
	assert.Equal(t, 12, got.Questions)
	assert.False(t, got.Normalize.SigmoidEnabled)
	assert.InDelta(t, 12.0, got.Normalize.SigmoidSteepness, 1e-12)
	assert.Equal(t, 123, got.Annotate.ThumbnailSize)
	assert.Equal(t, 2, got.Parallel.MaxWorkers)
}

func TestBuilderWithConfigNilTemplateKeepsDefault(t *testing.T) {
	cfg := pipeline.DefaultConfig()
	cfg.Template = nil
	cfg.Questions = 5

	pl, err := pipeline.NewBuilder().WithConfig(cfg).Build()
	require.NoError(t, err)
	assert.Equal(t, "answersheet-63", pl.Config().Template.Name)
}

func TestBuilderUnknownTemplate(t *testing.T) {
	_, err := pipeline.NewBuilder().
		WithTemplateName("no-such-form", "").
		WithQuestions(10).
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-form")
}

func TestBuilderTemplateFromFile(t *testing.T) {
	custom := template.Default()
	custom.Name = "custom-form"
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, custom.Save(path))

	pl, err := pipeline.NewBuilder().
		WithTemplateName("ignored", path).
		WithQuestions(10).
		Build()
	require.NoError(t, err)
	assert.Equal(t, "custom-form", pl.Config().Template.Name)
}

func TestBuilderInvalidNormalizeConfig(t *testing.T) {
	_, err := pipeline.NewBuilder().
		WithQuestions(10).
		WithIntensityMode("infrared").
		Build()
	assert.Error(t, err)
}

func TestBuilderInvalidTemplate(t *testing.T) {
	broken := template.Default()
	broken.Fiducials = broken.Fiducials[:2]

	_, err := pipeline.NewBuilder().
		WithTemplate(broken).
		WithQuestions(10).
		Build()
	assert.Error(t, err)
}
