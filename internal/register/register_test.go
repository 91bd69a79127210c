package register_test

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/omr/internal/normalize"
	"github.com/MeKo-Tech/omr/internal/register"
	"github.com/MeKo-Tech/omr/internal/template"
	"github.com/MeKo-Tech/omr/internal/testutil"
	"github.com/MeKo-Tech/omr/internal/utils"
)

func binarize(t *testing.T, img image.Image) *normalize.BinaryMask {
	t.Helper()
	g, m, err := normalize.Binarize(img, normalize.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() {
		g.Release()
		m.Release()
	})
	return m
}

func TestRegisterIdealSheet(t *testing.T) {
	cfg := testutil.DefaultSheetConfig()
	mask := binarize(t, testutil.GenerateSheet(cfg))

	res, err := register.Register(mask, cfg.Template, register.DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Len(t, res.Matches, 4)
	for _, m := range res.Matches {
		assert.True(t, m.OK, "fiducial %s not found", m.Name)
		assert.Positive(t, m.Area)
	}
	assert.Less(t, res.Residual, register.DefaultConfig().MaxResidual)

	// The recovered transform must land template points where the generator
	// drew them.
	want := testutil.SheetTransform(cfg)
	for _, p := range []utils.Point{{X: 0.1, Y: 0.1}, {X: 0.5, Y: 0.5}, {X: 0.9, Y: 0.9}} {
		got := res.Transform.Apply(p)
		ideal := want.Apply(p)
		assert.InDelta(t, ideal.X, got.X, 3.0)
		assert.InDelta(t, ideal.Y, got.Y, 3.0)
	}
}

func TestRegisterShiftedSheet(t *testing.T) {
	// Sheet offset inside the frame, as a misaligned photocopy would be.
	tr := utils.AffineTransform{A: 850, B: 0, TX: 10, C: 0, D: 1100, TY: -8}
	cfg := testutil.DefaultSheetConfig()
	cfg.Transform = &tr

	mask := binarize(t, testutil.GenerateSheet(cfg))

	res, err := register.Register(mask, cfg.Template, register.DefaultConfig())
	require.NoError(t, err)

	for _, p := range []utils.Point{{X: 0.2, Y: 0.3}, {X: 0.8, Y: 0.7}} {
		got := res.Transform.Apply(p)
		ideal := tr.Apply(p)
		assert.InDelta(t, ideal.X, got.X, 3.0)
		assert.InDelta(t, ideal.Y, got.Y, 3.0)
	}
}

func TestRegisterBlankPageFails(t *testing.T) {
	blank := image.NewRGBA(image.Rect(0, 0, 850, 1100))
	draw.Draw(blank, blank.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	mask := binarize(t, blank)

	_, err := register.Register(mask, template.Default(), register.DefaultConfig())
	require.Error(t, err)

	var rerr *register.RegistrationError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 0, rerr.Found)
	assert.Len(t, rerr.FailedFiducials, 4)
	assert.Contains(t, rerr.Error(), "not enough fiducials")
}

func TestRegisterPartialFiducials(t *testing.T) {
	// Blot out the bottom of the sheet so only the two top fiducials survive.
	cfg := testutil.DefaultSheetConfig()
	img := testutil.GenerateSheet(cfg)
	draw.Draw(img, image.Rect(0, 900, 850, 1100), &image.Uniform{color.White}, image.Point{}, draw.Src)

	mask := binarize(t, img)

	_, err := register.Register(mask, cfg.Template, register.DefaultConfig())
	require.Error(t, err)

	var rerr *register.RegistrationError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 2, rerr.Found)
	assert.Equal(t, 3, rerr.Needed)
}

func TestRegistrationErrorMessage(t *testing.T) {
	err := &register.RegistrationError{
		Reason:          "fit residual exceeds tolerance",
		Found:           4,
		Needed:          3,
		Residual:        7.31,
		MaxResidual:     5.0,
		FailedFiducials: nil,
	}
	msg := err.Error()
	assert.Contains(t, msg, "registration failed")
	assert.Contains(t, msg, "7.31px")
	assert.Contains(t, msg, "5.00px")
}
