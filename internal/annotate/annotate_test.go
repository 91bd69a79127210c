package annotate_test

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/omr/internal/annotate"
	"github.com/MeKo-Tech/omr/internal/classify"
	"github.com/MeKo-Tech/omr/internal/grid"
	"github.com/MeKo-Tech/omr/internal/register"
	"github.com/MeKo-Tech/omr/internal/testutil"
	"github.com/MeKo-Tech/omr/internal/utils"
)

func sampleGrid(t *testing.T) *grid.Grid {
	t.Helper()
	g, err := grid.Build(utils.ScaleTransform(850, 1100), testutil.DefaultSheetConfig().Template, 5)
	require.NoError(t, err)
	return g
}

func TestRenderCopiesSourceBounds(t *testing.T) {
	src := testutil.GenerateSheet(testutil.DefaultSheetConfig())

	rec := &classify.AnswerRecord{
		Labels: "ABCDE",
		Answers: []classify.Answer{
			{Question: 0, Status: classify.StatusSelected, Option: 1},
			{Question: 1, Status: classify.StatusNoAnswer, Option: -1},
			{Question: 2, Status: classify.StatusAmbiguous, Option: -1, Options: []int{0, 2}},
			{Question: 3, Status: classify.StatusNoAnswer, Option: -1},
			{Question: 4, Status: classify.StatusNoAnswer, Option: -1},
		},
	}
	matches := []register.FiducialMatch{
		{Name: "top-left", Found: utils.Point{X: 25.5, Y: 22}, OK: true},
		{Name: "top-right", OK: false},
	}

	out := annotate.Render(src, sampleGrid(t), rec, "AB12", matches, annotate.DefaultConfig())
	require.NotNil(t, out)
	assert.Equal(t, src.Bounds().Dx(), out.Bounds().Dx())
	assert.Equal(t, src.Bounds().Dy(), out.Bounds().Dy())

	// The overlay draws on a copy; the source stays untouched.
	assert.NotSame(t, src, out)

	// Something got drawn: the output differs from the plain source.
	diff := false
	for y := 0; y < src.Bounds().Dy() && !diff; y++ {
		for x := 0; x < src.Bounds().Dx(); x++ {
			if src.RGBAAt(x, y) != out.RGBAAt(x, y) {
				diff = true
				break
			}
		}
	}
	assert.True(t, diff, "overlay should change pixels")
}

func TestRenderNilInputs(t *testing.T) {
	assert.Nil(t, annotate.Render(nil, sampleGrid(t), nil, "", nil, annotate.DefaultConfig()))

	// Nil grid still returns a plain copy.
	src := image.NewRGBA(image.Rect(0, 0, 10, 10))
	out := annotate.Render(src, nil, nil, "", nil, annotate.DefaultConfig())
	require.NotNil(t, out)
	assert.Equal(t, src.Bounds(), out.Bounds())
}

func TestThumbnail(t *testing.T) {
	cfg := annotate.DefaultConfig()
	cfg.ThumbnailSize = 100

	big := image.NewRGBA(image.Rect(0, 0, 850, 1100))
	small := annotate.Thumbnail(big, cfg)
	assert.LessOrEqual(t, small.Bounds().Dx(), 100)
	assert.LessOrEqual(t, small.Bounds().Dy(), 100)

	// Images already inside the bound pass through unchanged.
	tiny := image.NewRGBA(image.Rect(0, 0, 50, 60))
	assert.Equal(t, tiny.Bounds(), annotate.Thumbnail(tiny, cfg).Bounds())

	// Zero size disables shrinking.
	cfg.ThumbnailSize = 0
	assert.Equal(t, big.Bounds(), annotate.Thumbnail(big, cfg).Bounds())
}
