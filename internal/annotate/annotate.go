// Package annotate renders classification overlays onto a copy of the source
// scan for visual QA. The source image is never modified.
package annotate

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/MeKo-Tech/omr/internal/classify"
	"github.com/MeKo-Tech/omr/internal/grid"
	"github.com/MeKo-Tech/omr/internal/register"
	"github.com/MeKo-Tech/omr/internal/utils"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Config holds overlay colors and sizing.
type Config struct {
	SelectedColor   color.RGBA
	UnselectedColor color.RGBA
	AmbiguousColor  color.RGBA
	FiducialColor   color.RGBA
	IDColor         color.RGBA
	Thickness       int
	ThumbnailSize   int // max thumbnail dimension for Thumbnail()
}

// DefaultConfig returns the marker palette used on saved scans.
func DefaultConfig() Config {
	return Config{
		SelectedColor:   color.RGBA{0, 170, 0, 255},
		UnselectedColor: color.RGBA{0, 120, 255, 255},
		AmbiguousColor:  color.RGBA{255, 140, 0, 255},
		FiducialColor:   color.RGBA{220, 0, 0, 255},
		IDColor:         color.RGBA{0, 120, 255, 255},
		Thickness:       2,
		ThumbnailSize:   1200,
	}
}

// Render draws bubble outlines, fiducial markers and the extracted ID onto
// an RGBA copy of img.
func Render(img image.Image, g *grid.Grid, rec *classify.AnswerRecord, id string,
	matches []register.FiducialMatch, cfg Config,
) *image.RGBA {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	if g == nil {
		return dst
	}

	drawQuestions(dst, g, rec, cfg)
	drawFiducials(dst, matches, cfg)
	drawIDBlock(dst, g, id, cfg)

	return dst
}

// Thumbnail returns the annotated image resized to fit the configured
// bounding square, for compact per-student archives.
func Thumbnail(img image.Image, cfg Config) image.Image {
	if cfg.ThumbnailSize <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= cfg.ThumbnailSize && b.Dy() <= cfg.ThumbnailSize {
		return img
	}
	return imaging.Fit(img, cfg.ThumbnailSize, cfg.ThumbnailSize, imaging.Lanczos)
}

func drawQuestions(dst *image.RGBA, g *grid.Grid, rec *classify.AnswerRecord, cfg Config) {
	for q, cells := range g.Questions {
		var answer *classify.Answer
		if rec != nil && q < len(rec.Answers) {
			answer = &rec.Answers[q]
		}
		for o, cell := range cells {
			col := cfg.UnselectedColor
			thickness := 1
			if answer != nil {
				switch {
				case answer.Status == classify.StatusSelected && answer.Option == o:
					col = cfg.SelectedColor
					thickness = cfg.Thickness
				case answer.Status == classify.StatusAmbiguous && containsOption(answer.Options, o):
					col = cfg.AmbiguousColor
					thickness = cfg.Thickness
				}
			}
			utils.DrawEllipse(dst, cell.Region, col, thickness)
		}
	}
}

func drawFiducials(dst *image.RGBA, matches []register.FiducialMatch, cfg Config) {
	for _, m := range matches {
		if !m.OK {
			continue
		}
		utils.DrawCross(dst, m.Found, 6, cfg.FiducialColor, cfg.Thickness)
	}
}

func drawIDBlock(dst *image.RGBA, g *grid.Grid, id string, cfg Config) {
	if len(g.ID) == 0 {
		return
	}
	region := g.IDRegion()
	rect := region.ToRect(dst.Bounds())
	utils.DrawRect(dst, rect, cfg.IDColor, cfg.Thickness)
	if id != "" {
		drawLabel(dst, id, rect.Min.X, rect.Min.Y-4, cfg.IDColor)
	}
}

// drawLabel renders small text above the given baseline position.
func drawLabel(dst *image.RGBA, text string, x, y int, col color.RGBA) {
	if y < basicfont.Face7x13.Metrics().Ascent.Ceil() {
		y = basicfont.Face7x13.Metrics().Ascent.Ceil()
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func containsOption(options []int, o int) bool {
	for _, v := range options {
		if v == o {
			return true
		}
	}
	return false
}
