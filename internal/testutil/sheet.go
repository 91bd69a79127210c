// Package testutil generates synthetic answer-sheet scans for tests: a
// white page with fiducial marks and bubbles filled to controlled darkness,
// optionally under a known affine distortion.
package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"github.com/MeKo-Tech/omr/internal/template"
	"github.com/MeKo-Tech/omr/internal/utils"
)

// CellFill identifies one bubble and how darkly it is marked (0..1 area
// fraction).
type CellFill struct {
	Question int
	Option   int
	Score    float64
}

// SheetConfig describes one synthetic scan.
type SheetConfig struct {
	Width    int
	Height   int
	Template *template.FormTemplate

	// Transform maps template space to pixel space. The zero value scales
	// template space to the full image, the unskewed ideal.
	Transform *utils.AffineTransform

	Fills      []CellFill
	ID         string // encoded into the ID block
	FormNumber int    // 1-based; 0 leaves the row empty
}

// DefaultSheetConfig returns a letter-ish 100dpi blank sheet config.
func DefaultSheetConfig() SheetConfig {
	return SheetConfig{
		Width:    850,
		Height:   1100,
		Template: template.Default(),
	}
}

// SheetTransform returns the effective template-to-pixel transform for cfg.
func SheetTransform(cfg SheetConfig) utils.AffineTransform {
	if cfg.Transform != nil {
		return *cfg.Transform
	}
	return utils.ScaleTransform(float64(cfg.Width), float64(cfg.Height))
}

// GenerateSheet renders the synthetic scan.
func GenerateSheet(cfg SheetConfig) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	tpl := cfg.Template
	if tpl == nil {
		tpl = template.Default()
	}
	t := SheetTransform(cfg)

	drawFiducials(img, tpl, t)

	rx := tpl.BubbleRadiusX * math.Hypot(t.A, t.C)
	ry := tpl.BubbleRadiusY * math.Hypot(t.B, t.D)

	for _, f := range cfg.Fills {
		center := t.Apply(tpl.QuestionCenter(f.Question, f.Option))
		fillBubble(img, center, rx, ry, f.Score)
	}

	encodeID(img, tpl, t, rx, ry, cfg.ID)

	if cfg.FormNumber > 0 && cfg.FormNumber <= tpl.FormNumber.Options {
		center := t.Apply(tpl.FormNumberCenter(cfg.FormNumber - 1))
		fillBubble(img, center, rx, ry, 0.9)
	}

	return img
}

// drawFiducials renders each fiducial as a solid black square of its nominal
// diameter.
func drawFiducials(img *image.RGBA, tpl *template.FormTemplate, t utils.AffineTransform) {
	for _, f := range tpl.Fiducials {
		center := t.Apply(f.Position())
		d := f.Diameter
		if d <= 0 {
			d = 0.012
		}
		half := d * math.Hypot(t.A, t.C) / 2
		box := utils.BoxAround(center, half, half)
		utils.FillRect(img, box.ToRect(img.Bounds()), color.Black)
	}
}

// fillBubble blackens the central fraction of the bubble region so the
// binarized dark fraction approximates score.
func fillBubble(img *image.RGBA, center utils.Point, rx, ry, score float64) {
	if score <= 0 {
		return
	}
	if score > 1 {
		score = 1
	}
	scale := math.Sqrt(score)
	box := utils.BoxAround(center, rx*scale, ry*scale)
	utils.FillRect(img, box.ToRect(img.Bounds()), color.Black)
}

// encodeID marks the ID block cells spelling out id. Space leaves a column
// blank; unknown characters are skipped.
func encodeID(img *image.RGBA, tpl *template.FormTemplate, t utils.AffineTransform, rx, ry float64, id string) {
	for i, ch := range id {
		if i >= tpl.ID.Chars || ch == ' ' {
			continue
		}
		row := strings.IndexRune(template.IDAlphabet, ch)
		if row < 0 {
			continue
		}
		center := t.Apply(tpl.IDCellCenter(i, row))
		fillBubble(img, center, rx, ry, 0.9)
	}
}
