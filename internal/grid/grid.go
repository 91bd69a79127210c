// Package grid turns a registration transform plus a form template into
// pixel-space bounding regions for every bubble on the sheet.
package grid

import (
	"math"

	"github.com/MeKo-Tech/omr/internal/template"
	"github.com/MeKo-Tech/omr/internal/utils"
)

// BubbleCell is one markable region, identified by its (question, option)
// pair, or (char, row) for ID cells.
type BubbleCell struct {
	Question int         `json:"question"` // char index for ID cells
	Option   int         `json:"option"`   // row index for ID cells
	Center   utils.Point `json:"center"`
	Region   utils.Box   `json:"region"`
}

// Grid is the full set of pixel-space bubble regions for one registered scan.
type Grid struct {
	Questions  [][]BubbleCell // [question][option]
	ID         [][]BubbleCell // [char][row]
	FormNumber []BubbleCell
	RadiusX    float64 // pixel half-extent of a bubble
	RadiusY    float64
}

// Build applies the transform to every template bubble center. The transform
// and template always produce a full grid; the only failure mode is a caller
// question count the template cannot hold.
func Build(t utils.AffineTransform, tpl *template.FormTemplate, questionCount int) (*Grid, error) {
	if questionCount <= 0 || questionCount > tpl.Capacity() {
		return nil, &LayoutMismatchError{
			Template:  tpl.Name,
			Requested: questionCount,
			Capacity:  tpl.Capacity(),
		}
	}

	// Bubble radii scale with the transform's column norms.
	rx := tpl.BubbleRadiusX * math.Hypot(t.A, t.C)
	ry := tpl.BubbleRadiusY * math.Hypot(t.B, t.D)

	g := &Grid{RadiusX: rx, RadiusY: ry}

	options := tpl.Options()
	g.Questions = make([][]BubbleCell, questionCount)
	for q := range questionCount {
		row := make([]BubbleCell, options)
		for o := range options {
			c := t.Apply(tpl.QuestionCenter(q, o))
			row[o] = BubbleCell{Question: q, Option: o, Center: c, Region: utils.BoxAround(c, rx, ry)}
		}
		g.Questions[q] = row
	}

	if tpl.ID.Chars > 0 {
		g.ID = make([][]BubbleCell, tpl.ID.Chars)
		for ch := range tpl.ID.Chars {
			col := make([]BubbleCell, tpl.ID.Rows)
			for r := range tpl.ID.Rows {
				c := t.Apply(tpl.IDCellCenter(ch, r))
				col[r] = BubbleCell{Question: ch, Option: r, Center: c, Region: utils.BoxAround(c, rx, ry)}
			}
			g.ID[ch] = col
		}
	}

	if tpl.FormNumber.Options > 0 {
		g.FormNumber = make([]BubbleCell, tpl.FormNumber.Options)
		for o := range tpl.FormNumber.Options {
			c := t.Apply(tpl.FormNumberCenter(o))
			g.FormNumber[o] = BubbleCell{Question: 0, Option: o, Center: c, Region: utils.BoxAround(c, rx, ry)}
		}
	}

	return g, nil
}

// IDRegion returns the pixel bounding box of the whole ID block.
func (g *Grid) IDRegion() utils.Box {
	var pts []utils.Point
	for _, col := range g.ID {
		for _, cell := range col {
			pts = append(pts, cell.Center)
		}
	}
	return utils.BoundingBox(pts).Expand(math.Max(g.RadiusX, g.RadiusY) * 2)
}
