package utils

import (
	"image"
	"image/color"
	"math"
)

// DrawRect draws an axis-aligned rectangle outline into dst.
func DrawRect(dst *image.RGBA, rect image.Rectangle, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	// Top and bottom edges
	for t := range thickness {
		yTop := rect.Min.Y + t
		yBot := rect.Max.Y - 1 - t
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dst.Set(x, yTop, col)
			dst.Set(x, yBot, col)
		}
	}
	// Left and right edges
	for t := range thickness {
		xLeft := rect.Min.X + t
		xRight := rect.Max.X - 1 - t
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			dst.Set(xLeft, y, col)
			dst.Set(xRight, y, col)
		}
	}
}

// FillRect fills an axis-aligned rectangle in dst.
func FillRect(dst *image.RGBA, rect image.Rectangle, col color.Color) {
	rect = rect.Intersect(dst.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dst.Set(x, y, col)
		}
	}
}

// DrawEllipse draws an axis-aligned ellipse outline inscribed in box.
func DrawEllipse(dst *image.RGBA, box Box, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	c := box.Center()
	rx := box.Width() / 2
	ry := box.Height() / 2
	if rx < 1 || ry < 1 {
		return
	}
	// Parametric walk; step chosen so adjacent samples touch at the major
	// axis. Rounded up to a multiple of 4 so the cardinal angles are hit and
	// the extreme pixels always get painted.
	steps := int(2 * math.Pi * math.Max(rx, ry))
	if steps < 16 {
		steps = 16
	}
	steps = ((steps + 3) / 4) * 4
	for i := range steps {
		theta := 2 * math.Pi * float64(i) / float64(steps)
		x := int(math.Round(c.X + rx*math.Cos(theta)))
		y := int(math.Round(c.Y + ry*math.Sin(theta)))
		drawThickPoint(dst, x, y, col, thickness)
	}
}

// DrawCross draws an x-shaped marker centered on p with the given arm length.
func DrawCross(dst *image.RGBA, p Point, arm float64, col color.Color, thickness int) {
	cx := int(math.Round(p.X))
	cy := int(math.Round(p.Y))
	a := int(math.Round(arm))
	drawLine(dst, image.Pt(cx-a, cy-a), image.Pt(cx+a, cy+a), col, thickness)
	drawLine(dst, image.Pt(cx-a, cy+a), image.Pt(cx+a, cy-a), col, thickness)
}

// drawLine draws a line between two points using a simple Bresenham variant.
func drawLine(dst *image.RGBA, a, b image.Point, col color.Color, thickness int) {
	x0, y0 := a.X, a.Y
	x1, y1 := b.X, b.Y
	dx := int(math.Abs(float64(x1 - x0)))
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -int(math.Abs(float64(y1 - y0)))
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		drawThickPoint(dst, x0, y0, col, thickness)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func drawThickPoint(dst *image.RGBA, x, y int, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	r := (thickness - 1) / 2
	for yy := y - r; yy <= y+r; yy++ {
		for xx := x - r; xx <= x+r; xx++ {
			if image.Pt(xx, yy).In(dst.Bounds()) {
				dst.Set(xx, yy, col)
			}
		}
	}
}
