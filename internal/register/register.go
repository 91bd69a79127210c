// Package register locates a form's fiducial marks in a binarized scan and
// derives the affine transform from template space to pixel space.
package register

import (
	"image"
	"log/slog"
	"math"

	"github.com/MeKo-Tech/omr/internal/normalize"
	"github.com/MeKo-Tech/omr/internal/template"
	"github.com/MeKo-Tech/omr/internal/utils"
)

// Config holds registration tolerances.
type Config struct {
	MaxResidual  float64 // maximum mean fit error, pixels
	MinFiducials int     // minimum matched fiducials for a fit
}

// DefaultConfig returns registration defaults.
func DefaultConfig() Config {
	return Config{
		MaxResidual:  5.0,
		MinFiducials: 3,
	}
}

// FiducialMatch records the outcome of one fiducial search, kept for
// diagnostics and annotation.
type FiducialMatch struct {
	Name     string      `json:"name"`
	Expected utils.Point `json:"expected"` // pixel-space prior position
	Found    utils.Point `json:"found"`    // blob centroid
	Area     int         `json:"area"`     // blob pixel count
	OK       bool        `json:"ok"`
}

// Result is the registration outcome: the template-to-pixel transform plus
// per-fiducial diagnostics.
type Result struct {
	Transform utils.AffineTransform `json:"transform"`
	Matches   []FiducialMatch       `json:"matches"`
	Residual  float64               `json:"residual_px"`
}

// Register searches each template fiducial's window in the mask and solves
// the best-fit affine transform. Fails when fewer than cfg.MinFiducials are
// found, the found marks are collinear, or the residual exceeds tolerance.
func Register(mask *normalize.BinaryMask, tpl *template.FormTemplate, cfg Config) (*Result, error) {
	if cfg.MinFiducials < 3 {
		cfg.MinFiducials = 3
	}

	// Prior: template [0,1] space scaled to the image, assuming the scan is
	// roughly full-frame. Fiducial windows absorb the remaining offset.
	w := float64(mask.Width)
	h := float64(mask.Height)

	matches := make([]FiducialMatch, 0, len(tpl.Fiducials))
	var tplPts, pixPts []utils.Point
	var failed []string

	for _, f := range tpl.Fiducials {
		expected := utils.Point{X: f.X * w, Y: f.Y * h}
		m := searchFiducial(mask, f, expected, w, h)
		matches = append(matches, m)
		if m.OK {
			tplPts = append(tplPts, f.Position())
			pixPts = append(pixPts, m.Found)
		} else {
			failed = append(failed, f.Name)
		}
	}

	if len(pixPts) < cfg.MinFiducials {
		return nil, &RegistrationError{
			Reason:          "not enough fiducials found",
			FailedFiducials: failed,
			Found:           len(pixPts),
			Needed:          cfg.MinFiducials,
		}
	}

	// Collinear marks cannot constrain the fit. The epsilon scales with the
	// squared image diagonal because the test compares triangle areas.
	diag := math.Hypot(w, h)
	if collinear(pixPts, 1e-3*diag*diag) {
		return nil, &RegistrationError{
			Reason:          "matched fiducials are collinear",
			FailedFiducials: failed,
			Found:           len(pixPts),
			Needed:          cfg.MinFiducials,
		}
	}

	transform, err := solveAffineLeastSquares(tplPts, pixPts)
	if err != nil {
		return nil, &RegistrationError{Reason: err.Error(), Found: len(pixPts), Needed: cfg.MinFiducials}
	}

	residual := meanResidual(transform, tplPts, pixPts)
	if residual > cfg.MaxResidual {
		return nil, &RegistrationError{
			Reason:          "fit residual exceeds tolerance",
			FailedFiducials: failed,
			Found:           len(pixPts),
			Needed:          cfg.MinFiducials,
			Residual:        residual,
			MaxResidual:     cfg.MaxResidual,
		}
	}

	slog.Debug("registration complete",
		"fiducials", len(pixPts),
		"residual_px", residual)

	return &Result{Transform: transform, Matches: matches, Residual: residual}, nil
}

// searchFiducial scans one bounded window for the largest dark blob. Ties on
// area break toward the blob closest to the expected position.
func searchFiducial(mask *normalize.BinaryMask, f template.Fiducial, expected utils.Point, w, h float64) FiducialMatch {
	m := FiducialMatch{Name: f.Name, Expected: expected}

	winX := f.Window * w
	winY := f.Window * h
	window := image.Rect(
		int(math.Floor(expected.X-winX)), int(math.Floor(expected.Y-winY)),
		int(math.Ceil(expected.X+winX)), int(math.Ceil(expected.Y+winY)),
	)

	blobs := connectedBlobs(mask, window)
	minArea := int(f.MinArea * float64(window.Dx()*window.Dy()))
	if minArea < 4 {
		minArea = 4
	}

	var best *blobStats
	var bestDist float64
	for i := range blobs {
		b := &blobs[i]
		if b.count < minArea {
			continue
		}
		centroid := utils.Point{X: b.centroidX(), Y: b.centroidY()}
		dist := centroid.Distance(expected)
		switch {
		case best == nil,
			b.count > best.count,
			b.count == best.count && dist < bestDist:
			best = b
			bestDist = dist
		}
	}
	if best == nil {
		return m
	}

	m.Found = utils.Point{X: best.centroidX(), Y: best.centroidY()}
	m.Area = best.count
	m.OK = true
	return m
}
