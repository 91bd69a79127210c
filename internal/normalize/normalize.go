// Package normalize converts decoded raster images into single-channel
// darkness grids and binary masks for the downstream stages.
package normalize

import (
	"image"
	"math"

	"github.com/MeKo-Tech/omr/internal/mempool"
)

// Intensity conversion modes.
const (
	ModeLuma = "luma" // BT.601 luminance
	ModeRed  = "red"  // red channel only, ignores red form printing
)

// Threshold methods.
const (
	MethodFixed = "fixed"
	MethodOtsu  = "otsu"
)

// Config holds normalizer settings. Darkness values run from 0 (white) to
// 1 (black).
type Config struct {
	Mode             string  // intensity mode: luma or red
	Method           string  // threshold method: fixed or otsu
	Threshold        float64 // fixed darkness threshold
	SigmoidEnabled   bool    // sigmoidal contrast enhancement
	SigmoidCenter    float64 // darkness mapped to 0.5
	SigmoidSteepness float64 // larger = sharper transition
}

// DefaultConfig returns normalizer defaults tuned for photocopier scans.
func DefaultConfig() Config {
	return Config{
		Mode:             ModeRed,
		Method:           MethodOtsu,
		Threshold:        0.5,
		SigmoidEnabled:   true,
		SigmoidCenter:    0.25,
		SigmoidSteepness: 20,
	}
}

// Validate checks config values.
func (c Config) Validate() error {
	if c.Mode != ModeLuma && c.Mode != ModeRed {
		return &InvalidImageError{Reason: "unsupported intensity mode: " + c.Mode}
	}
	if c.Method != MethodFixed && c.Method != MethodOtsu {
		return &InvalidImageError{Reason: "unsupported threshold method: " + c.Method}
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return &InvalidImageError{Reason: "fixed threshold outside [0,1]"}
	}
	return nil
}

// IntensityGrid is a single-channel darkness grid derived from an image.
// Pixels is pooled; call Release when the pipeline run is done.
type IntensityGrid struct {
	Width  int
	Height int
	Pixels []float64
}

// At returns the darkness at (x, y). Out-of-bounds reads return 0 (white).
func (g *IntensityGrid) At(x, y int) float64 {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return 0
	}
	return g.Pixels[y*g.Width+x]
}

// Release returns the pixel buffer to the pool. The grid must not be used
// afterwards.
func (g *IntensityGrid) Release() {
	mempool.PutFloat64(g.Pixels)
	g.Pixels = nil
}

// BinaryMask is a boolean dark/light mask with the grid's dimensions.
// Bits is pooled; call Release when the pipeline run is done.
type BinaryMask struct {
	Width  int
	Height int
	Bits   []bool
}

// At reports whether (x, y) is dark. Out-of-bounds reads return false.
func (m *BinaryMask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Bits[y*m.Width+x]
}

// Release returns the bit buffer to the pool.
func (m *BinaryMask) Release() {
	mempool.PutBool(m.Bits)
	m.Bits = nil
}

// Intensity converts an image to a darkness grid per the config.
func Intensity(img image.Image, cfg Config) (*IntensityGrid, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, &InvalidImageError{Reason: "nil image"}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, &InvalidImageError{Reason: "zero-area image"}
	}

	g := &IntensityGrid{Width: w, Height: h, Pixels: mempool.GetFloat64(w * h)}
	for y := range h {
		for x := range w {
			r, gr, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			var raw float64
			if cfg.Mode == ModeRed {
				raw = 1 - float64(r>>8)/255
			} else {
				lum := 0.299*float64(r>>8) + 0.587*float64(gr>>8) + 0.114*float64(bl>>8)
				raw = 1 - lum/255
			}
			if cfg.SigmoidEnabled {
				raw = sigmoid(raw, cfg.SigmoidCenter, cfg.SigmoidSteepness)
			}
			g.Pixels[y*w+x] = raw
		}
	}
	return g, nil
}

// sigmoid remaps darkness through a logistic curve to enhance contrast.
func sigmoid(v, center, steepness float64) float64 {
	return 1 / (1 + math.Exp(-(v-center)*steepness))
}

// Threshold binarizes the grid. For MethodOtsu the threshold is derived from
// a 256-bin darkness histogram; MethodFixed uses cfg.Threshold directly.
func (g *IntensityGrid) Threshold(cfg Config) *BinaryMask {
	t := cfg.Threshold
	if cfg.Method == MethodOtsu {
		t = otsuThreshold(g.Pixels)
	}
	m := &BinaryMask{Width: g.Width, Height: g.Height, Bits: mempool.GetBool(g.Width * g.Height)}
	for i, p := range g.Pixels {
		if p >= t {
			m.Bits[i] = true
		}
	}
	return m
}

// Binarize converts an image straight to grid plus mask.
func Binarize(img image.Image, cfg Config) (*IntensityGrid, *BinaryMask, error) {
	g, err := Intensity(img, cfg)
	if err != nil {
		return nil, nil, err
	}
	return g, g.Threshold(cfg), nil
}

// otsuThreshold implements Otsu's method over darkness values in [0,1].
func otsuThreshold(pixels []float64) float64 {
	if len(pixels) == 0 {
		return 0.5
	}
	const bins = 256
	histogram := make([]int, bins)
	for _, p := range pixels {
		bin := int(p * float64(bins-1))
		if bin < 0 {
			bin = 0
		}
		if bin >= bins {
			bin = bins - 1
		}
		histogram[bin]++
	}

	totalPixels := len(pixels)
	var totalMean float64
	for i := range bins {
		totalMean += float64(i) * float64(histogram[i])
	}
	totalMean /= float64(totalPixels)

	var maxVariance float64
	bestThreshold := 0
	var sumB float64
	wB := 0

	for t := range bins {
		wB += histogram[t]
		if wB == 0 {
			continue
		}
		wF := totalPixels - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(histogram[t])
		meanB := sumB / float64(wB)
		meanF := (totalMean*float64(totalPixels) - sumB) / float64(wF)
		variance := float64(wB) * float64(wF) * (meanB - meanF) * (meanB - meanF)
		if variance > maxVariance {
			maxVariance = variance
			bestThreshold = t
		}
	}

	// bestThreshold is the last background bin; dark starts at the bin above
	// it, otherwise the upper half of the background bin flips dark too.
	thresh := float64(bestThreshold+1) / float64(bins-1)
	// A blank page produces a degenerate histogram; fall back to mid-scale so
	// the mask stays empty instead of turning noise into marks.
	if maxVariance == 0 {
		thresh = 0.5
	}
	return thresh
}
