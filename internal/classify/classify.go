// Package classify measures bubble fill and decides, per question, which
// option was marked. Ambiguous and unanswered questions are reportable
// outcomes, never errors.
package classify

import (
	"math"
	"strings"

	"github.com/MeKo-Tech/omr/internal/grid"
	"github.com/MeKo-Tech/omr/internal/normalize"
	"github.com/MeKo-Tech/omr/internal/template"
	"github.com/MeKo-Tech/omr/internal/utils"
)

// Sentinels used in the answer line. Both are distinct from any option label.
const (
	NoAnswerSymbol  = "_"
	AmbiguousSymbol = "AMBIG"
)

// Status classifies one question's outcome.
type Status string

const (
	StatusSelected  Status = "selected"
	StatusNoAnswer  Status = "no_answer"
	StatusAmbiguous Status = "ambiguous"
)

// Config holds classifier thresholds. The filled threshold and separation
// margin are empirically tuned per institution; they are configuration, not
// constants.
type Config struct {
	FilledThreshold     float64 // fill score above which a bubble counts as marked
	SeparationMargin    float64 // required gap to the next-darkest option
	IDFilledThreshold   float64 // same, for the ID block
	IDSeparationMargin  float64
	BackgroundNormalize bool    // subtract local annulus darkness
	AnnulusScale        float64 // annulus outer size as multiple of bubble radius
}

// DefaultConfig returns classifier defaults tuned on the institution's
// sample scans.
func DefaultConfig() Config {
	return Config{
		FilledThreshold:     0.27,
		SeparationMargin:    0.10,
		IDFilledThreshold:   0.27,
		IDSeparationMargin:  0.10,
		BackgroundNormalize: true,
		AnnulusScale:        2.0,
	}
}

// Validate checks threshold ranges.
func (c Config) Validate() error {
	for _, v := range []float64{c.FilledThreshold, c.SeparationMargin, c.IDFilledThreshold, c.IDSeparationMargin} {
		if v < 0 || v > 1 {
			return errThresholdRange
		}
	}
	if c.BackgroundNormalize && c.AnnulusScale <= 1 {
		return errAnnulusScale
	}
	return nil
}

// Answer is one question's classified outcome.
type Answer struct {
	Question int       `json:"question"`
	Status   Status    `json:"status"`
	Option   int       `json:"option"`  // selected option index, -1 unless selected
	Options  []int     `json:"options"` // contending options when ambiguous
	Scores   []float64 `json:"scores"`  // per-option fill scores
}

// AnswerRecord is the ordered classification of every question on a sheet.
type AnswerRecord struct {
	Answers []Answer `json:"answers"`
	Labels  string   `json:"labels"`
}

// Symbol renders one answer as its output symbol.
func (a Answer) Symbol(labels string) string {
	switch a.Status {
	case StatusSelected:
		if a.Option >= 0 && a.Option < len(labels) {
			return string(labels[a.Option])
		}
		return NoAnswerSymbol
	case StatusAmbiguous:
		return AmbiguousSymbol
	default:
		return NoAnswerSymbol
	}
}

// Line renders the comma-separated answer line, one symbol per question.
func (r *AnswerRecord) Line() string {
	parts := make([]string, len(r.Answers))
	for i, a := range r.Answers {
		parts[i] = a.Symbol(r.Labels)
	}
	return strings.Join(parts, ",")
}

// ScoreCell computes the fill score of one cell: the dark-pixel fraction of
// its region, optionally normalized against an annulus ring around it to
// compensate for uneven scan lighting.
func ScoreCell(mask *normalize.BinaryMask, cell grid.BubbleCell, cfg Config) float64 {
	fill := darkFraction(mask, cell.Region)
	if !cfg.BackgroundNormalize {
		return fill
	}
	outer := cell.Region.Expand(math.Max(cell.Region.Width(), cell.Region.Height()) * (cfg.AnnulusScale - 1) / 2)
	bg := annulusDarkFraction(mask, cell.Region, outer)
	score := fill - bg
	if score < 0 {
		score = 0
	}
	return score
}

// ScoreRow computes fill scores for all cells of one question.
func ScoreRow(mask *normalize.BinaryMask, cells []grid.BubbleCell, cfg Config) []float64 {
	scores := make([]float64, len(cells))
	for i, cell := range cells {
		scores[i] = ScoreCell(mask, cell, cfg)
	}
	return scores
}

// Questions classifies every question on the sheet. The per-question decision
// is relative: it is made only after all option scores are known.
func Questions(mask *normalize.BinaryMask, g *grid.Grid, labels string, cfg Config) *AnswerRecord {
	record := &AnswerRecord{Labels: labels, Answers: make([]Answer, len(g.Questions))}
	for q, cells := range g.Questions {
		scores := ScoreRow(mask, cells, cfg)
		record.Answers[q] = Decide(q, scores, cfg.FilledThreshold, cfg.SeparationMargin)
	}
	return record
}

// Decide classifies one question from its option scores:
// no option above threshold -> no_answer; two or more above threshold within
// the margin of the best -> ambiguous; otherwise the darkest option is
// selected.
func Decide(question int, scores []float64, threshold, margin float64) Answer {
	a := Answer{Question: question, Option: -1, Scores: scores}

	best := -1
	for i, s := range scores {
		if s < threshold {
			continue
		}
		if best < 0 || s > scores[best] {
			best = i
		}
	}
	if best < 0 {
		a.Status = StatusNoAnswer
		return a
	}

	var contenders []int
	for i, s := range scores {
		if i == best || s < threshold {
			continue
		}
		if scores[best]-s < margin {
			contenders = append(contenders, i)
		}
	}
	if len(contenders) > 0 {
		a.Status = StatusAmbiguous
		a.Options = append([]int{best}, contenders...)
		return a
	}

	a.Status = StatusSelected
	a.Option = best
	return a
}

// ExtractID reads the student ID from the ID block, one character per cell
// column. Columns with no confident mark yield a space, matching the paper
// form's optional trailing characters.
func ExtractID(mask *normalize.BinaryMask, g *grid.Grid, cfg Config) string {
	var sb strings.Builder
	for _, col := range g.ID {
		scores := ScoreRow(mask, col, cfg)
		a := Decide(0, scores, cfg.IDFilledThreshold, cfg.IDSeparationMargin)
		if a.Status == StatusSelected {
			sb.WriteByte(template.IDRowSymbol(a.Option))
		} else {
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

// ExtractFormNumber reads the form-number row. Returns the 1-based form
// number and whether a confident mark was found.
func ExtractFormNumber(mask *normalize.BinaryMask, g *grid.Grid, cfg Config) (int, bool) {
	if len(g.FormNumber) == 0 {
		return 0, false
	}
	scores := ScoreRow(mask, g.FormNumber, cfg)
	a := Decide(0, scores, cfg.FilledThreshold, cfg.SeparationMargin)
	if a.Status != StatusSelected {
		return 0, false
	}
	return a.Option + 1, true
}

// darkFraction returns the fraction of dark mask pixels inside box.
func darkFraction(mask *normalize.BinaryMask, box utils.Box) float64 {
	x0, y0, x1, y1 := clampBox(mask, box)
	total := 0
	dark := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			total++
			if mask.At(x, y) {
				dark++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(dark) / float64(total)
}

// annulusDarkFraction returns the dark fraction of the ring between inner
// and outer.
func annulusDarkFraction(mask *normalize.BinaryMask, inner, outer utils.Box) float64 {
	ox0, oy0, ox1, oy1 := clampBox(mask, outer)
	ix0, iy0, ix1, iy1 := clampBox(mask, inner)
	total := 0
	dark := 0
	for y := oy0; y < oy1; y++ {
		for x := ox0; x < ox1; x++ {
			if x >= ix0 && x < ix1 && y >= iy0 && y < iy1 {
				continue
			}
			total++
			if mask.At(x, y) {
				dark++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(dark) / float64(total)
}

func clampBox(mask *normalize.BinaryMask, box utils.Box) (int, int, int, int) {
	x0 := clamp(int(math.Floor(box.MinX)), 0, mask.Width)
	y0 := clamp(int(math.Floor(box.MinY)), 0, mask.Height)
	x1 := clamp(int(math.Ceil(box.MaxX)), 0, mask.Width)
	y1 := clamp(int(math.Ceil(box.MaxY)), 0, mask.Height)
	return x0, y0, x1, y1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
