package pipeline

import (
	"context"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/MeKo-Tech/omr/internal/annotate"
	"github.com/MeKo-Tech/omr/internal/classify"
	"github.com/MeKo-Tech/omr/internal/grid"
	"github.com/MeKo-Tech/omr/internal/normalize"
	"github.com/MeKo-Tech/omr/internal/register"
)

// StageTiming records per-stage wall time in nanoseconds.
type StageTiming struct {
	NormalizeNs int64 `json:"normalize_ns"`
	RegisterNs  int64 `json:"register_ns"`
	GridNs      int64 `json:"grid_ns"`
	ClassifyNs  int64 `json:"classify_ns"`
	AnnotateNs  int64 `json:"annotate_ns"`
	TotalNs     int64 `json:"total_ns"`
}

// Result is the outcome of one sheet read.
type Result struct {
	Width        int                    `json:"width"`
	Height       int                    `json:"height"`
	StudentID    string                 `json:"student_id"`
	FormNumber   int                    `json:"form_number"` // 0 when not marked
	Answers      *classify.AnswerRecord `json:"answers"`
	Registration *register.Result       `json:"registration"`
	Timing       StageTiming            `json:"timing"`

	// Annotated is the QA overlay copy of the input; excluded from JSON.
	Annotated *image.RGBA `json:"-"`
}

// AnswerLine renders the single-line answer output.
func (r *Result) AnswerLine() string { return r.Answers.Line() }

// TrimmedID returns the student ID without blank-column padding.
func (r *Result) TrimmedID() string { return strings.TrimSpace(r.StudentID) }

// Process runs the full pipeline on one decoded scan.
func (p *Pipeline) Process(img image.Image) (*Result, error) {
	return p.ProcessContext(context.Background(), img)
}

// ProcessContext runs the full pipeline with cancellation support. When the
// pipeline has a configured timeout it bounds this single image. Fatal
// errors abort the run; no partial answer line is produced.
func (p *Pipeline) ProcessContext(ctx context.Context, img image.Image) (*Result, error) {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	res := &Result{}
	if img != nil {
		b := img.Bounds()
		res.Width = b.Dx()
		res.Height = b.Dy()
	}

	// Normalize: darkness grid + binary mask.
	t0 := time.Now()
	intensity, mask, err := normalize.Binarize(img, p.cfg.Normalize)
	if err != nil {
		return nil, err
	}
	defer intensity.Release()
	defer mask.Release()
	res.Timing.NormalizeNs = time.Since(t0).Nanoseconds()
	slog.Debug("normalized scan", "width", res.Width, "height", res.Height)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Register: fiducial search + affine fit.
	t0 = time.Now()
	reg, err := register.Register(mask, p.cfg.Template, p.cfg.Register)
	if err != nil {
		return nil, err
	}
	res.Registration = reg
	res.Timing.RegisterNs = time.Since(t0).Nanoseconds()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Grid: expected bubble regions in pixel space.
	t0 = time.Now()
	g, err := grid.Build(reg.Transform, p.cfg.Template, p.cfg.Questions)
	if err != nil {
		return nil, err
	}
	res.Timing.GridNs = time.Since(t0).Nanoseconds()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Classify: per-question decisions plus ID and form number.
	t0 = time.Now()
	res.Answers = classify.Questions(mask, g, p.cfg.Template.OptionLabels, p.cfg.Classify)
	res.StudentID = classify.ExtractID(mask, g, p.cfg.Classify)
	if n, ok := classify.ExtractFormNumber(mask, g, p.cfg.Classify); ok {
		res.FormNumber = n
	}
	res.Timing.ClassifyNs = time.Since(t0).Nanoseconds()
	slog.Debug("classified sheet",
		"questions", len(res.Answers.Answers),
		"student_id", res.TrimmedID())

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Annotate: QA overlay.
	t0 = time.Now()
	res.Annotated = annotate.Render(img, g, res.Answers, res.TrimmedID(), reg.Matches, p.cfg.Annotate)
	res.Timing.AnnotateNs = time.Since(t0).Nanoseconds()

	res.Timing.TotalNs = time.Since(start).Nanoseconds()
	return res, nil
}
