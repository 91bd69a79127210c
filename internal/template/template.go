// Package template describes idealized answer-sheet layouts. All positions
// are expressed in a normalized [0,1]x[0,1] template coordinate space that is
// independent of scan resolution; the registration transform maps template
// space to pixel space per image.
package template

import (
	"fmt"

	"github.com/MeKo-Tech/omr/internal/utils"
)

// Fiducial is a fixed reference mark on the form used for registration.
type Fiducial struct {
	Name     string  `yaml:"name"`
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Window   float64 `yaml:"window"`    // half-size of the pixel search window, template units
	MinArea  float64 `yaml:"min_area"`  // minimum blob area as fraction of window area
	Diameter float64 `yaml:"diameter"`  // nominal mark diameter, template units (annotation only)
}

// Position returns the fiducial center in template space.
func (f Fiducial) Position() utils.Point { return utils.Point{X: f.X, Y: f.Y} }

// QuestionGrid describes where question bubbles sit in template space.
type QuestionGrid struct {
	OriginX            float64 `yaml:"origin_x"` // center of question 1, option A
	OriginY            float64 `yaml:"origin_y"`
	RowStride          float64 `yaml:"row_stride"`    // vertical distance between questions
	OptionStride       float64 `yaml:"option_stride"` // horizontal distance between options
	ColumnStride       float64 `yaml:"column_stride"` // horizontal distance between question columns
	QuestionsPerColumn int     `yaml:"questions_per_column"`
	MaxColumns         int     `yaml:"max_columns"`
}

// IDField describes the student-ID block: one column of bubbles per
// character, one row per symbol.
type IDField struct {
	Chars      int     `yaml:"chars"`
	Rows       int     `yaml:"rows"`
	OriginX    float64 `yaml:"origin_x"`
	OriginY    float64 `yaml:"origin_y"`
	CharStride float64 `yaml:"char_stride"`
	RowStride  float64 `yaml:"row_stride"`
}

// FormNumberField describes the form-number row (version A/B sheets).
type FormNumberField struct {
	Options      int     `yaml:"options"`
	OriginX      float64 `yaml:"origin_x"`
	OriginY      float64 `yaml:"origin_y"`
	OptionStride float64 `yaml:"option_stride"`
}

// FormTemplate is the injectable layout description for one physical form.
type FormTemplate struct {
	Name          string          `yaml:"name"`
	OptionLabels  string          `yaml:"option_labels"`
	BubbleRadiusX float64         `yaml:"bubble_radius_x"` // half-extent, template units
	BubbleRadiusY float64         `yaml:"bubble_radius_y"`
	Fiducials     []Fiducial      `yaml:"fiducials"`
	Grid          QuestionGrid    `yaml:"grid"`
	ID            IDField         `yaml:"id_field"`
	FormNumber    FormNumberField `yaml:"form_number"`
}

// IDAlphabet is the symbol set of the ID block rows, top to bottom.
const IDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Default returns the built-in layout for the institution's 63-bar answer
// sheet: 5-option questions in columns of 20, an 8-character ID block and a
// form-number row.
func Default() *FormTemplate {
	return &FormTemplate{
		Name:          "answersheet-63",
		OptionLabels:  "ABCDE",
		BubbleRadiusX: 0.0070,
		BubbleRadiusY: 0.0055,
		Fiducials: []Fiducial{
			{Name: "top-left", X: 0.030, Y: 0.020, Window: 0.040, MinArea: 0.02, Diameter: 0.012},
			{Name: "top-right", X: 0.970, Y: 0.020, Window: 0.040, MinArea: 0.02, Diameter: 0.012},
			{Name: "bottom-left", X: 0.030, Y: 0.980, Window: 0.040, MinArea: 0.02, Diameter: 0.012},
			{Name: "bottom-right", X: 0.970, Y: 0.980, Window: 0.040, MinArea: 0.02, Diameter: 0.012},
		},
		Grid: QuestionGrid{
			OriginX:            0.120,
			OriginY:            0.380,
			RowStride:          0.030,
			OptionStride:       0.020,
			ColumnStride:       0.180,
			QuestionsPerColumn: 20,
			MaxColumns:         4,
		},
		ID: IDField{
			Chars:      8,
			Rows:       36,
			OriginX:    0.800,
			OriginY:    0.140,
			CharStride: 0.020,
			RowStride:  0.015,
		},
		FormNumber: FormNumberField{
			Options:      4,
			OriginX:      0.820,
			OriginY:      0.725,
			OptionStride: 0.040,
		},
	}
}

// Builtin returns the registry of named built-in templates.
func Builtin() map[string]*FormTemplate {
	def := Default()
	return map[string]*FormTemplate{def.Name: def}
}

// Get resolves a template by name from the built-in registry.
func Get(name string) (*FormTemplate, error) {
	if name == "" {
		return Default(), nil
	}
	if t, ok := Builtin()[name]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("unknown template: %q", name)
}

// Options returns the number of options per question.
func (t *FormTemplate) Options() int { return len(t.OptionLabels) }

// Capacity returns the maximum number of questions the layout can hold.
func (t *FormTemplate) Capacity() int {
	return t.Grid.QuestionsPerColumn * t.Grid.MaxColumns
}

// QuestionCenter returns the template-space center of a bubble, identified by
// zero-based question and option indices.
func (t *FormTemplate) QuestionCenter(question, option int) utils.Point {
	col := question / t.Grid.QuestionsPerColumn
	row := question % t.Grid.QuestionsPerColumn
	return utils.Point{
		X: t.Grid.OriginX + float64(col)*t.Grid.ColumnStride + float64(option)*t.Grid.OptionStride,
		Y: t.Grid.OriginY + float64(row)*t.Grid.RowStride,
	}
}

// IDCellCenter returns the template-space center of an ID bubble.
func (t *FormTemplate) IDCellCenter(char, row int) utils.Point {
	return utils.Point{
		X: t.ID.OriginX + float64(char)*t.ID.CharStride,
		Y: t.ID.OriginY + float64(row)*t.ID.RowStride,
	}
}

// FormNumberCenter returns the template-space center of a form-number bubble.
func (t *FormTemplate) FormNumberCenter(option int) utils.Point {
	return utils.Point{
		X: t.FormNumber.OriginX + float64(option)*t.FormNumber.OptionStride,
		Y: t.FormNumber.OriginY,
	}
}

// IDRowSymbol maps an ID row index to its printed symbol.
func IDRowSymbol(row int) byte {
	if row < 0 || row >= len(IDAlphabet) {
		return ' '
	}
	return IDAlphabet[row]
}

// Validate checks the template for internal consistency.
func (t *FormTemplate) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("template name must not be empty")
	}
	if len(t.OptionLabels) < 2 {
		return fmt.Errorf("template %s: need at least 2 option labels, got %d", t.Name, len(t.OptionLabels))
	}
	if t.BubbleRadiusX <= 0 || t.BubbleRadiusY <= 0 {
		return fmt.Errorf("template %s: bubble radii must be positive", t.Name)
	}
	if len(t.Fiducials) < 3 {
		return fmt.Errorf("template %s: need at least 3 fiducials for registration, got %d",
			t.Name, len(t.Fiducials))
	}
	for _, f := range t.Fiducials {
		if f.Window <= 0 {
			return fmt.Errorf("template %s: fiducial %s has non-positive search window", t.Name, f.Name)
		}
		if f.X < 0 || f.X > 1 || f.Y < 0 || f.Y > 1 {
			return fmt.Errorf("template %s: fiducial %s outside template space", t.Name, f.Name)
		}
	}
	if t.Grid.QuestionsPerColumn <= 0 || t.Grid.MaxColumns <= 0 {
		return fmt.Errorf("template %s: question grid has zero capacity", t.Name)
	}
	if t.Grid.RowStride <= 0 || t.Grid.OptionStride <= 0 || t.Grid.ColumnStride <= 0 {
		return fmt.Errorf("template %s: grid strides must be positive", t.Name)
	}
	if t.ID.Chars > 0 {
		if t.ID.Rows <= 0 || t.ID.Rows > len(IDAlphabet) {
			return fmt.Errorf("template %s: ID rows must be in 1..%d, got %d",
				t.Name, len(IDAlphabet), t.ID.Rows)
		}
		if t.ID.CharStride <= 0 || t.ID.RowStride <= 0 {
			return fmt.Errorf("template %s: ID strides must be positive", t.Name)
		}
	}
	return nil
}
