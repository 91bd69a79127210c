package template

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTemplateIsValid(t *testing.T) {
	tpl := Default()
	require.NoError(t, tpl.Validate())

	assert.Equal(t, "answersheet-63", tpl.Name)
	assert.Equal(t, 5, tpl.Options())
	assert.Equal(t, 80, tpl.Capacity())
	assert.Len(t, tpl.Fiducials, 4)
	assert.Equal(t, 8, tpl.ID.Chars)
	assert.Equal(t, 36, tpl.ID.Rows)
}

func TestQuestionCenterColumnWrap(t *testing.T) {
	tpl := Default()

	// Question 0, option A sits at the grid origin.
	p := tpl.QuestionCenter(0, 0)
	assert.InDelta(t, tpl.Grid.OriginX, p.X, 1e-12)
	assert.InDelta(t, tpl.Grid.OriginY, p.Y, 1e-12)

	// Options advance horizontally.
	p = tpl.QuestionCenter(0, 2)
	assert.InDelta(t, tpl.Grid.OriginX+2*tpl.Grid.OptionStride, p.X, 1e-12)

	// Question 20 wraps to the top of the second column.
	p = tpl.QuestionCenter(20, 0)
	assert.InDelta(t, tpl.Grid.OriginX+tpl.Grid.ColumnStride, p.X, 1e-12)
	assert.InDelta(t, tpl.Grid.OriginY, p.Y, 1e-12)

	// Question 19 is the last row of the first column.
	p = tpl.QuestionCenter(19, 0)
	assert.InDelta(t, tpl.Grid.OriginY+19*tpl.Grid.RowStride, p.Y, 1e-12)
}

func TestIDCellCenter(t *testing.T) {
	tpl := Default()
	p := tpl.IDCellCenter(3, 10)
	assert.InDelta(t, tpl.ID.OriginX+3*tpl.ID.CharStride, p.X, 1e-12)
	assert.InDelta(t, tpl.ID.OriginY+10*tpl.ID.RowStride, p.Y, 1e-12)
}

func TestFormNumberCenter(t *testing.T) {
	tpl := Default()
	p := tpl.FormNumberCenter(2)
	assert.InDelta(t, tpl.FormNumber.OriginX+2*tpl.FormNumber.OptionStride, p.X, 1e-12)
	assert.InDelta(t, tpl.FormNumber.OriginY, p.Y, 1e-12)
}

func TestIDRowSymbol(t *testing.T) {
	assert.Equal(t, byte('A'), IDRowSymbol(0))
	assert.Equal(t, byte('Z'), IDRowSymbol(25))
	assert.Equal(t, byte('0'), IDRowSymbol(26))
	assert.Equal(t, byte('9'), IDRowSymbol(35))
	assert.Equal(t, byte(' '), IDRowSymbol(-1))
	assert.Equal(t, byte(' '), IDRowSymbol(36))
}

func TestGet(t *testing.T) {
	tpl, err := Get("answersheet-63")
	require.NoError(t, err)
	assert.Equal(t, "answersheet-63", tpl.Name)

	// Empty name resolves to the default layout.
	tpl, err = Get("")
	require.NoError(t, err)
	assert.Equal(t, Default().Name, tpl.Name)

	_, err = Get("no-such-form")
	assert.Error(t, err)
}

func TestValidateRejectsBrokenTemplates(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*FormTemplate)
	}{
		{"empty name", func(tpl *FormTemplate) { tpl.Name = "" }},
		{"single option", func(tpl *FormTemplate) { tpl.OptionLabels = "A" }},
		{"zero bubble radius", func(tpl *FormTemplate) { tpl.BubbleRadiusX = 0 }},
		{"too few fiducials", func(tpl *FormTemplate) { tpl.Fiducials = tpl.Fiducials[:2] }},
		{"fiducial outside space", func(tpl *FormTemplate) { tpl.Fiducials[0].X = 1.5 }},
		{"fiducial zero window", func(tpl *FormTemplate) { tpl.Fiducials[0].Window = 0 }},
		{"zero grid capacity", func(tpl *FormTemplate) { tpl.Grid.MaxColumns = 0 }},
		{"zero row stride", func(tpl *FormTemplate) { tpl.Grid.RowStride = 0 }},
		{"ID rows out of range", func(tpl *FormTemplate) { tpl.ID.Rows = 40 }},
		{"zero ID stride", func(tpl *FormTemplate) { tpl.ID.CharStride = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := Default()
			tt.mutate(tpl)
			assert.Error(t, tpl.Validate())
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "form.yaml")
	orig := Default()
	require.NoError(t, orig.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, orig, loaded)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	// File path wins over name.
	path := filepath.Join(t.TempDir(), "custom.yaml")
	custom := Default()
	custom.Name = "custom-form"
	require.NoError(t, custom.Save(path))

	tpl, err := Resolve("answersheet-63", path)
	require.NoError(t, err)
	assert.Equal(t, "custom-form", tpl.Name)

	tpl, err = Resolve("answersheet-63", "")
	require.NoError(t, err)
	assert.Equal(t, "answersheet-63", tpl.Name)
}
