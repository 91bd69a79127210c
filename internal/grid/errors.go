package grid

import "fmt"

// LayoutMismatchError reports a caller-declared question count the template
// cannot hold. Reported immediately; no partial grid is produced.
type LayoutMismatchError struct {
	Template  string
	Requested int
	Capacity  int
}

func (e *LayoutMismatchError) Error() string {
	return fmt.Sprintf("layout mismatch: template %s holds %d questions, %d requested",
		e.Template, e.Capacity, e.Requested)
}
