package register

import (
	"fmt"
	"strings"
)

// RegistrationError reports that the form could not be reliably located in
// the scan. It is fatal for the image and carries enough detail for a human
// to re-tune the template or thresholds; the same image will not register
// better on retry.
type RegistrationError struct {
	Reason          string
	FailedFiducials []string
	Found           int
	Needed          int
	Residual        float64
	MaxResidual     float64
}

func (e *RegistrationError) Error() string {
	var sb strings.Builder
	sb.WriteString("registration failed: ")
	sb.WriteString(e.Reason)
	if len(e.FailedFiducials) > 0 {
		fmt.Fprintf(&sb, " (missing fiducials: %s)", strings.Join(e.FailedFiducials, ", "))
	}
	if e.Needed > 0 {
		fmt.Fprintf(&sb, " (found %d of %d required)", e.Found, e.Needed)
	}
	if e.MaxResidual > 0 {
		fmt.Fprintf(&sb, " (residual %.2fpx, tolerance %.2fpx)", e.Residual, e.MaxResidual)
	}
	return sb.String()
}
