package utils

import "fmt"

// ImageProcessingError wraps a failure in an image handling operation.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image %s failed: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ImageConstraints bounds acceptable input dimensions.
type ImageConstraints struct {
	MinWidth  int
	MinHeight int
	MaxWidth  int
	MaxHeight int
}

// DefaultImageConstraints returns constraints suitable for scanned sheets.
// 100 dpi letter scans are roughly 850x1100.
func DefaultImageConstraints() ImageConstraints {
	return ImageConstraints{
		MinWidth:  400,
		MinHeight: 400,
		MaxWidth:  10000,
		MaxHeight: 10000,
	}
}
