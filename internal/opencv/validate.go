package opencv

import (
	"fmt"

	"gocv.io/x/gocv"
)

// maxSide bounds the images accepted for conversion.
const maxSide = 32768

func validateMat(m gocv.Mat, operation string) error {
	if m.Empty() {
		return fmt.Errorf("Mat is empty for operation: %s", operation)
	}
	if m.Rows() <= 0 || m.Cols() <= 0 {
		return fmt.Errorf("Mat has invalid dimensions %dx%d for operation: %s", m.Cols(), m.Rows(), operation)
	}
	return nil
}

func validateDimensions(width, height int, operation string) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d for operation: %s", width, height, operation)
	}
	if width > maxSide || height > maxSide {
		return fmt.Errorf("dimensions %dx%d exceed maximum size for operation: %s", width, height, operation)
	}
	return nil
}

func validateMatType(m gocv.Mat, want gocv.MatType, operation string) error {
	if m.Type() != want {
		return fmt.Errorf("unsupported MatType %d for operation: %s", int(m.Type()), operation)
	}
	return nil
}
