package opencv

import (
	"fmt"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"bovw-classifier/internal/features"
)

// MatToGrey copies a single-channel 8-bit Mat into a Grey.
func MatToGrey(m gocv.Mat) (*features.Grey, error) {
	if err := validateMat(m, "Mat to grey conversion"); err != nil {
		return nil, err
	}
	if err := validateMatType(m, gocv.MatTypeCV8UC1, "Mat to grey conversion"); err != nil {
		return nil, err
	}

	g := features.NewGrey(m.Cols(), m.Rows())
	data := m.ToBytes()
	if len(data) != len(g.Pix) {
		return nil, fmt.Errorf("Mat has %d bytes, want %d", len(data), len(g.Pix))
	}
	copy(g.Pix, data)
	return g, nil
}

// GreyToMat returns a new single-channel 8-bit Mat; the caller closes it.
func GreyToMat(g *features.Grey) (gocv.Mat, error) {
	if err := g.Validate(); err != nil {
		return gocv.Mat{}, err
	}
	if err := validateDimensions(g.Width, g.Height, "grey to Mat conversion"); err != nil {
		return gocv.Mat{}, err
	}
	return gocv.NewMatFromBytes(g.Height, g.Width, gocv.MatTypeCV8UC1, g.Pix)
}

// DenseToMat copies a gonum matrix into a 32-bit float Mat, the layout
// OpenCV's clustering expects.
func DenseToMat(d *mat.Dense) gocv.Mat {
	rows, cols := d.Dims()
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32FC1)
	for i := 0; i < rows; i++ {
		row := d.RawRowView(i)
		for j, v := range row {
			m.SetFloatAt(i, j, float32(v))
		}
	}
	return m
}

// MatToDense copies a 32-bit float Mat into a gonum matrix.
func MatToDense(m gocv.Mat) (*mat.Dense, error) {
	if err := validateMat(m, "Mat to matrix conversion"); err != nil {
		return nil, err
	}
	if err := validateMatType(m, gocv.MatTypeCV32FC1, "Mat to matrix conversion"); err != nil {
		return nil, err
	}

	rows, cols := m.Rows(), m.Cols()
	d := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			d.Set(i, j, float64(m.GetFloatAt(i, j)))
		}
	}
	return d, nil
}
