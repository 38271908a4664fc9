// Package opencv provides the OpenCV-backed image source, dense SIFT
// descriptors and k-means clustering.
package opencv

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"bovw-classifier/internal/features"
)

// Source reads images with OpenCV as greyscale and resizes with linear
// interpolation.
type Source struct{}

func (Source) Load(path string) (*features.Grey, error) {
	m := gocv.IMRead(path, gocv.IMReadGrayScale)
	defer m.Close()

	if m.Empty() {
		return nil, &features.DecodeError{Path: path, Err: errors.New("opencv could not read the image")}
	}
	g, err := MatToGrey(m)
	if err != nil {
		return nil, &features.DecodeError{Path: path, Err: err}
	}
	return g, nil
}

func (Source) Resize(g *features.Grey, width, height int) (*features.Grey, error) {
	if err := validateDimensions(width, height, "resize"); err != nil {
		return nil, err
	}
	if g.Width == width && g.Height == height {
		return g, nil
	}

	src, err := GreyToMat(g)
	if err != nil {
		return nil, fmt.Errorf("resize: %w", err)
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Resize(src, &dst, image.Point{X: width, Y: height}, 0, 0, gocv.InterpolationLinear)

	return MatToGrey(dst)
}
