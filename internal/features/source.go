package features

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// GoSource decodes images with the image package and resizes with
// bilinear interpolation. It needs no native libraries.
type GoSource struct{}

func (GoSource) Load(path string) (*Grey, error) {
	img, err := loadImage(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	g := FromImage(img)
	if err := g.Validate(); err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return g, nil
}

func (GoSource) Resize(g *Grey, width, height int) (*Grey, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid resize target %dx%d", width, height)
	}
	if g.Width == width && g.Height == height {
		return g, nil
	}
	scaled := resize.Resize(uint(width), uint(height), g.ToImage(), resize.Bilinear)
	return FromImage(scaled), nil
}

func loadImage(name string) (image.Image, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	im, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	return im, nil
}
