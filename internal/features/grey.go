package features

import (
	"fmt"
	"image"
)

// Grey is an 8-bit greyscale pixel grid stored row-major.
type Grey struct {
	Width  int
	Height int
	Pix    []uint8
}

func NewGrey(width, height int) *Grey {
	return &Grey{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// Uniform returns a width x height image filled with v.
func Uniform(width, height int, v uint8) *Grey {
	g := NewGrey(width, height)
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func (g *Grey) At(x, y int) uint8 {
	return g.Pix[y*g.Width+x]
}

func (g *Grey) Set(x, y int, v uint8) {
	g.Pix[y*g.Width+x] = v
}

// Max returns the largest pixel value.
func (g *Grey) Max() uint8 {
	var m uint8
	for _, v := range g.Pix {
		if v > m {
			m = v
		}
	}
	return m
}

func (g *Grey) Validate() error {
	if g == nil {
		return fmt.Errorf("nil image")
	}
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", g.Width, g.Height)
	}
	if len(g.Pix) != g.Width*g.Height {
		return fmt.Errorf("pixel buffer has %d values for %dx%d", len(g.Pix), g.Width, g.Height)
	}
	return nil
}

// ToImage copies g into an *image.Gray.
func (g *Grey) ToImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.Width, g.Height))
	for y := 0; y < g.Height; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+g.Width], g.Pix[y*g.Width:(y+1)*g.Width])
	}
	return img
}

// FromImage converts any image to greyscale using the ITU-R 601 luma weights
// of color.GrayModel.
func FromImage(img image.Image) *Grey {
	b := img.Bounds()
	g := NewGrey(b.Dx(), b.Dy())

	if gray, ok := img.(*image.Gray); ok {
		for y := 0; y < g.Height; y++ {
			off := (y+b.Min.Y-gray.Rect.Min.Y)*gray.Stride + (b.Min.X - gray.Rect.Min.X)
			copy(g.Pix[y*g.Width:(y+1)*g.Width], gray.Pix[off:off+g.Width])
		}
		return g
	}

	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			r, gr, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			lum := (19595*r + 38470*gr + 7471*bl + 1<<15) >> 24
			g.Pix[y*g.Width+x] = uint8(lum)
		}
	}
	return g
}
