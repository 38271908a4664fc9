package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	surfSubregions = 4
	surfSamples    = 5
	// SURFLength is the dimension of DenseSURF descriptors.
	SURFLength = surfSubregions * surfSubregions * 4
)

// DenseSURF computes upright SURF-style descriptors at every point of a
// regular grid. Each descriptor covers a 20s x 20s window split into 4x4
// sub-regions; every sub-region contributes the sums of the Haar wavelet
// responses dx, dy, |dx| and |dy| over 5x5 Gaussian-weighted samples. The
// result is scaled to unit length.
type DenseSURF struct {
	Spacing int
}

func (d DenseSURF) Dim() int {
	return SURFLength
}

// Describe returns one descriptor per grid point, in row-major grid order.
// Grid points start at spacing/2 and advance by spacing in both axes.
func (d DenseSURF) Describe(g *Grey) ([][]float64, error) {
	if d.Spacing <= 0 {
		return nil, fmt.Errorf("dense surf spacing must be positive, got %d", d.Spacing)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("dense surf: %w", err)
	}

	ii := newIntegral(g)
	scale := math.Sqrt(float64(d.Spacing))
	box := int(math.Round(2 * scale))
	if box < 2 {
		box = 2
	}
	sigma := 3.3 * scale

	var out [][]float64
	for cy := d.Spacing / 2; cy < g.Height; cy += d.Spacing {
		for cx := d.Spacing / 2; cx < g.Width; cx += d.Spacing {
			out = append(out, describePoint(ii, float64(cy), float64(cx), scale, sigma, box))
		}
	}
	return out, nil
}

func describePoint(ii *integral, cy, cx, scale, sigma float64, box int) []float64 {
	desc := make([]float64, SURFLength)
	half := float64(surfSubregions*surfSamples) / 2

	for i := 0; i < surfSubregions; i++ {
		for j := 0; j < surfSubregions; j++ {
			var sdx, sdy, adx, ady float64
			for k := 0; k < surfSamples; k++ {
				for l := 0; l < surfSamples; l++ {
					oy := (float64(i*surfSamples+k) + 0.5 - half) * scale
					ox := (float64(j*surfSamples+l) + 0.5 - half) * scale
					w := math.Exp(-(oy*oy + ox*ox) / (2 * sigma * sigma))

					y := int(math.Round(cy + oy))
					x := int(math.Round(cx + ox))
					dx := w * ii.haarX(y, x, box)
					dy := w * ii.haarY(y, x, box)

					sdx += dx
					sdy += dy
					adx += math.Abs(dx)
					ady += math.Abs(dy)
				}
			}
			base := (i*surfSubregions + j) * 4
			desc[base] = sdx
			desc[base+1] = sdy
			desc[base+2] = adx
			desc[base+3] = ady
		}
	}

	if norm := floats.Norm(desc, 2); norm > 0 {
		floats.Scale(1/norm, desc)
	}
	return desc
}

// integral is a summed-area table with one row and column of zero padding.
type integral struct {
	width, height int
	sums          []float64
}

func newIntegral(g *Grey) *integral {
	w, h := g.Width+1, g.Height+1
	ii := &integral{width: g.Width, height: g.Height, sums: make([]float64, w*h)}
	for y := 1; y < h; y++ {
		var row float64
		for x := 1; x < w; x++ {
			row += float64(g.At(x-1, y-1))
			ii.sums[y*w+x] = ii.sums[(y-1)*w+x] + row
		}
	}
	return ii
}

// mean returns the average pixel of rows [y0, y1) and columns [x0, x1),
// clipped to the image, and whether any pixel remained.
func (ii *integral) mean(y0, x0, y1, x1 int) (float64, bool) {
	y0, y1 = clipInt(y0, 0, ii.height), clipInt(y1, 0, ii.height)
	x0, x1 = clipInt(x0, 0, ii.width), clipInt(x1, 0, ii.width)
	if y1 <= y0 || x1 <= x0 {
		return 0, false
	}
	return ii.sum(y0, x0, y1, x1) / float64((y1-y0)*(x1-x0)), true
}

// sum returns the pixel sum of rows [y0, y1) and columns [x0, x1), clipped
// to the image.
func (ii *integral) sum(y0, x0, y1, x1 int) float64 {
	y0, y1 = clipInt(y0, 0, ii.height), clipInt(y1, 0, ii.height)
	x0, x1 = clipInt(x0, 0, ii.width), clipInt(x1, 0, ii.width)
	if y1 <= y0 || x1 <= x0 {
		return 0
	}
	w := ii.width + 1
	return ii.sums[y1*w+x1] - ii.sums[y0*w+x1] - ii.sums[y1*w+x0] + ii.sums[y0*w+x0]
}

// haarX is the difference between the mean intensity right and left of
// (y, x). Near the border the boxes are clipped; a response whose box falls
// entirely outside the image is zero.
func (ii *integral) haarX(y, x, size int) float64 {
	h := size / 2
	right, okR := ii.mean(y-h, x, y+h, x+h)
	left, okL := ii.mean(y-h, x-h, y+h, x)
	if !okR || !okL {
		return 0
	}
	return right - left
}

func (ii *integral) haarY(y, x, size int) float64 {
	h := size / 2
	below, okB := ii.mean(y, x-h, y+h, x+h)
	above, okA := ii.mean(y-h, x-h, y, x+h)
	if !okB || !okA {
		return 0
	}
	return below - above
}

func clipInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
